package venue

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
)

// Venue exposes a single mid price for the configured trading pair. A venue
// is any on-chain liquidity source the scorer can compare against others.
type Venue interface {
	Name() string
	// Price returns the quote/base mid price. Implementations should consult
	// their cache before touching the chain.
	Price(ctx context.Context) (*big.Float, error)
}

// ContractCaller is the slice of the chain client venues need.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}
