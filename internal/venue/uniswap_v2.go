package venue

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/calderw/mevsearcher/internal/domain"
)

const pairABIJSON = `[
  {"constant":true,"inputs":[],"name":"getReserves","outputs":[{"name":"reserve0","type":"uint112"},{"name":"reserve1","type":"uint112"},{"name":"blockTimestampLast","type":"uint32"}],"type":"function"},
  {"constant":true,"inputs":[],"name":"token0","outputs":[{"name":"","type":"address"}],"type":"function"}
]`

var pairABI = mustParseABI(pairABIJSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

// PairVenue prices against a Uniswap-V2 style pair contract. Reserves are
// read via getReserves and oriented so Price always returns quote per base.
type PairVenue struct {
	name      string
	pair      common.Address
	baseToken common.Address
	caller    ContractCaller
	cache     domain.ReserveCache
	logger    *slog.Logger

	// orientMu guards baseIsToken0, which is resolved lazily on the first
	// price read. Price is called from concurrent scoring workers.
	orientMu     sync.Mutex
	baseIsToken0 *bool
}

// NewPairVenue builds a venue for the given pair. cache may be nil, in which
// case every Price call hits the chain.
func NewPairVenue(name string, pair, baseToken common.Address, caller ContractCaller, cache domain.ReserveCache, logger *slog.Logger) *PairVenue {
	return &PairVenue{
		name:      name,
		pair:      pair,
		baseToken: baseToken,
		caller:    caller,
		cache:     cache,
		logger:    logger.With(slog.String("component", "venue"), slog.String("venue", name)),
	}
}

func (v *PairVenue) Name() string { return v.name }

// Price returns reserveQuote/reserveBase as a big.Float.
func (v *PairVenue) Price(ctx context.Context) (*big.Float, error) {
	res, err := v.reserves(ctx)
	if err != nil {
		return nil, err
	}
	if res.Base.Sign() == 0 {
		return nil, fmt.Errorf("venue %s: empty base reserve", v.name)
	}
	price := new(big.Float).Quo(
		new(big.Float).SetInt(res.Quote),
		new(big.Float).SetInt(res.Base),
	)
	return price, nil
}

func (v *PairVenue) reserves(ctx context.Context) (domain.Reserves, error) {
	if v.cache != nil {
		if cached, ok, err := v.cache.Get(ctx, v.name); err == nil && ok {
			return cached, nil
		} else if err != nil {
			v.logger.Warn("reserve cache read failed", slog.String("error", err.Error()))
		}
	}

	fresh, err := v.fetchReserves(ctx)
	if err != nil {
		return domain.Reserves{}, err
	}

	if v.cache != nil {
		if err := v.cache.Set(ctx, v.name, fresh); err != nil {
			v.logger.Warn("reserve cache write failed", slog.String("error", err.Error()))
		}
	}
	return fresh, nil
}

func (v *PairVenue) fetchReserves(ctx context.Context) (domain.Reserves, error) {
	baseIsToken0, err := v.orientation(ctx)
	if err != nil {
		return domain.Reserves{}, err
	}

	data, err := pairABI.Pack("getReserves")
	if err != nil {
		return domain.Reserves{}, err
	}
	out, err := v.caller.CallContract(ctx, ethereum.CallMsg{To: &v.pair, Data: data}, nil)
	if err != nil {
		return domain.Reserves{}, fmt.Errorf("venue %s: getReserves: %w", v.name, err)
	}

	vals, err := pairABI.Unpack("getReserves", out)
	if err != nil || len(vals) < 2 {
		return domain.Reserves{}, fmt.Errorf("venue %s: decode getReserves: %w", v.name, err)
	}
	r0, ok0 := vals[0].(*big.Int)
	r1, ok1 := vals[1].(*big.Int)
	if !ok0 || !ok1 {
		return domain.Reserves{}, fmt.Errorf("venue %s: unexpected reserve types", v.name)
	}

	res := domain.Reserves{Base: r0, Quote: r1, UpdatedAt: time.Now().UTC()}
	if !baseIsToken0 {
		res.Base, res.Quote = r1, r0
	}
	return res, nil
}

// orientation reports whether the base token is the pair's token0, resolving
// it with a token0 call on first use. A failed resolution is retried on the
// next call rather than cached.
func (v *PairVenue) orientation(ctx context.Context) (bool, error) {
	v.orientMu.Lock()
	defer v.orientMu.Unlock()

	if v.baseIsToken0 != nil {
		return *v.baseIsToken0, nil
	}

	data, err := pairABI.Pack("token0")
	if err != nil {
		return false, err
	}
	out, err := v.caller.CallContract(ctx, ethereum.CallMsg{To: &v.pair, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("venue %s: token0: %w", v.name, err)
	}
	vals, err := pairABI.Unpack("token0", out)
	if err != nil || len(vals) < 1 {
		return false, fmt.Errorf("venue %s: decode token0: %w", v.name, err)
	}
	token0, ok := vals[0].(common.Address)
	if !ok {
		return false, fmt.Errorf("venue %s: unexpected token0 type", v.name)
	}

	isBase := token0 == v.baseToken
	v.baseIsToken0 = &isBase
	return isBase, nil
}
