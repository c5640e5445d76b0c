// Package chain wraps go-ethereum's RPC client with the narrow read/write
// surface the searcher needs, plus a supervised raw-WebSocket subscription to
// the node's pending-transaction feed.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/calderw/mevsearcher/internal/domain"
)

// Client is the searcher's view of an Ethereum node over HTTP RPC.
type Client struct {
	eth *ethclient.Client
}

// Dial connects to the node at rpcURL and verifies the connection by fetching
// the chain ID. Connection failure here is fatal to startup.
func Dial(ctx context.Context, rpcURL string) (*Client, *big.Int, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, nil, fmt.Errorf("chain: chain id: %w", err)
	}

	return &Client{eth: eth}, chainID, nil
}

// BlockNumber returns the current head block height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain: block number: %w", err)
	}
	return n, nil
}

// PendingNonceAt returns the account's next nonce including pending
// transactions.
func (c *Client) PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	n, err := c.eth.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("chain: pending nonce %s: %w", addr.Hex(), err)
	}
	return n, nil
}

// TransactionByHash fetches a transaction body. Hashes that never resolve to
// a full transaction (already mined, dropped, or not yet propagated) return
// domain.ErrTxUnavailable rather than a transport error.
func (c *Client) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, error) {
	tx, _, err := c.eth.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, domain.ErrTxUnavailable
		}
		return nil, fmt.Errorf("chain: tx by hash %s: %w", hash.Hex(), err)
	}
	return tx, nil
}

// CallContract executes a read-only contract call against the latest state.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	out, err := c.eth.CallContract(ctx, msg, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("chain: call contract: %w", err)
	}
	return out, nil
}

// SuggestGasPrice returns the node's current gas price estimate.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	p, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: suggest gas price: %w", err)
	}
	return p, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}
