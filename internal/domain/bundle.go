package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// LoanRequest is the sized flash-loan call derived from an opportunity.
// Amount is always positive and never exceeds the configured cap.
type LoanRequest struct {
	// Asset is the token borrowed and traded.
	Asset common.Address

	// Amount is the loan principal in the asset's smallest unit.
	Amount *big.Int

	// Data is the opaque routing payload forwarded to the on-chain contract.
	Data []byte
}

// SignedBundle is an ordered set of signed transactions built for exactly one
// target block. A bundle is never reused for a later block; a fresh one is
// built per submission attempt.
type SignedBundle struct {
	// Txs holds the bundle transactions in execution order: the signed
	// flash-loan transaction followed by the originating pending transaction.
	Txs []*types.Transaction

	// RawTxs are the 0x-prefixed RLP encodings of Txs, in the same order,
	// ready for the relay wire format.
	RawTxs []string

	// TargetBlock is the block height the bundle is valid for.
	TargetBlock uint64

	// Nonce is the account nonce carried by the flash-loan transaction.
	Nonce uint64
}

// SimulationResult is the relay's verdict on a bundle prior to submission.
type SimulationResult struct {
	// Err is the simulation failure message; empty means the bundle executed
	// cleanly against the target block's parent state.
	Err string
}

// Failed reports whether the simulation rejected the bundle.
func (r SimulationResult) Failed() bool {
	return r.Err != ""
}
