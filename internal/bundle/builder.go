// Package bundle sizes flash loans and assembles signed relay bundles.
package bundle

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/calderw/mevsearcher/internal/domain"
)

const loanABIJSON = `[
  {"inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"data","type":"bytes"}],"name":"requestLoan","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

var loanABI = mustParseABI(loanABIJSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

// GasPricer supplies a gas price suggestion from the node.
type GasPricer interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// TxSigner signs transactions for the executing account.
type TxSigner interface {
	Address() common.Address
	SignTx(tx *types.Transaction) (*types.Transaction, error)
}

// AuxEncoder produces the opaque routing payload forwarded to the flash-loan
// contract alongside the principal. The default encoder forwards the victim
// transaction's calldata unchanged; the contract re-derives the route on
// chain from it.
type AuxEncoder func(victim *types.Transaction, opp domain.Opportunity) []byte

// VictimCalldata is the default AuxEncoder.
func VictimCalldata(victim *types.Transaction, _ domain.Opportunity) []byte {
	return victim.Data()
}

// Params holds loan sizing policy and bundle construction parameters.
type Params struct {
	// Contract is the flash-loan contract the bundle calls into.
	Contract common.Address
	// Asset is the borrowed token.
	Asset common.Address
	// LoanMultiplier scales estimated profit into the loan principal.
	LoanMultiplier int64
	// MaxLoanCap is the hard ceiling on the principal in wei.
	MaxLoanCap *big.Int
	// GasLimit is the fixed gas limit for the flash-loan transaction.
	GasLimit uint64
}

// Builder assembles one signed two-transaction bundle per opportunity.
type Builder struct {
	params Params
	pricer GasPricer
	signer TxSigner
	encode AuxEncoder
	logger *slog.Logger
}

// NewBuilder builds a Builder. encode may be nil, defaulting to
// VictimCalldata.
func NewBuilder(params Params, pricer GasPricer, signer TxSigner, encode AuxEncoder, logger *slog.Logger) *Builder {
	if encode == nil {
		encode = VictimCalldata
	}
	return &Builder{
		params: params,
		pricer: pricer,
		signer: signer,
		encode: encode,
		logger: logger.With(slog.String("component", "bundle_builder")),
	}
}

// LoanFor sizes the loan for an opportunity: estimated profit scaled by the
// multiplier, clamped to the cap. Returns domain.ErrLoanTooSmall when the
// sized principal is not positive.
func (b *Builder) LoanFor(opp domain.Opportunity, victim *types.Transaction) (domain.LoanRequest, error) {
	if opp.EstimatedProfit == nil || opp.EstimatedProfit.Sign() <= 0 {
		return domain.LoanRequest{}, fmt.Errorf("%w: estimated profit %v", domain.ErrLoanTooSmall, opp.EstimatedProfit)
	}

	amount := new(big.Int).Mul(opp.EstimatedProfit, big.NewInt(b.params.LoanMultiplier))
	if amount.Cmp(b.params.MaxLoanCap) > 0 {
		amount.Set(b.params.MaxLoanCap)
	}
	if amount.Sign() <= 0 {
		return domain.LoanRequest{}, fmt.Errorf("%w: sized amount %s", domain.ErrLoanTooSmall, amount)
	}

	return domain.LoanRequest{
		Asset:  b.params.Asset,
		Amount: amount,
		Data:   b.encode(victim, opp),
	}, nil
}

// Build assembles and signs the bundle for the given target block and nonce:
// the flash-loan call first, the victim transaction second. The victim tx is
// carried as observed; its original signature rides along.
func (b *Builder) Build(ctx context.Context, opp domain.Opportunity, victim *types.Transaction, targetBlock, nonce uint64) (domain.SignedBundle, error) {
	loan, err := b.LoanFor(opp, victim)
	if err != nil {
		return domain.SignedBundle{}, err
	}

	calldata, err := loanABI.Pack("requestLoan", loan.Asset, loan.Amount, loan.Data)
	if err != nil {
		return domain.SignedBundle{}, fmt.Errorf("pack requestLoan: %w", err)
	}

	gasPrice, err := b.pricer.SuggestGasPrice(ctx)
	if err != nil {
		return domain.SignedBundle{}, fmt.Errorf("gas price: %w", err)
	}
	// Bid 20% over the node's suggestion so the bundle competes at the top of
	// the block.
	gasPrice = new(big.Int).Div(new(big.Int).Mul(gasPrice, big.NewInt(120)), big.NewInt(100))

	loanTx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &b.params.Contract,
		Gas:      b.params.GasLimit,
		GasPrice: gasPrice,
		Value:    big.NewInt(0),
		Data:     calldata,
	})

	signedLoan, err := b.signer.SignTx(loanTx)
	if err != nil {
		return domain.SignedBundle{}, err
	}

	txs := []*types.Transaction{signedLoan, victim}
	raw := make([]string, 0, len(txs))
	for _, tx := range txs {
		enc, err := tx.MarshalBinary()
		if err != nil {
			return domain.SignedBundle{}, fmt.Errorf("encode tx %s: %w", tx.Hash().Hex(), err)
		}
		raw = append(raw, hexutil.Encode(enc))
	}

	b.logger.Debug("bundle assembled",
		slog.String("opportunity_id", opp.ID),
		slog.Uint64("target_block", targetBlock),
		slog.Uint64("nonce", nonce),
		slog.String("loan_amount", loan.Amount.String()),
	)

	return domain.SignedBundle{
		Txs:         txs,
		RawTxs:      raw,
		TargetBlock: targetBlock,
		Nonce:       nonce,
	}, nil
}
