package bundle

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/calderw/mevsearcher/internal/domain"
)

type stubPricer struct {
	price *big.Int
	err   error
}

func (p *stubPricer) SuggestGasPrice(context.Context) (*big.Int, error) {
	return p.price, p.err
}

type testSigner struct {
	addr common.Address
	sign func(*types.Transaction) (*types.Transaction, error)
}

func (s *testSigner) Address() common.Address { return s.addr }

func (s *testSigner) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	return s.sign(tx)
}

func newTestSigner(t *testing.T) *testSigner {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer := types.LatestSignerForChainID(big.NewInt(1))
	return &testSigner{
		addr: ethcrypto.PubkeyToAddress(key.PublicKey),
		sign: func(tx *types.Transaction) (*types.Transaction, error) {
			return types.SignTx(tx, signer, key)
		},
	}
}

func testParams() Params {
	cap, _ := new(big.Int).SetString("100000000000000000000", 10) // 100 ether
	return Params{
		Contract:       common.HexToAddress("0x3333333333333333333333333333333333333333"),
		Asset:          common.HexToAddress("0x4444444444444444444444444444444444444444"),
		LoanMultiplier: 10,
		MaxLoanCap:     cap,
		GasLimit:       3_000_000,
	}
}

func victimTx() *types.Transaction {
	to := common.HexToAddress("0x5555555555555555555555555555555555555555")
	return types.NewTx(&types.LegacyTx{
		Nonce:    3,
		To:       &to,
		Gas:      200_000,
		GasPrice: big.NewInt(2_000_000_000),
		Data:     []byte{0xde, 0xad, 0xbe, 0xef},
	})
}

func TestLoanForScalesProfit(t *testing.T) {
	b := NewBuilder(testParams(), &stubPricer{price: big.NewInt(1)}, newTestSigner(t), nil, slog.Default())

	profit, _ := new(big.Int).SetString("500000000000000000", 10) // 0.5 ether
	loan, err := b.LoanFor(domain.Opportunity{EstimatedProfit: profit}, victimTx())
	if err != nil {
		t.Fatalf("LoanFor: %v", err)
	}
	want, _ := new(big.Int).SetString("5000000000000000000", 10) // 5 ether
	if loan.Amount.Cmp(want) != 0 {
		t.Errorf("loan amount = %s, want %s", loan.Amount, want)
	}
}

func TestLoanForClampsToCap(t *testing.T) {
	b := NewBuilder(testParams(), &stubPricer{price: big.NewInt(1)}, newTestSigner(t), nil, slog.Default())

	profit, _ := new(big.Int).SetString("20000000000000000000000", 10) // 20000 ether
	loan, err := b.LoanFor(domain.Opportunity{EstimatedProfit: profit}, victimTx())
	if err != nil {
		t.Fatalf("LoanFor: %v", err)
	}
	want, _ := new(big.Int).SetString("100000000000000000000", 10) // cap
	if loan.Amount.Cmp(want) != 0 {
		t.Errorf("loan amount = %s, want cap %s", loan.Amount, want)
	}
}

func TestLoanForRejectsZeroProfit(t *testing.T) {
	b := NewBuilder(testParams(), &stubPricer{price: big.NewInt(1)}, newTestSigner(t), nil, slog.Default())

	for _, profit := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5)} {
		_, err := b.LoanFor(domain.Opportunity{EstimatedProfit: profit}, victimTx())
		if !errors.Is(err, domain.ErrLoanTooSmall) {
			t.Errorf("profit %v: err = %v, want ErrLoanTooSmall", profit, err)
		}
	}
}

func TestLoanForForwardsVictimCalldata(t *testing.T) {
	b := NewBuilder(testParams(), &stubPricer{price: big.NewInt(1)}, newTestSigner(t), nil, slog.Default())

	victim := victimTx()
	loan, err := b.LoanFor(domain.Opportunity{EstimatedProfit: big.NewInt(1000)}, victim)
	if err != nil {
		t.Fatalf("LoanFor: %v", err)
	}
	if string(loan.Data) != string(victim.Data()) {
		t.Errorf("aux data = %x, want victim calldata %x", loan.Data, victim.Data())
	}
}

func TestBuildOrdersLoanFirst(t *testing.T) {
	signer := newTestSigner(t)
	b := NewBuilder(testParams(), &stubPricer{price: big.NewInt(1_000_000_000)}, signer, nil, slog.Default())

	victim := victimTx()
	bundle, err := b.Build(context.Background(), domain.Opportunity{ID: "opp-1", EstimatedProfit: big.NewInt(1_000_000)}, victim, 123, 9)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(bundle.Txs) != 2 || len(bundle.RawTxs) != 2 {
		t.Fatalf("bundle has %d txs / %d raw, want 2 / 2", len(bundle.Txs), len(bundle.RawTxs))
	}
	if bundle.Txs[0].Nonce() != 9 {
		t.Errorf("loan tx nonce = %d, want 9", bundle.Txs[0].Nonce())
	}
	if bundle.Txs[0].To() == nil || *bundle.Txs[0].To() != testParams().Contract {
		t.Errorf("loan tx target = %v, want flash-loan contract", bundle.Txs[0].To())
	}
	if bundle.Txs[1].Hash() != victim.Hash() {
		t.Error("second tx must be the victim transaction, unmodified")
	}
	if bundle.TargetBlock != 123 || bundle.Nonce != 9 {
		t.Errorf("bundle meta = block %d nonce %d, want 123 / 9", bundle.TargetBlock, bundle.Nonce)
	}
	for i, raw := range bundle.RawTxs {
		if len(raw) < 4 || raw[:2] != "0x" {
			t.Errorf("raw tx %d = %q, want 0x-prefixed RLP", i, raw)
		}
	}
}

func TestBuildBumpsGasPrice(t *testing.T) {
	b := NewBuilder(testParams(), &stubPricer{price: big.NewInt(100)}, newTestSigner(t), nil, slog.Default())

	bundle, err := b.Build(context.Background(), domain.Opportunity{EstimatedProfit: big.NewInt(1000)}, victimTx(), 1, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := bundle.Txs[0].GasPrice(); got.Cmp(big.NewInt(120)) != 0 {
		t.Errorf("loan tx gas price = %s, want 120 (suggestion + 20%%)", got)
	}
}

func TestBuildPropagatesGasPriceError(t *testing.T) {
	b := NewBuilder(testParams(), &stubPricer{err: errors.New("node down")}, newTestSigner(t), nil, slog.Default())

	if _, err := b.Build(context.Background(), domain.Opportunity{EstimatedProfit: big.NewInt(1000)}, victimTx(), 1, 0); err == nil {
		t.Fatal("expected error when gas price fetch fails")
	}
}
