package scorer

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/calderw/mevsearcher/internal/domain"
)

type stubVenue struct {
	name  string
	price *big.Float
	err   error
}

func (v *stubVenue) Name() string { return v.name }

func (v *stubVenue) Price(context.Context) (*big.Float, error) {
	return v.price, v.err
}

func testParams() Params {
	return Params{
		GapThresholdBps: 100,
		TradeNotional:   big.NewInt(1_000_000_000),
		MinProfit:       big.NewInt(1),
	}
}

func testTx() *types.Transaction {
	to := common.HexToAddress("0x1111111111111111111111111111111111111111")
	return types.NewTx(&types.LegacyTx{
		Nonce:    7,
		To:       &to,
		Gas:      21_000,
		GasPrice: big.NewInt(1),
		Data:     []byte{0x01, 0x02},
	})
}

func TestScoreProfitableGap(t *testing.T) {
	primary := &stubVenue{name: "uniswap_v2", price: big.NewFloat(100)}
	secondary := &stubVenue{name: "sushiswap", price: big.NewFloat(103)}
	s := NewVenueScorer(primary, secondary, testParams(),
		func(context.Context, domain.Opportunity) (float64, error) { return 0.9, nil },
		slog.Default())

	opp, err := s.Score(context.Background(), testTx())
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if !opp.Profitable {
		t.Fatalf("expected profitable, gap=%f bps", opp.GapBps)
	}
	if opp.Confidence != 0.9 {
		t.Errorf("confidence = %f, want 0.9", opp.Confidence)
	}
	if opp.BuyVenue != "uniswap_v2" || opp.SellVenue != "sushiswap" {
		t.Errorf("venue direction = buy %s sell %s, want buy uniswap_v2 sell sushiswap", opp.BuyVenue, opp.SellVenue)
	}
	if opp.EstimatedProfit.Sign() <= 0 {
		t.Errorf("estimated profit = %s, want positive", opp.EstimatedProfit)
	}
	if opp.ID == "" {
		t.Error("expected opportunity ID to be assigned")
	}
}

func TestScoreGapBelowThreshold(t *testing.T) {
	primary := &stubVenue{name: "uniswap_v2", price: big.NewFloat(100)}
	secondary := &stubVenue{name: "sushiswap", price: big.NewFloat(100.05)}
	s := NewVenueScorer(primary, secondary, testParams(),
		func(context.Context, domain.Opportunity) (float64, error) { return 0.9, nil },
		slog.Default())

	opp, err := s.Score(context.Background(), testTx())
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if opp.Profitable {
		t.Fatalf("gap of %f bps should not be profitable", opp.GapBps)
	}
	if opp.Confidence != 0 {
		t.Errorf("confidence = %f, want 0 for non-profitable", opp.Confidence)
	}
}

func TestScoreVenueErrorIsNotFatal(t *testing.T) {
	primary := &stubVenue{name: "uniswap_v2", err: errors.New("rpc timeout")}
	secondary := &stubVenue{name: "sushiswap", price: big.NewFloat(100)}
	s := NewVenueScorer(primary, secondary, testParams(),
		func(context.Context, domain.Opportunity) (float64, error) { return 0.9, nil },
		slog.Default())

	opp, err := s.Score(context.Background(), testTx())
	if err != nil {
		t.Fatalf("venue error must not propagate, got %v", err)
	}
	if opp.Profitable {
		t.Error("unreadable venue must score non-profitable")
	}
	if opp.Confidence != 0 {
		t.Errorf("confidence = %f, want 0", opp.Confidence)
	}
}

func TestScoreDirectionSecondaryCheaper(t *testing.T) {
	primary := &stubVenue{name: "uniswap_v2", price: big.NewFloat(103)}
	secondary := &stubVenue{name: "sushiswap", price: big.NewFloat(100)}
	s := NewVenueScorer(primary, secondary, testParams(),
		func(context.Context, domain.Opportunity) (float64, error) { return 0.9, nil },
		slog.Default())

	opp, err := s.Score(context.Background(), testTx())
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if opp.BuyVenue != "sushiswap" || opp.SellVenue != "uniswap_v2" {
		t.Errorf("venue direction = buy %s sell %s, want buy sushiswap sell uniswap_v2", opp.BuyVenue, opp.SellVenue)
	}
}

func TestRuleConfidenceRamp(t *testing.T) {
	conf := RuleConfidence(100)

	cases := []struct {
		name   string
		gapBps float64
		min    float64
		max    float64
	}{
		{"at threshold", 100, 0, 0},
		{"just above", 101, 0.5, 0.51},
		{"wide gap", 400, 0.98, 0.99},
		{"extreme gap", 10_000, 0.99, 0.99},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := conf(context.Background(), domain.Opportunity{GapBps: tc.gapBps})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got < tc.min || got > tc.max {
				t.Errorf("confidence(%f bps) = %f, want in [%f, %f]", tc.gapBps, got, tc.min, tc.max)
			}
		})
	}
}

func TestProfitEstimate(t *testing.T) {
	// 1 ether notional at a 100 bps gap is 0.01 ether.
	notional, _ := new(big.Int).SetString("1000000000000000000", 10)
	got := profitEstimate(notional, 100)
	want, _ := new(big.Int).SetString("10000000000000000", 10)
	if got.Cmp(want) != 0 {
		t.Errorf("profitEstimate = %s, want %s", got, want)
	}
}
