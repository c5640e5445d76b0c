package venue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/calderw/mevsearcher/internal/domain"
)

var (
	testPair  = common.HexToAddress("0x8888888888888888888888888888888888888888")
	baseAddr  = common.HexToAddress("0x9999999999999999999999999999999999999999")
	quoteAddr = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
)

// fakeCaller answers token0 and getReserves calls with encoded fixtures.
type fakeCaller struct {
	mu       sync.Mutex
	token0   common.Address
	reserve0 *big.Int
	reserve1 *big.Int
	calls    int
	err      error
}

func (c *fakeCaller) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.calls++

	method, err := pairABI.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "token0":
		return method.Outputs.Pack(c.token0)
	case "getReserves":
		return method.Outputs.Pack(c.reserve0, c.reserve1, uint32(0))
	}
	return nil, errors.New("unexpected call")
}

type memReserveCache struct {
	mu   sync.Mutex
	data map[string]domain.Reserves
}

func (m *memReserveCache) Get(_ context.Context, venue string) (domain.Reserves, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.data[venue]
	return r, ok, nil
}

func (m *memReserveCache) Set(_ context.Context, venue string, r domain.Reserves) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string]domain.Reserves)
	}
	m.data[venue] = r
	return nil
}

func TestPriceBaseIsToken0(t *testing.T) {
	caller := &fakeCaller{
		token0:   baseAddr,
		reserve0: big.NewInt(1_000),
		reserve1: big.NewInt(3_000),
	}
	v := NewPairVenue("uniswap_v2", testPair, baseAddr, caller, nil, slog.Default())

	price, err := v.Price(context.Background())
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if got, _ := price.Float64(); got != 3.0 {
		t.Errorf("price = %f, want 3.0", got)
	}
}

func TestPriceBaseIsToken1(t *testing.T) {
	// token0 is the quote asset, so the reserves must be flipped.
	caller := &fakeCaller{
		token0:   quoteAddr,
		reserve0: big.NewInt(3_000),
		reserve1: big.NewInt(1_000),
	}
	v := NewPairVenue("sushiswap", testPair, baseAddr, caller, nil, slog.Default())

	price, err := v.Price(context.Background())
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if got, _ := price.Float64(); got != 3.0 {
		t.Errorf("price = %f, want 3.0", got)
	}
}

func TestPriceEmptyBaseReserve(t *testing.T) {
	caller := &fakeCaller{
		token0:   baseAddr,
		reserve0: big.NewInt(0),
		reserve1: big.NewInt(3_000),
	}
	v := NewPairVenue("uniswap_v2", testPair, baseAddr, caller, nil, slog.Default())

	if _, err := v.Price(context.Background()); err == nil {
		t.Fatal("expected error for empty base reserve")
	}
}

func TestPriceUsesCache(t *testing.T) {
	caller := &fakeCaller{
		token0:   baseAddr,
		reserve0: big.NewInt(1_000),
		reserve1: big.NewInt(2_000),
	}
	cache := &memReserveCache{}
	v := NewPairVenue("uniswap_v2", testPair, baseAddr, caller, cache, slog.Default())

	if _, err := v.Price(context.Background()); err != nil {
		t.Fatalf("first Price: %v", err)
	}
	caller.mu.Lock()
	firstCalls := caller.calls
	caller.mu.Unlock()

	if _, err := v.Price(context.Background()); err != nil {
		t.Fatalf("second Price: %v", err)
	}
	caller.mu.Lock()
	secondCalls := caller.calls
	caller.mu.Unlock()

	if secondCalls != firstCalls {
		t.Errorf("second Price hit the chain (%d -> %d calls), want cache", firstCalls, secondCalls)
	}
}

func TestPriceChainError(t *testing.T) {
	caller := &fakeCaller{err: errors.New("rpc down")}
	v := NewPairVenue("uniswap_v2", testPair, baseAddr, caller, nil, slog.Default())

	if _, err := v.Price(context.Background()); err == nil {
		t.Fatal("expected error when the chain is unreachable")
	}
}

func TestPriceConcurrentFirstReads(t *testing.T) {
	caller := &fakeCaller{
		token0:   quoteAddr,
		reserve0: big.NewInt(3_000),
		reserve1: big.NewInt(1_000),
	}
	v := NewPairVenue("sushiswap", testPair, baseAddr, caller, nil, slog.Default())

	const readers = 8
	var wg sync.WaitGroup
	errs := make(chan error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			price, err := v.Price(context.Background())
			if err != nil {
				errs <- err
				return
			}
			if got, _ := price.Float64(); got != 3.0 {
				errs <- fmt.Errorf("price = %f, want 3.0", got)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestOrientationRetriedAfterError(t *testing.T) {
	caller := &fakeCaller{err: errors.New("rpc down")}
	v := NewPairVenue("uniswap_v2", testPair, baseAddr, caller, nil, slog.Default())

	if _, err := v.Price(context.Background()); err == nil {
		t.Fatal("expected error while the chain is unreachable")
	}

	caller.mu.Lock()
	caller.err = nil
	caller.token0 = baseAddr
	caller.reserve0 = big.NewInt(1_000)
	caller.reserve1 = big.NewInt(3_000)
	caller.mu.Unlock()

	price, err := v.Price(context.Background())
	if err != nil {
		t.Fatalf("Price after recovery: %v", err)
	}
	if got, _ := price.Float64(); got != 3.0 {
		t.Errorf("price = %f, want 3.0", got)
	}
}

func TestCachedSnapshotCarriesTimestamp(t *testing.T) {
	caller := &fakeCaller{
		token0:   baseAddr,
		reserve0: big.NewInt(10),
		reserve1: big.NewInt(20),
	}
	cache := &memReserveCache{}
	v := NewPairVenue("uniswap_v2", testPair, baseAddr, caller, cache, slog.Default())

	before := time.Now().UTC()
	if _, err := v.Price(context.Background()); err != nil {
		t.Fatalf("Price: %v", err)
	}

	snap, ok, err := cache.Get(context.Background(), "uniswap_v2")
	if err != nil || !ok {
		t.Fatalf("expected cached snapshot, ok=%v err=%v", ok, err)
	}
	if snap.UpdatedAt.Before(before) {
		t.Errorf("snapshot timestamp %s predates the read", snap.UpdatedAt)
	}
}
