package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pairsniper/internal/domain"
	"github.com/alanyoungcy/pairsniper/internal/policy"
	"github.com/alanyoungcy/pairsniper/internal/position"
	"github.com/alanyoungcy/pairsniper/internal/store/memory"
)

var (
	wbnb   = common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c")
	wallet = common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
	tokenA = common.HexToAddress("0xABC0000000000000000000000000000000000001")
	tokenB = common.HexToAddress("0xABC0000000000000000000000000000000000002")
)

type fakeFeed struct {
	batches [][]domain.PairCreated
	err     error
	panics  bool
	polls   int
}

func (f *fakeFeed) Poll(context.Context) ([]domain.PairCreated, error) {
	f.polls++
	if f.panics {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, nil
}

type mapQuoter struct {
	prices map[common.Address]string
	calls  int
}

func (q *mapQuoter) Quote(_ context.Context, token common.Address) (domain.PriceQuote, bool) {
	q.calls++
	p, ok := q.prices[token]
	if !ok {
		return domain.PriceQuote{}, false
	}
	return domain.PriceQuote{Token: token, BasePerToken: decimal.RequireFromString(p), Path: domain.QuotePathDirect}, true
}

type countingTrader struct {
	buys, sells int
	buyFail     bool
}

func (c *countingTrader) Buy(context.Context, common.Address, *big.Int) (domain.TxResult, error) {
	c.buys++
	if c.buyFail {
		return domain.TxResult{Status: domain.TxTimeout}, nil
	}
	return domain.TxResult{Status: domain.TxConfirmedSuccess}, nil
}

func (c *countingTrader) Balance(context.Context, common.Address) (*big.Int, error) {
	return big.NewInt(10), nil
}

func (c *countingTrader) Sell(context.Context, common.Address, *big.Int) (domain.TxResult, error) {
	c.sells++
	return domain.TxResult{Status: domain.TxConfirmedSuccess}, nil
}

type fixture struct {
	loop   *Loop
	feed   *fakeFeed
	quoter *mapQuoter
	trader *countingTrader
	store  *memory.PositionStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		feed:   &fakeFeed{},
		quoter: &mapQuoter{prices: map[common.Address]string{}},
		trader: &countingTrader{},
		store:  memory.NewPositionStore(),
	}
	book := position.NewBook(wallet, f.store, logger)
	pol := &policy.Threshold{ProfitMarginPct: decimal.NewFromInt(200), StopLossPct: decimal.NewFromInt(50)}
	mgr := position.NewManager(f.quoter, pol, f.trader, book, nil, nil, position.Config{
		Wallet:    wallet,
		BuyAmount: decimal.RequireFromString("0.001"),
	}, logger)
	f.loop = New(f.feed, f.quoter, mgr, wbnb, Config{
		DiscoveryInterval: 2 * time.Second,
		MonitorInterval:   time.Minute,
		ErrorBackoff:      10 * time.Second,
		SeenTTL:           time.Hour,
	}, logger)
	return f
}

func pair(t0, t1 common.Address) domain.PairCreated {
	return domain.PairCreated{Token0: t0, Token1: t1, Pair: common.HexToAddress("0xfeed")}
}

func TestUnquotableTokenIsNotBought(t *testing.T) {
	f := newFixture(t)
	f.feed.batches = [][]domain.PairCreated{{pair(wbnb, tokenA)}}

	if err := f.loop.Iterate(context.Background()); err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if f.trader.buys != 0 {
		t.Fatal("a token without a quote must not be bought")
	}
	if f.loop.Active() != nil {
		t.Fatal("no position should be active")
	}
}

func TestPairWithoutBaseLegIgnored(t *testing.T) {
	f := newFixture(t)
	f.quoter.prices[tokenA] = "0.01"
	f.feed.batches = [][]domain.PairCreated{{pair(tokenA, tokenB)}}

	if err := f.loop.Iterate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.quoter.calls != 0 || f.trader.buys != 0 {
		t.Fatal("non-base pair should not be quoted or bought")
	}
}

func TestEntryThenMonitorToExit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.quoter.prices[tokenA] = "0.01"
	f.feed.batches = [][]domain.PairCreated{{pair(tokenA, wbnb), pair(wbnb, tokenB)}}
	f.quoter.prices[tokenB] = "0.5"

	if err := f.loop.Iterate(ctx); err != nil {
		t.Fatal(err)
	}
	m := f.loop.Active()
	if m == nil || m.State() != domain.StateOpen {
		t.Fatal("expected an open position for tokenA")
	}
	if p := m.Position(); p.Token != tokenA || !p.AverageEntryPrice.Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("unexpected position %+v", p)
	}

	// While the position is live, discovery is paused.
	polls := f.feed.polls
	if err := f.loop.Iterate(ctx); err != nil {
		t.Fatal(err)
	}
	if f.feed.polls != polls || f.trader.buys != 1 {
		t.Fatal("discovery ran while a position was open")
	}

	f.quoter.prices[tokenA] = "0.03"
	if err := f.loop.Iterate(ctx); err != nil {
		t.Fatal(err)
	}
	if f.loop.Active() != nil || f.trader.sells != 1 {
		t.Fatal("take-profit should close the position")
	}

	// The queued tokenB candidate is handled before polling again.
	if err := f.loop.Iterate(ctx); err != nil {
		t.Fatal(err)
	}
	if f.feed.polls != polls || f.loop.Active() == nil || f.loop.Active().Position().Token != tokenB {
		t.Fatal("queued candidate was not processed")
	}
}

func TestFailedBuyMakesTokenEligibleAgain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.quoter.prices[tokenA] = "0.01"
	f.trader.buyFail = true
	f.feed.batches = [][]domain.PairCreated{{pair(wbnb, tokenA)}, {pair(wbnb, tokenA)}}

	_ = f.loop.Iterate(ctx)
	f.trader.buyFail = false
	_ = f.loop.Iterate(ctx)
	if f.trader.buys != 2 || f.loop.Active() == nil {
		t.Fatalf("buys got=%d, want rediscovery after failed buy", f.trader.buys)
	}
}

func TestDuplicatePairSuppressed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.feed.batches = [][]domain.PairCreated{{pair(wbnb, tokenA), pair(tokenA, wbnb)}}

	_ = f.loop.Iterate(ctx)
	if f.quoter.calls != 1 {
		t.Fatalf("quotes got=%d want=1", f.quoter.calls)
	}
}

func TestStoredPositionResumedBeforeDiscovery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.store.Save(ctx, domain.Position{
		ID: "p1", Token: tokenA, Wallet: wallet, State: domain.StateOpen,
		AverageEntryPrice: decimal.RequireFromString("0.01"), CapitalCommitted: decimal.RequireFromString("0.001"),
	})
	if err := f.loop.mgr.Book().Load(ctx); err != nil {
		t.Fatal(err)
	}
	f.quoter.prices[tokenA] = "0.001"
	f.loop.resume()

	if err := f.loop.Iterate(ctx); err != nil {
		t.Fatal(err)
	}
	if f.feed.polls != 0 {
		t.Fatal("feed polled before resumed position was handled")
	}
	if f.trader.sells != 1 {
		t.Fatal("resumed position at -90% should be stopped out")
	}
}

func TestRunBacksOffOnErrorAndPanic(t *testing.T) {
	for _, tc := range []struct {
		name  string
		setup func(*fakeFeed)
	}{
		{"error", func(ff *fakeFeed) { ff.err = errors.New("rpc down") }},
		{"panic", func(ff *fakeFeed) { ff.panics = true }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tc.setup(f.feed)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var delays []time.Duration
			f.loop.sleep = func(ctx context.Context, d time.Duration) error {
				delays = append(delays, d)
				if len(delays) == 3 {
					cancel()
				}
				return ctx.Err()
			}
			err := f.loop.Run(ctx)
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("Run err got=%v want context.Canceled", err)
			}
			if f.feed.polls != 3 {
				t.Fatalf("polls got=%d want=3 (loop must survive failures)", f.feed.polls)
			}
			for _, d := range delays {
				if d != 10*time.Second {
					t.Fatalf("delay got=%s want=10s backoff", d)
				}
			}
		})
	}
}
