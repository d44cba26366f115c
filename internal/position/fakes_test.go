package position

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
	"github.com/alanyoungcy/pairsniper/internal/store/memory"
)

var (
	wallet = common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
	tokenX = common.HexToAddress("0xABC0000000000000000000000000000000000001")
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// scriptedQuoter returns prices in order; "" means no quote. The last entry
// repeats once the script runs out.
type scriptedQuoter struct {
	prices []string
	calls  int
}

func (q *scriptedQuoter) Quote(_ context.Context, token common.Address) (domain.PriceQuote, bool) {
	i := q.calls
	if i >= len(q.prices) {
		i = len(q.prices) - 1
	}
	q.calls++
	if i < 0 || q.prices[i] == "" {
		return domain.PriceQuote{}, false
	}
	return domain.PriceQuote{Token: token, BasePerToken: dec(q.prices[i]), Path: domain.QuotePathDirect}, true
}

type fakeTrader struct {
	balance  *big.Int
	buyFail  bool
	sellFail bool
	buys     []*big.Int
	sells    []*big.Int
}

func (f *fakeTrader) Buy(_ context.Context, _ common.Address, amount *big.Int) (domain.TxResult, error) {
	f.buys = append(f.buys, amount)
	if f.buyFail {
		return domain.TxResult{Status: domain.TxConfirmedFailure}, nil
	}
	return domain.TxResult{Status: domain.TxConfirmedSuccess, Hash: common.HexToHash("0xb1")}, nil
}

func (f *fakeTrader) Balance(context.Context, common.Address) (*big.Int, error) {
	if f.balance == nil {
		return nil, errors.New("rpc down")
	}
	return f.balance, nil
}

func (f *fakeTrader) Sell(_ context.Context, _ common.Address, amount *big.Int) (domain.TxResult, error) {
	f.sells = append(f.sells, amount)
	if f.sellFail {
		return domain.TxResult{Status: domain.TxConfirmedFailure}, nil
	}
	return domain.TxResult{Status: domain.TxConfirmedSuccess, Hash: common.HexToHash("0x5e11")}, nil
}

type fixedPolicy struct{ d domain.Decision }

func (p fixedPolicy) Decide(context.Context, policy.Input) domain.Decision { return p.d }

type recordingEvents struct{ kinds []domain.EventKind }

func (r *recordingEvents) Publish(_ context.Context, evt domain.LifecycleEvent) error {
	r.kinds = append(r.kinds, evt.Kind)
	return nil
}

type harness struct {
	mgr    *Manager
	quoter *scriptedQuoter
	trader *fakeTrader
	store  *memory.PositionStore
	events *recordingEvents
}

func newHarness(t *testing.T, p policy.Policy, prices []string, averaging Averaging) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		quoter: &scriptedQuoter{prices: prices},
		trader: &fakeTrader{balance: big.NewInt(1_000_000)},
		store:  memory.NewPositionStore(),
		events: &recordingEvents{},
	}
	book := NewBook(wallet, h.store, logger)
	h.mgr = NewManager(h.quoter, p, h.trader, book, h.events, nil, Config{
		Wallet:             wallet,
		BuyAmount:          dec("0.001"),
		EntryQuoteAttempts: 2,
		Averaging:          averaging,
	}, logger)
	h.mgr.sleep = func(context.Context, time.Duration) error { return nil }
	return h
}

func (h *harness) stored(t *testing.T) []domain.Position {
	t.Helper()
	ps, err := h.store.Load(context.Background(), wallet)
	if err != nil {
		t.Fatal(err)
	}
	return ps
}

func admission(price string) domain.PriceQuote {
	return domain.PriceQuote{Token: tokenX, BasePerToken: dec(price), Path: domain.QuotePathDirect}
}
