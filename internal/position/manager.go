package position

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pairsniper/internal/domain"
	"github.com/alanyoungcy/pairsniper/internal/policy"
)

// Quoter prices a token. *oracle.Oracle satisfies it.
type Quoter interface {
	Quote(ctx context.Context, token common.Address) (domain.PriceQuote, bool)
}

// Trader executes swaps. *trade.Swapper satisfies it.
type Trader interface {
	Buy(ctx context.Context, token common.Address, amountWei *big.Int) (domain.TxResult, error)
	Balance(ctx context.Context, token common.Address) (*big.Int, error)
	Sell(ctx context.Context, token common.Address, amount *big.Int) (domain.TxResult, error)
}

// Observer is told about decisions and state changes.
type Observer interface {
	ObserveDecision(d domain.Decision)
	ObserveTransition(from, to domain.PositionState)
}

// Config holds the trading parameters the state machine needs.
type Config struct {
	Wallet             common.Address
	BuyAmount          decimal.Decimal // base currency per buy
	EntryQuoteAttempts int
	EntryQuoteDelay    time.Duration
	Averaging          Averaging
}

// Manager creates and resumes per-token Machines. All machines share its
// collaborators.
type Manager struct {
	quoter   Quoter
	policy   policy.Policy
	trader   Trader
	book     *Book
	events   domain.EventPublisher
	observer Observer
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
	newID    func() string
}

// NewManager wires a Manager. events and observer may be nil.
func NewManager(q Quoter, p policy.Policy, t Trader, book *Book, events domain.EventPublisher, observer Observer, cfg Config, logger *slog.Logger) *Manager {
	if cfg.EntryQuoteAttempts <= 0 {
		cfg.EntryQuoteAttempts = 1
	}
	if cfg.Averaging == "" {
		cfg.Averaging = AveragingMidpoint
	}
	return &Manager{
		quoter:   q,
		policy:   p,
		trader:   t,
		book:     book,
		events:   events,
		observer: observer,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "position")),
		now:      time.Now,
		sleep:    sleepCtx,
		newID:    func() string { return uuid.NewString() },
	}
}

// Book returns the live-position set.
func (m *Manager) Book() *Book {
	return m.book
}

// Open buys token and, once the buy confirms, records an OPEN position
// priced from a quote taken after confirmation. admission is the quote
// that let the candidate in; it is logged but never used as the entry.
func (m *Manager) Open(ctx context.Context, token common.Address, admission domain.PriceQuote) (*Machine, error) {
	if _, exists := m.book.Get(token); exists {
		return nil, fmt.Errorf("position: open %s: %w", token.Hex(), domain.ErrPositionExists)
	}
	log := m.logger.With(slog.String("token", token.Hex()))
	log.Info("candidate accepted",
		slog.String("admission_price", admission.BasePerToken.String()),
		slog.String("path", string(admission.Path)),
	)
	m.transition(log, domain.StateDiscovered, domain.StateBuyPending)

	res, err := m.trader.Buy(ctx, token, toWei(m.cfg.BuyAmount))
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		log.Warn("buy failed, discarding candidate", slog.String("tx_hash", hashOf(res)), slog.String("error", err.Error()))
		m.publish(ctx, domain.LifecycleEvent{Kind: domain.EventBuyFailed, Token: token, State: domain.StateDiscovered, TxHash: hashOf(res), Reason: err.Error()})
		return nil, fmt.Errorf("position: open %s: %w: %w", token.Hex(), domain.ErrBuyFailed, err)
	}

	entry, ok := m.freshQuote(ctx, token)
	if !ok {
		// The tokens are in the wallet but there is no price to manage them by.
		log.Error("bought but no entry quote; position not tracked", slog.String("tx_hash", hashOf(res)))
		m.publish(ctx, domain.LifecycleEvent{Kind: domain.EventBuyFailed, Token: token, State: domain.StateBuyPending, TxHash: hashOf(res), Reason: domain.ErrNoEntryQuote.Error()})
		return nil, fmt.Errorf("position: open %s: %w", token.Hex(), domain.ErrNoEntryQuote)
	}

	now := m.now().UTC()
	pos := domain.Position{
		ID:                m.newID(),
		Token:             token,
		Wallet:            m.cfg.Wallet,
		State:             domain.StateOpen,
		AverageEntryPrice: entry.BasePerToken,
		CapitalCommitted:  m.cfg.BuyAmount,
		OpenedAt:          now,
		UpdatedAt:         now,
	}
	if err := m.book.Put(ctx, pos); err != nil {
		if errors.Is(err, domain.ErrPositionExists) {
			return nil, err
		}
		log.Warn("position not persisted", slog.String("error", err.Error()))
	}
	m.transition(log, domain.StateBuyPending, domain.StateOpen)
	log.Info("position opened",
		slog.String("entry_price", pos.AverageEntryPrice.String()),
		slog.String("capital", pos.CapitalCommitted.String()),
		slog.String("tx_hash", hashOf(res)),
	)
	m.publish(ctx, domain.LifecycleEvent{
		Kind:         domain.EventOpened,
		Token:        token,
		State:        domain.StateOpen,
		EntryPrice:   pos.AverageEntryPrice,
		CurrentPrice: entry.BasePerToken,
		Capital:      pos.CapitalCommitted,
		TxHash:       hashOf(res),
	})
	return &Machine{mgr: m, pos: pos}, nil
}

// Resume returns a machine for a position loaded from the store. A
// position that was mid-sell when the process stopped is put back to OPEN
// so the next tick re-evaluates it.
func (m *Manager) Resume(pos domain.Position) *Machine {
	if pos.State != domain.StateOpen {
		m.logger.Warn("resuming position as open",
			slog.String("token", pos.Token.Hex()),
			slog.String("stored_state", string(pos.State)),
		)
		pos.State = domain.StateOpen
	}
	return &Machine{mgr: m, pos: pos}
}

// freshQuote retries the oracle a few times; a just-created pool can lag
// the buy by a block.
func (m *Manager) freshQuote(ctx context.Context, token common.Address) (domain.PriceQuote, bool) {
	for attempt := 1; attempt <= m.cfg.EntryQuoteAttempts; attempt++ {
		if q, ok := m.quoter.Quote(ctx, token); ok {
			return q, true
		}
		if attempt < m.cfg.EntryQuoteAttempts {
			if err := m.sleep(ctx, m.cfg.EntryQuoteDelay); err != nil {
				return domain.PriceQuote{}, false
			}
		}
	}
	return domain.PriceQuote{}, false
}

func (m *Manager) transition(log *slog.Logger, from, to domain.PositionState) {
	log.Debug("position transition", slog.String("from", string(from)), slog.String("to", string(to)))
	if m.observer != nil {
		m.observer.ObserveTransition(from, to)
	}
}

func (m *Manager) publish(ctx context.Context, evt domain.LifecycleEvent) {
	if m.events == nil {
		return
	}
	if evt.At.IsZero() {
		evt.At = m.now().UTC()
	}
	if err := m.events.Publish(ctx, evt); err != nil {
		m.logger.Warn("publish event failed", slog.String("kind", string(evt.Kind)), slog.String("error", err.Error()))
	}
}

// toWei converts a base-currency amount to its 18-decimal raw form.
func toWei(amount decimal.Decimal) *big.Int {
	return amount.Shift(18).BigInt()
}

func hashOf(res domain.TxResult) string {
	if res.Hash == (common.Hash{}) {
		return ""
	}
	return res.Hash.Hex()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
