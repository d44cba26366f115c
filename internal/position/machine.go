package position

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/pairsniper/internal/domain"
	"github.com/alanyoungcy/pairsniper/internal/policy"
)

// Machine is the state machine for one token's position. Each Tick is one
// monitoring step. A Machine is driven by a single goroutine.
type Machine struct {
	mgr *Manager
	pos domain.Position
}

// State returns the current state.
func (m *Machine) State() domain.PositionState {
	return m.pos.State
}

// Position returns a copy of the position.
func (m *Machine) Position() domain.Position {
	return m.pos
}

// Tick quotes the token, asks the policy and acts on the answer. It
// reports whether the machine has reached a terminal state.
func (m *Machine) Tick(ctx context.Context) bool {
	if m.pos.State.Terminal() {
		return true
	}
	log := m.mgr.logger.With(slog.String("token", m.pos.Token.Hex()))

	q, ok := m.mgr.quoter.Quote(ctx, m.pos.Token)
	if !ok {
		log.Info("no quote, skipping tick")
		return false
	}

	in := policy.Input{
		Token:            m.pos.Token,
		EntryPrice:       m.pos.AverageEntryPrice,
		CurrentPrice:     q.BasePerToken,
		CapitalCommitted: m.pos.CapitalCommitted,
	}
	decision := m.mgr.policy.Decide(ctx, in)
	if m.mgr.observer != nil {
		m.mgr.observer.ObserveDecision(decision)
	}
	log.Info("position check",
		slog.String("entry_price", in.EntryPrice.String()),
		slog.String("current_price", in.CurrentPrice.String()),
		slog.String("profit_pct", in.ProfitPct().StringFixed(2)),
		slog.String("decision", string(decision)),
	)

	switch decision {
	case domain.DecisionSell:
		return m.sell(ctx, log, q)
	case domain.DecisionBuyMore:
		if m.pos.HasDoubledDown {
			log.Info("already doubled down, holding")
			return false
		}
		m.doubleDown(ctx, log, q)
	}
	return false
}

func (m *Machine) doubleDown(ctx context.Context, log *slog.Logger, tickQuote domain.PriceQuote) {
	mgr := m.mgr
	res, err := mgr.trader.Buy(ctx, m.pos.Token, toWei(mgr.cfg.BuyAmount))
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		log.Warn("double-down buy failed", slog.String("tx_hash", hashOf(res)), slog.String("error", err.Error()))
		mgr.publish(ctx, m.event(domain.EventBuyFailed, tickQuote, hashOf(res), err.Error()))
		return
	}

	oldPrice, oldCap := m.pos.AverageEntryPrice, m.pos.CapitalCommitted
	reason := string(mgr.cfg.Averaging)
	fill, ok := mgr.freshQuote(ctx, m.pos.Token)
	if ok {
		m.pos.AverageEntryPrice = mgr.cfg.Averaging.Apply(oldPrice, oldCap, fill.BasePerToken, mgr.cfg.BuyAmount)
	} else {
		// The entry price only ever moves on a post-buy quote.
		log.Warn("no quote after double-down, keeping entry price",
			slog.String("entry_price", oldPrice.String()),
			slog.String("tx_hash", hashOf(res)),
		)
		fill = tickQuote
		reason = "no post-buy quote, entry price kept"
	}
	m.pos.CapitalCommitted = oldCap.Add(mgr.cfg.BuyAmount)
	m.pos.HasDoubledDown = true
	m.pos.UpdatedAt = mgr.now().UTC()
	m.save(ctx, log)

	log.Info("doubled down",
		slog.String("averaging", string(mgr.cfg.Averaging)),
		slog.String("old_entry_price", oldPrice.String()),
		slog.String("fill_price", fill.BasePerToken.String()),
		slog.String("entry_price", m.pos.AverageEntryPrice.String()),
		slog.String("capital", m.pos.CapitalCommitted.String()),
		slog.String("tx_hash", hashOf(res)),
	)
	mgr.publish(ctx, m.event(domain.EventDoubledDown, fill, hashOf(res), reason))
}

func (m *Machine) sell(ctx context.Context, log *slog.Logger, q domain.PriceQuote) bool {
	mgr := m.mgr
	m.setState(ctx, log, domain.StateSellPending)

	bal, err := mgr.trader.Balance(ctx, m.pos.Token)
	if err != nil {
		log.Warn("balance check failed, staying open", slog.String("error", err.Error()))
		m.setState(ctx, log, domain.StateOpen)
		mgr.publish(ctx, m.event(domain.EventSellFailed, q, "", err.Error()))
		return false
	}
	if bal.Sign() == 0 {
		log.Warn("token balance is zero, abandoning position")
		m.close(ctx, log, domain.StateClosedAbandoned)
		mgr.publish(ctx, m.event(domain.EventAbandoned, q, "", "zero balance"))
		return true
	}

	res, err := mgr.trader.Sell(ctx, m.pos.Token, bal)
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		log.Warn("sell failed, staying open", slog.String("tx_hash", hashOf(res)), slog.String("error", err.Error()))
		m.setState(ctx, log, domain.StateOpen)
		mgr.publish(ctx, m.event(domain.EventSellFailed, q, hashOf(res), err.Error()))
		return false
	}

	log.Info("position sold",
		slog.String("amount", bal.String()),
		slog.String("exit_price", q.BasePerToken.String()),
		slog.String("tx_hash", hashOf(res)),
	)
	m.close(ctx, log, domain.StateClosedSold)
	mgr.publish(ctx, m.event(domain.EventSold, q, hashOf(res), ""))
	return true
}

func (m *Machine) setState(ctx context.Context, log *slog.Logger, to domain.PositionState) {
	from := m.pos.State
	m.pos.State = to
	m.pos.UpdatedAt = m.mgr.now().UTC()
	m.mgr.transition(log, from, to)
	m.save(ctx, log)
}

func (m *Machine) close(ctx context.Context, log *slog.Logger, to domain.PositionState) {
	from := m.pos.State
	m.pos.State = to
	m.pos.UpdatedAt = m.mgr.now().UTC()
	m.mgr.transition(log, from, to)
	if err := m.mgr.book.Remove(ctx, m.pos.Token); err != nil {
		log.Warn("position removal not persisted", slog.String("error", err.Error()))
	}
}

func (m *Machine) save(ctx context.Context, log *slog.Logger) {
	if err := m.mgr.book.Put(ctx, m.pos); err != nil {
		log.Warn("position not persisted", slog.String("error", err.Error()))
	}
}

func (m *Machine) event(kind domain.EventKind, q domain.PriceQuote, txHash, reason string) domain.LifecycleEvent {
	return domain.LifecycleEvent{
		Kind:         kind,
		Token:        m.pos.Token,
		State:        m.pos.State,
		EntryPrice:   m.pos.AverageEntryPrice,
		CurrentPrice: q.BasePerToken,
		Capital:      m.pos.CapitalCommitted,
		TxHash:       txHash,
		Reason:       reason,
	}
}
