// Package engine runs the discovery and monitoring loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/pairsniper/internal/domain"
	"github.com/alanyoungcy/pairsniper/internal/position"
)

// Feed yields newly created pairs. *chain.PairFeed satisfies it.
type Feed interface {
	Poll(ctx context.Context) ([]domain.PairCreated, error)
}

// Observer is told about loop failures and feed volume.
type Observer interface {
	ObserveLoopError()
	ObservePairs(n int)
}

// Config sets the loop cadence.
type Config struct {
	DiscoveryInterval time.Duration
	MonitorInterval   time.Duration
	ErrorBackoff      time.Duration
	// SeenTTL suppresses re-evaluating a token for this long after it was
	// last considered. Zero disables it.
	SeenTTL time.Duration
}

// Loop is the single thread of control. While a position is live it
// advances that position's machine one tick per iteration; otherwise it
// polls the feed for candidates. At most one position is live at a time.
type Loop struct {
	feed     Feed
	quoter   position.Quoter
	mgr      *position.Manager
	base     common.Address
	cfg      Config
	logger   *slog.Logger
	observer Observer
	seen     *seenTokens
	sleep    func(context.Context, time.Duration) error

	active  *position.Machine
	resumed []*position.Machine
	pending []domain.PairCreated
}

// New creates a Loop.
func New(feed Feed, quoter position.Quoter, mgr *position.Manager, base common.Address, cfg Config, logger *slog.Logger) *Loop {
	return &Loop{
		feed:   feed,
		quoter: quoter,
		mgr:    mgr,
		base:   base,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "engine")),
		seen:   newSeenTokens(cfg.SeenTTL),
		sleep:  sleepCtx,
	}
}

// SetObserver attaches an observer. Call before Run.
func (l *Loop) SetObserver(o Observer) {
	l.observer = o
}

// Run resumes any stored positions, then iterates until ctx ends. An
// iteration error or panic is logged and followed by the error backoff;
// it never stops the loop.
func (l *Loop) Run(ctx context.Context) error {
	l.resume()
	l.logger.Info("control loop started",
		slog.String("base", l.base.Hex()),
		slog.Duration("discovery_interval", l.cfg.DiscoveryInterval),
		slog.Duration("monitor_interval", l.cfg.MonitorInterval),
	)
	defer l.logger.Info("control loop stopped")

	for {
		err := l.safeIterate(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		delay := l.cfg.DiscoveryInterval
		switch {
		case err != nil:
			l.logger.Error("iteration failed", slog.String("error", err.Error()))
			if l.observer != nil {
				l.observer.ObserveLoopError()
			}
			delay = l.cfg.ErrorBackoff
		case l.active != nil:
			delay = l.cfg.MonitorInterval
		case len(l.pending) > 0 || len(l.resumed) > 0:
			delay = 0
		}
		if err := l.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// Iterate performs one step: a monitoring tick if a position is live,
// otherwise candidate processing.
func (l *Loop) Iterate(ctx context.Context) error {
	if l.active == nil && len(l.resumed) > 0 {
		l.active, l.resumed = l.resumed[0], l.resumed[1:]
	}
	if l.active != nil {
		if l.active.Tick(ctx) {
			p := l.active.Position()
			l.logger.Info("position closed",
				slog.String("token", p.Token.Hex()),
				slog.String("state", string(p.State)),
			)
			l.active = nil
		}
		return nil
	}

	if len(l.pending) == 0 {
		events, err := l.feed.Poll(ctx)
		if err != nil {
			return fmt.Errorf("engine: poll: %w", err)
		}
		l.seen.prune()
		if l.observer != nil && len(events) > 0 {
			l.observer.ObservePairs(len(events))
		}
		l.pending = events
	}
	for len(l.pending) > 0 {
		evt := l.pending[0]
		l.pending = l.pending[1:]
		if l.consider(ctx, evt) {
			return nil
		}
	}
	return nil
}

// Active returns the machine currently being monitored, if any.
func (l *Loop) Active() *position.Machine {
	return l.active
}

// consider runs admission and entry for one pair. It reports whether a
// position was opened.
func (l *Loop) consider(ctx context.Context, evt domain.PairCreated) bool {
	token, ok := evt.CounterLeg(l.base)
	if !ok {
		l.logger.Debug("pair without base leg ignored",
			slog.String("token0", evt.Token0.Hex()),
			slog.String("token1", evt.Token1.Hex()),
		)
		return false
	}
	log := l.logger.With(slog.String("token", token.Hex()), slog.String("pair", evt.Pair.Hex()))
	if _, held := l.mgr.Book().Get(token); held {
		log.Debug("token already held")
		return false
	}
	if l.seen.mark(token) {
		log.Debug("token recently considered")
		return false
	}
	log.Info("new pair", slog.Uint64("block", evt.BlockNumber))

	q, ok := l.quoter.Quote(ctx, token)
	if !ok {
		log.Info("no quote, skipping candidate")
		return false
	}

	m, err := l.mgr.Open(ctx, token, q)
	if err != nil {
		if errors.Is(err, domain.ErrBuyFailed) {
			l.seen.forget(token)
		}
		log.Warn("entry failed", slog.String("error", err.Error()))
		return false
	}
	l.active = m
	return true
}

func (l *Loop) resume() {
	for _, p := range l.mgr.Book().List() {
		l.logger.Info("resuming stored position",
			slog.String("token", p.Token.Hex()),
			slog.String("entry_price", p.AverageEntryPrice.String()),
		)
		l.resumed = append(l.resumed, l.mgr.Resume(p))
	}
}

func (l *Loop) safeIterate(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine: iteration panic: %v", r)
		}
	}()
	return l.Iterate(ctx)
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
