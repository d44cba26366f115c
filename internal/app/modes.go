package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/pairsniper/internal/domain"
	"github.com/alanyoungcy/pairsniper/internal/server"
	"github.com/alanyoungcy/pairsniper/internal/server/handler"
)

// SniperMode runs the control loop, plus the wallet-lock refresher and the
// status server when they are configured. The first goroutine to fail stops
// the rest.
func (a *App) SniperMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sniper",
		slog.String("wallet", deps.Wallet.Hex()),
		slog.String("base", deps.Base.Hex()),
		slog.Int("resumed_positions", deps.Book.Len()),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Loop.Run(ctx)
	})

	if deps.WalletLock != nil {
		interval := a.cfg.Redis.LockTTL.Duration / 3
		g.Go(func() error {
			return a.refreshLock(ctx, deps.WalletLock, interval)
		})
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	return g.Wait()
}

// refreshLock keeps the wallet lock alive. Losing it to another process is
// fatal; transient Redis errors are retried on the next tick.
func (a *App) refreshLock(ctx context.Context, lock domain.Lock, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := lock.Refresh(ctx)
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrLockHeld):
				return fmt.Errorf("app: wallet lock lost: %w", err)
			default:
				a.logger.WarnContext(ctx, "wallet lock refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}

// startHTTPServer adds the status server and its websocket hub to the
// errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.Book.Len),
		Status: &handler.StatusHandler{
			Wallet:    deps.Wallet.Hex(),
			BaseToken: deps.Base.Hex(),
			Router:    deps.Router.Hex(),
			Averaging: a.cfg.Trading.Averaging,
			StartedAt: time.Now(),
		},
		Positions: handler.NewPositionHandler(deps.Book, a.logger),
		Metrics:   deps.Metrics.Handler(),
	}
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, deps.Hub, a.root)

	if deps.Hub != nil {
		g.Go(func() error {
			return deps.Hub.Run(ctx)
		})
	}

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
