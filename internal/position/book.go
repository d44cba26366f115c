// Package position owns the live-position set and the per-token state
// machine that carries a position from entry to exit.
package position

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/pairsniper/internal/domain"
)

// Book is the live-position set, keyed by canonical token address. Every
// change is written through to the store when one is configured; the
// in-memory copy stays authoritative if a write fails.
type Book struct {
	wallet common.Address
	store  domain.PositionStore
	logger *slog.Logger

	mu        sync.RWMutex
	positions map[common.Address]domain.Position
}

// NewBook creates an empty Book. store may be nil.
func NewBook(wallet common.Address, store domain.PositionStore, logger *slog.Logger) *Book {
	return &Book{
		wallet:    wallet,
		store:     store,
		logger:    logger.With(slog.String("component", "book")),
		positions: make(map[common.Address]domain.Position),
	}
}

// Load replaces the in-memory set with the store's live positions.
func (b *Book) Load(ctx context.Context) error {
	if b.store == nil {
		return nil
	}
	stored, err := b.store.Load(ctx, b.wallet)
	if err != nil {
		return fmt.Errorf("position: load book: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.positions = make(map[common.Address]domain.Position, len(stored))
	for _, p := range stored {
		if p.State.Terminal() || !p.AverageEntryPrice.IsPositive() {
			b.logger.Warn("ignoring stored position",
				slog.String("token", p.Token.Hex()),
				slog.String("state", string(p.State)),
			)
			continue
		}
		if _, dup := b.positions[p.Token]; dup {
			b.logger.Warn("duplicate stored position", slog.String("token", p.Token.Hex()))
			continue
		}
		b.positions[p.Token] = p
	}
	b.logger.Info("book loaded", slog.Int("positions", len(b.positions)))
	return nil
}

// Get returns the position for token.
func (b *Book) Get(token common.Address) (domain.Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.positions[token]
	return p, ok
}

// Put inserts or updates pos. A second, different position for a token
// already in the book is rejected with ErrPositionExists.
func (b *Book) Put(ctx context.Context, pos domain.Position) error {
	b.mu.Lock()
	if cur, ok := b.positions[pos.Token]; ok && cur.ID != pos.ID {
		b.mu.Unlock()
		return fmt.Errorf("position: put %s: %w", pos.Token.Hex(), domain.ErrPositionExists)
	}
	b.positions[pos.Token] = pos
	b.mu.Unlock()

	if b.store == nil {
		return nil
	}
	if err := b.store.Save(ctx, pos); err != nil {
		return fmt.Errorf("position: save %s: %w", pos.Token.Hex(), err)
	}
	return nil
}

// Remove drops token from the live set.
func (b *Book) Remove(ctx context.Context, token common.Address) error {
	b.mu.Lock()
	delete(b.positions, token)
	b.mu.Unlock()

	if b.store == nil {
		return nil
	}
	if err := b.store.Delete(ctx, b.wallet, token); err != nil {
		return fmt.Errorf("position: delete %s: %w", token.Hex(), err)
	}
	return nil
}

// List returns the live positions, oldest first.
func (b *Book) List() []domain.Position {
	b.mu.RLock()
	out := make([]domain.Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, p)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out
}

// Len returns the number of live positions.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.positions)
}
