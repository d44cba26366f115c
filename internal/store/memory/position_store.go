// Package memory is a process-local PositionStore. Nothing survives a
// restart; it is the backend for dry runs and tests.
package memory

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/pairsniper/internal/domain"
)

type key struct {
	wallet common.Address
	token  common.Address
}

// PositionStore keeps positions in a map.
type PositionStore struct {
	mu        sync.Mutex
	positions map[key]domain.Position
}

var _ domain.PositionStore = (*PositionStore)(nil)

// NewPositionStore returns an empty store.
func NewPositionStore() *PositionStore {
	return &PositionStore{positions: make(map[key]domain.Position)}
}

func (s *PositionStore) Load(_ context.Context, wallet common.Address) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Position
	for k, p := range s.positions {
		if k.wallet == wallet {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *PositionStore) Save(_ context.Context, pos domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[key{pos.Wallet, pos.Token}] = pos
	return nil
}

func (s *PositionStore) Delete(_ context.Context, wallet, token common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.positions, key{wallet, token})
	return nil
}
