package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PositionStore persists the live-position set so that a restart can resume
// managing positions that were open when the process stopped. Only live
// positions are stored; closed ones are deleted.
type PositionStore interface {
	Load(ctx context.Context, wallet common.Address) ([]Position, error)
	Save(ctx context.Context, pos Position) error
	Delete(ctx context.Context, wallet, token common.Address) error
}

// LockManager provides an exclusive, expiring lock.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Lock is a held lock. Refresh extends it by its original TTL.
type Lock interface {
	Refresh(ctx context.Context) error
	Release()
}
