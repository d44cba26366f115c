// Package sqlite persists the live-position set in a local SQLite file
// (pure-Go driver, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/alanyoungcy/pairsniper/internal/domain"
)

// PositionStore implements domain.PositionStore.
type PositionStore struct {
	db *sql.DB
}

var _ domain.PositionStore = (*PositionStore)(nil)

// Open opens or creates the database at path and ensures the schema.
func Open(ctx context.Context, path string) (*PositionStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &PositionStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *PositionStore) Close() error {
	return s.db.Close()
}

func (s *PositionStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS positions (
  wallet TEXT NOT NULL,
  token TEXT NOT NULL,
  id TEXT NOT NULL,
  state TEXT NOT NULL,
  average_entry_price TEXT NOT NULL,
  capital_committed TEXT NOT NULL,
  has_doubled_down INTEGER NOT NULL DEFAULT 0,
  opened_at_ms INTEGER NOT NULL,
  updated_at_ms INTEGER NOT NULL,
  PRIMARY KEY (wallet, token)
);`)
	if err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

func (s *PositionStore) Load(ctx context.Context, wallet common.Address) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, token, state, average_entry_price, capital_committed, has_doubled_down, opened_at_ms, updated_at_ms
FROM positions WHERE wallet = ? ORDER BY opened_at_ms`, wallet.Hex())
	if err != nil {
		return nil, fmt.Errorf("sqlite: load positions: %w", err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		var (
			p                   domain.Position
			token, state        string
			entry, capital      string
			doubled             int
			openedMs, updatedMs int64
		)
		if err := rows.Scan(&p.ID, &token, &state, &entry, &capital, &doubled, &openedMs, &updatedMs); err != nil {
			return nil, fmt.Errorf("sqlite: scan position: %w", err)
		}
		if p.AverageEntryPrice, err = decimal.NewFromString(entry); err != nil {
			return nil, fmt.Errorf("sqlite: entry price for %s: %w", token, err)
		}
		if p.CapitalCommitted, err = decimal.NewFromString(capital); err != nil {
			return nil, fmt.Errorf("sqlite: capital for %s: %w", token, err)
		}
		p.Token = common.HexToAddress(token)
		p.Wallet = wallet
		p.State = domain.PositionState(state)
		p.HasDoubledDown = doubled != 0
		p.OpenedAt = time.UnixMilli(openedMs).UTC()
		p.UpdatedAt = time.UnixMilli(updatedMs).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PositionStore) Save(ctx context.Context, p domain.Position) error {
	doubled := 0
	if p.HasDoubledDown {
		doubled = 1
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO positions (wallet, token, id, state, average_entry_price, capital_committed, has_doubled_down, opened_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(wallet, token) DO UPDATE SET
  id = excluded.id,
  state = excluded.state,
  average_entry_price = excluded.average_entry_price,
  capital_committed = excluded.capital_committed,
  has_doubled_down = excluded.has_doubled_down,
  updated_at_ms = excluded.updated_at_ms`,
		p.Wallet.Hex(), p.Token.Hex(), p.ID, string(p.State),
		p.AverageEntryPrice.String(), p.CapitalCommitted.String(), doubled,
		p.OpenedAt.UnixMilli(), p.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save position %s: %w", p.Token.Hex(), err)
	}
	return nil
}

func (s *PositionStore) Delete(ctx context.Context, wallet, token common.Address) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM positions WHERE wallet = ? AND token = ?`, wallet.Hex(), token.Hex()); err != nil {
		return fmt.Errorf("sqlite: delete position %s: %w", token.Hex(), err)
	}
	return nil
}
