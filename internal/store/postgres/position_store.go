package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pairsniper/internal/domain"
)

// PositionStore implements domain.PositionStore on the positions table.
type PositionStore struct {
	pool *pgxpool.Pool
}

var _ domain.PositionStore = (*PositionStore)(nil)

// NewPositionStore creates a PositionStore over pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const (
	loadPositionsSQL = `
		SELECT id, token, state, average_entry_price::text, capital_committed::text,
		       has_doubled_down, opened_at, updated_at
		FROM positions WHERE wallet = $1 ORDER BY opened_at`

	// Rows are keyed by (wallet, token); opened_at is never rewritten.
	upsertPositionSQL = `
		INSERT INTO positions (wallet, token, id, state, average_entry_price, capital_committed,
		                       has_doubled_down, opened_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8, $9)
		ON CONFLICT (wallet, token) DO UPDATE SET
			id = EXCLUDED.id,
			state = EXCLUDED.state,
			average_entry_price = EXCLUDED.average_entry_price,
			capital_committed = EXCLUDED.capital_committed,
			has_doubled_down = EXCLUDED.has_doubled_down,
			updated_at = EXCLUDED.updated_at`
)

func (s *PositionStore) Load(ctx context.Context, wallet common.Address) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx, loadPositionsSQL, wallet.Hex())
	if err != nil {
		return nil, fmt.Errorf("postgres: load positions: %w", err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows, wallet)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PositionStore) Save(ctx context.Context, p domain.Position) error {
	if _, err := s.pool.Exec(ctx, upsertPositionSQL, upsertArgs(p)...); err != nil {
		return fmt.Errorf("postgres: save position %s: %w", p.Token.Hex(), err)
	}
	return nil
}

// scanPosition reads one loadPositionsSQL row. Decimals travel as text so
// NUMERIC precision survives the round trip.
func scanPosition(row pgx.Row, wallet common.Address) (domain.Position, error) {
	var (
		p              domain.Position
		token, state   string
		entry, capital string
		err            error
	)
	if err = row.Scan(&p.ID, &token, &state, &entry, &capital, &p.HasDoubledDown, &p.OpenedAt, &p.UpdatedAt); err != nil {
		return domain.Position{}, fmt.Errorf("postgres: scan position: %w", err)
	}
	if p.AverageEntryPrice, err = decimal.NewFromString(entry); err != nil {
		return domain.Position{}, fmt.Errorf("postgres: entry price for %s: %w", token, err)
	}
	if p.CapitalCommitted, err = decimal.NewFromString(capital); err != nil {
		return domain.Position{}, fmt.Errorf("postgres: capital for %s: %w", token, err)
	}
	p.Token = common.HexToAddress(token)
	p.Wallet = wallet
	p.State = domain.PositionState(state)
	return p, nil
}

// upsertArgs returns the upsertPositionSQL parameters for p.
func upsertArgs(p domain.Position) []any {
	return []any{
		p.Wallet.Hex(), p.Token.Hex(), p.ID, string(p.State),
		p.AverageEntryPrice.String(), p.CapitalCommitted.String(),
		p.HasDoubledDown, p.OpenedAt, p.UpdatedAt,
	}
}

func (s *PositionStore) Delete(ctx context.Context, wallet, token common.Address) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM positions WHERE wallet = $1 AND token = $2`, wallet.Hex(), token.Hex()); err != nil {
		return fmt.Errorf("postgres: delete position %s: %w", token.Hex(), err)
	}
	return nil
}
