package postgres

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pairsniper/internal/domain"
)

var (
	wallet = common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
	token  = common.HexToAddress("0xABC0000000000000000000000000000000000001")
)

// textRow plays back one row the way pgx hands values to Scan.
type textRow struct {
	values []any
	err    error
}

func (r textRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch d := d.(type) {
		case *string:
			*d = r.values[i].(string)
		case *bool:
			*d = r.values[i].(bool)
		case *time.Time:
			*d = r.values[i].(time.Time)
		default:
			return errors.New("unexpected scan target")
		}
	}
	return nil
}

func TestUpsertArgsThenScanRoundTrip(t *testing.T) {
	opened := time.UnixMilli(1_700_000_000_123).UTC()
	p := domain.Position{
		ID:                "p1",
		Token:             token,
		Wallet:            wallet,
		State:             domain.StateOpen,
		AverageEntryPrice: decimal.RequireFromString("0.000000012345678901"),
		CapitalCommitted:  decimal.RequireFromString("0.002"),
		HasDoubledDown:    true,
		OpenedAt:          opened,
		UpdatedAt:         opened.Add(time.Minute),
	}

	args := upsertArgs(p)
	if n := strings.Count(upsertPositionSQL, "$"); n != len(args) {
		t.Fatalf("placeholders got=%d args=%d", n, len(args))
	}
	// NUMERIC columns are bound as text; ::text reads them back the same way.
	entry, capital := args[4].(string), args[5].(string)
	if entry != "0.000000012345678901" || capital != "0.002" {
		t.Fatalf("decimal args got=%s/%s", entry, capital)
	}

	row := textRow{values: []any{args[2], args[1], args[3], entry, capital, args[6], args[7], args[8]}}
	got, err := scanPosition(row, wallet)
	if err != nil {
		t.Fatalf("scanPosition: %v", err)
	}
	if got.ID != p.ID || got.Token != token || got.Wallet != wallet || got.State != domain.StateOpen || !got.HasDoubledDown {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.AverageEntryPrice.Equal(p.AverageEntryPrice) || !got.CapitalCommitted.Equal(p.CapitalCommitted) {
		t.Fatalf("decimals got=%s/%s", got.AverageEntryPrice, got.CapitalCommitted)
	}
	if !got.OpenedAt.Equal(opened) || !got.UpdatedAt.Equal(p.UpdatedAt) {
		t.Fatalf("times got=%s/%s", got.OpenedAt, got.UpdatedAt)
	}
}

func TestScanPositionErrors(t *testing.T) {
	if _, err := scanPosition(textRow{err: errors.New("conn closed")}, wallet); err == nil {
		t.Fatal("expected scan error")
	}
	now := time.Now()
	row := textRow{values: []any{"p1", token.Hex(), "open", "not-a-number", "0.001", false, now, now}}
	if _, err := scanPosition(row, wallet); err == nil || !strings.Contains(err.Error(), "entry price") {
		t.Fatalf("scanPosition() = %v, want entry price error", err)
	}
}

func TestUpsertKeepsOpenedAt(t *testing.T) {
	set := upsertPositionSQL[strings.Index(upsertPositionSQL, "DO UPDATE SET"):]
	if strings.Contains(set, "opened_at") {
		t.Fatal("upsert must not rewrite opened_at")
	}
}

func TestMigrationKeysPositionsByWalletAndToken(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/001_positions.sql")
	if err != nil {
		t.Fatal(err)
	}
	// ON CONFLICT (wallet, token) needs this constraint to exist.
	if !strings.Contains(string(data), "PRIMARY KEY (wallet, token)") {
		t.Fatalf("positions table not keyed by (wallet, token):\n%s", data)
	}
}
