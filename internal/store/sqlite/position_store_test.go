package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pairsniper/internal/domain"
)

func TestPositionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "positions.db")
	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	wallet := common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
	token := common.HexToAddress("0xABC0000000000000000000000000000000000001")
	opened := time.UnixMilli(1_700_000_000_123).UTC()
	p := domain.Position{
		ID:                "p1",
		Token:             token,
		Wallet:            wallet,
		State:             domain.StateOpen,
		AverageEntryPrice: decimal.RequireFromString("0.000000012345678901"),
		CapitalCommitted:  decimal.RequireFromString("0.001"),
		OpenedAt:          opened,
		UpdatedAt:         opened,
	}
	if err := store.Save(ctx, p); err != nil {
		t.Fatalf("Save: %v", err)
	}
	p.HasDoubledDown = true
	p.CapitalCommitted = decimal.RequireFromString("0.002")
	if err := store.Save(ctx, p); err != nil {
		t.Fatalf("Save update: %v", err)
	}

	got, err := store.Load(ctx, wallet)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("positions got=%d want=1", len(got))
	}
	if got[0].Token != token || !got[0].HasDoubledDown || !got[0].OpenedAt.Equal(opened) {
		t.Fatalf("round trip mismatch: %+v", got[0])
	}
	if !got[0].AverageEntryPrice.Equal(p.AverageEntryPrice) || !got[0].CapitalCommitted.Equal(p.CapitalCommitted) {
		t.Fatalf("decimals got=%s/%s want=%s/%s", got[0].AverageEntryPrice, got[0].CapitalCommitted, p.AverageEntryPrice, p.CapitalCommitted)
	}

	other, _ := store.Load(ctx, token)
	if len(other) != 0 {
		t.Fatal("positions leaked across wallets")
	}

	if err := store.Delete(ctx, wallet, token); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, _ = store.Load(ctx, wallet)
	if len(got) != 0 {
		t.Fatalf("positions after delete got=%d want=0", len(got))
	}
}
