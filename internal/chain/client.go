package chain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Dial connects to the JSON-RPC endpoint at url and checks that it serves
// the expected chain.
func Dial(ctx context.Context, url string, wantChainID int64, logger *slog.Logger) (*ethclient.Client, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("chain: dial: %w", err)
	}
	id, err := c.ChainID(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("chain: chain id: %w", err)
	}
	if wantChainID != 0 && id.Int64() != wantChainID {
		c.Close()
		return nil, fmt.Errorf("chain: endpoint serves chain %d, configured %d", id.Int64(), wantChainID)
	}
	logger.Info("connected to chain", slog.Int64("chain_id", id.Int64()))
	return c, nil
}
