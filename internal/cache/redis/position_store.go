package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/pairsniper/internal/domain"
)

// PositionStore keeps one hash per wallet, field = token, value = JSON.
type PositionStore struct {
	rdb *redis.Client
}

var _ domain.PositionStore = (*PositionStore)(nil)

// NewPositionStore creates a PositionStore on c.
func NewPositionStore(c *Client) *PositionStore {
	return &PositionStore{rdb: c.Underlying()}
}

func positionsKey(wallet common.Address) string {
	return "positions:" + wallet.Hex()
}

func (s *PositionStore) Load(ctx context.Context, wallet common.Address) ([]domain.Position, error) {
	fields, err := s.rdb.HGetAll(ctx, positionsKey(wallet)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: load positions: %w", err)
	}
	out := make([]domain.Position, 0, len(fields))
	for token, raw := range fields {
		var p domain.Position
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("redis: decode position %s: %w", token, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *PositionStore) Save(ctx context.Context, p domain.Position) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("redis: encode position %s: %w", p.Token.Hex(), err)
	}
	if err := s.rdb.HSet(ctx, positionsKey(p.Wallet), p.Token.Hex(), raw).Err(); err != nil {
		return fmt.Errorf("redis: save position %s: %w", p.Token.Hex(), err)
	}
	return nil
}

func (s *PositionStore) Delete(ctx context.Context, wallet, token common.Address) error {
	if err := s.rdb.HDel(ctx, positionsKey(wallet), token.Hex()).Err(); err != nil {
		return fmt.Errorf("redis: delete position %s: %w", token.Hex(), err)
	}
	return nil
}
