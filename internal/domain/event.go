package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// EventKind names a position lifecycle event.
type EventKind string

const (
	EventOpened      EventKind = "position_opened"
	EventDoubledDown EventKind = "position_doubled_down"
	EventSold        EventKind = "position_sold"
	EventAbandoned   EventKind = "position_abandoned"
	EventBuyFailed   EventKind = "buy_failed"
	EventSellFailed  EventKind = "sell_failed"
)

// LifecycleEvent is published whenever a position changes state or a
// transaction on its behalf fails.
type LifecycleEvent struct {
	Kind         EventKind       `json:"kind"`
	Token        common.Address  `json:"token"`
	State        PositionState   `json:"state"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Capital      decimal.Decimal `json:"capital"`
	TxHash       string          `json:"tx_hash,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	At           time.Time       `json:"at"`
}

// EventPublisher fans lifecycle events out to interested parties.
type EventPublisher interface {
	Publish(ctx context.Context, evt LifecycleEvent) error
}

// EventBus carries raw payloads on named channels.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
