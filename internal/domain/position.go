package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// PositionState is a step in the lifecycle of a single-token position.
type PositionState string

const (
	StateDiscovered      PositionState = "discovered"
	StateBuyPending      PositionState = "buy_pending"
	StateOpen            PositionState = "open"
	StateSellPending     PositionState = "sell_pending"
	StateClosedSold      PositionState = "closed_sold"
	StateClosedAbandoned PositionState = "closed_abandoned"
)

// Terminal reports whether no further transition can leave s.
func (s PositionState) Terminal() bool {
	return s == StateClosedSold || s == StateClosedAbandoned
}

// Position is the bot's holding in one token.
type Position struct {
	ID                string          `json:"id"`
	Token             common.Address  `json:"token"`
	Wallet            common.Address  `json:"wallet"`
	State             PositionState   `json:"state"`
	AverageEntryPrice decimal.Decimal `json:"average_entry_price"` // base per token
	CapitalCommitted  decimal.Decimal `json:"capital_committed"`   // base currency spent
	HasDoubledDown    bool            `json:"has_doubled_down"`
	OpenedAt          time.Time       `json:"opened_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
