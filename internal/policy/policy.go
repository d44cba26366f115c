// Package policy decides what to do with an open position.
package policy

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pairsniper/internal/domain"
)

// Input is everything a policy needs for one decision. Policies keep no
// state between calls.
type Input struct {
	Token            common.Address
	EntryPrice       decimal.Decimal
	CurrentPrice     decimal.Decimal
	CapitalCommitted decimal.Decimal
}

// ProfitPct returns (current/entry - 1) * 100. A non-positive entry price
// yields zero.
func (in Input) ProfitPct() decimal.Decimal {
	if !in.EntryPrice.IsPositive() {
		return decimal.Zero
	}
	return in.CurrentPrice.Div(in.EntryPrice).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100))
}

// Policy yields one of SELL, HOLD, BUY_MORE. Implementations must never
// return any other value.
type Policy interface {
	Decide(ctx context.Context, in Input) domain.Decision
}

// Advisor is a capability that answers with a typed decision directly.
type Advisor interface {
	Advise(ctx context.Context, in Input) domain.Decision
}

// Threshold sells on take-profit or stop-loss and otherwise defers to an
// optional advisor. Without an advisor it holds.
type Threshold struct {
	ProfitMarginPct decimal.Decimal
	StopLossPct     decimal.Decimal
	Advisor         Advisor
	Logger          *slog.Logger
}

var _ Policy = (*Threshold)(nil)

func (p *Threshold) Decide(ctx context.Context, in Input) domain.Decision {
	pct := in.ProfitPct()
	switch {
	case pct.GreaterThanOrEqual(p.ProfitMarginPct):
		p.log("take profit", in, pct)
		return domain.DecisionSell
	case pct.LessThanOrEqual(p.StopLossPct.Neg()):
		p.log("stop loss", in, pct)
		return domain.DecisionSell
	}
	if p.Advisor == nil {
		return domain.DecisionHold
	}
	d := p.Advisor.Advise(ctx, in)
	if !d.Valid() {
		return domain.DecisionHold
	}
	return d
}

func (p *Threshold) log(reason string, in Input, pct decimal.Decimal) {
	if p.Logger == nil {
		return
	}
	p.Logger.Info(reason,
		slog.String("token", in.Token.Hex()),
		slog.String("profit_pct", pct.StringFixed(2)),
	)
}
