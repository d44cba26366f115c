package position

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Averaging is how the entry price is recomputed after a double-down.
type Averaging string

const (
	// AveragingMidpoint is (old + new) / 2, regardless of the amounts
	// involved. It is kept because the bot has always done this.
	AveragingMidpoint Averaging = "midpoint"
	// AveragingWeighted weights each price by the capital spent at it,
	// which gives the true cost basis per token.
	AveragingWeighted Averaging = "weighted"
)

// ParseAveraging reads a rule name case-insensitively. Empty means midpoint.
func ParseAveraging(s string) (Averaging, error) {
	switch a := Averaging(strings.ToLower(strings.TrimSpace(s))); a {
	case AveragingMidpoint, AveragingWeighted:
		return a, nil
	case "":
		return AveragingMidpoint, nil
	}
	return "", fmt.Errorf("position: unknown averaging rule %q", s)
}

// Apply returns the new average entry price after adding addCap of capital
// at addPrice to a position holding oldCap at oldPrice.
func (a Averaging) Apply(oldPrice, oldCap, addPrice, addCap decimal.Decimal) decimal.Decimal {
	if a != AveragingWeighted {
		return oldPrice.Add(addPrice).Div(decimal.NewFromInt(2))
	}
	if !oldPrice.IsPositive() || !addPrice.IsPositive() {
		return oldPrice.Add(addPrice).Div(decimal.NewFromInt(2))
	}
	tokens := oldCap.Div(oldPrice).Add(addCap.Div(addPrice))
	if !tokens.IsPositive() {
		return oldPrice
	}
	return oldCap.Add(addCap).Div(tokens)
}
