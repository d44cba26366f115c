package domain

// Decision is the outcome of a policy evaluation for an open position.
type Decision string

const (
	DecisionSell    Decision = "SELL"
	DecisionHold    Decision = "HOLD"
	DecisionBuyMore Decision = "BUY_MORE"
)

// Valid reports whether d is one of the three known outcomes.
func (d Decision) Valid() bool {
	switch d {
	case DecisionSell, DecisionHold, DecisionBuyMore:
		return true
	}
	return false
}
