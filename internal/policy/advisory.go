package policy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pairsniper/internal/domain"
)

// Completer sends a prompt to a text model and returns its reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// TextAdvisor adapts a free-text Completer to Advisor. Anything it cannot
// read as a decision, including errors, becomes HOLD.
type TextAdvisor struct {
	completer       Completer
	profitMarginPct decimal.Decimal
	stopLossPct     decimal.Decimal
	timeout         time.Duration
	logger          *slog.Logger
}

var _ Advisor = (*TextAdvisor)(nil)

// NewTextAdvisor creates a TextAdvisor. The thresholds are only quoted in
// the prompt; they are enforced by Threshold.
func NewTextAdvisor(c Completer, profitMarginPct, stopLossPct decimal.Decimal, timeout time.Duration, logger *slog.Logger) *TextAdvisor {
	return &TextAdvisor{
		completer:       c,
		profitMarginPct: profitMarginPct,
		stopLossPct:     stopLossPct,
		timeout:         timeout,
		logger:          logger.With(slog.String("component", "advisor")),
	}
}

func (a *TextAdvisor) Advise(ctx context.Context, in Input) domain.Decision {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	reply, err := a.completer.Complete(ctx, a.prompt(in))
	if err != nil {
		a.logger.Warn("advisory failed, holding",
			slog.String("token", in.Token.Hex()),
			slog.String("error", err.Error()),
		)
		return domain.DecisionHold
	}
	d := ParseDecision(reply)
	a.logger.Info("advisory decision",
		slog.String("token", in.Token.Hex()),
		slog.String("decision", string(d)),
	)
	return d
}

func (a *TextAdvisor) prompt(in Input) string {
	var b strings.Builder
	b.WriteString("You are a trading assistant managing one token position on a decentralized exchange.\n")
	fmt.Fprintf(&b, "Token: %s\n", in.Token.Hex())
	fmt.Fprintf(&b, "Entry price: %s base per token\n", in.EntryPrice.String())
	fmt.Fprintf(&b, "Current price: %s base per token\n", in.CurrentPrice.String())
	fmt.Fprintf(&b, "Profit/loss: %s%%\n", in.ProfitPct().StringFixed(2))
	fmt.Fprintf(&b, "Invested capital: %s base\n", in.CapitalCommitted.String())
	b.WriteString("Rules:\n")
	fmt.Fprintf(&b, "1. Sell when profit reaches %s%%.\n", a.profitMarginPct.String())
	fmt.Fprintf(&b, "2. Sell when the loss reaches %s%%.\n", a.stopLossPct.String())
	b.WriteString("3. Buy more only if the token still looks strong; this can happen at most once.\n")
	b.WriteString("Answer with exactly one word: SELL, HOLD or BUY_MORE.")
	return b.String()
}

// decisionTokens is checked in order; the first one found in the reply wins.
// Only the exact answer words count, so phrasing such as "do not buy more"
// falls through to HOLD.
var decisionTokens = []struct {
	needle   string
	decision domain.Decision
}{
	{"SELL", domain.DecisionSell},
	{"BUY_MORE", domain.DecisionBuyMore},
	{"HOLD", domain.DecisionHold},
}

// ParseDecision reads a free-text reply case-insensitively. Empty or
// unrecognised text is HOLD.
func ParseDecision(text string) domain.Decision {
	upper := strings.ToUpper(text)
	for _, tok := range decisionTokens {
		if strings.Contains(upper, tok.needle) {
			return tok.decision
		}
	}
	return domain.DecisionHold
}
