// Package oracle prices tokens in the base currency through the router's
// getAmountsOut.
package oracle

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pairsniper/internal/chain"
	"github.com/alanyoungcy/pairsniper/internal/domain"
)

// AmountsOuter is the router quoting call. *chain.Router satisfies it.
type AmountsOuter interface {
	GetAmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error)
}

// DecimalsReader reads a token's decimals. *chain.ERC20 satisfies it.
type DecimalsReader interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
}

// Oracle quotes one whole token in base currency. It tries the direct
// token->base path first and falls back to token->bridge->base.
type Oracle struct {
	router       AmountsOuter
	decimals     DecimalsReader
	base         common.Address
	bridge       common.Address
	baseDecimals int32
	logger       *slog.Logger
	now          func() time.Time

	mu  sync.Mutex
	dec map[common.Address]uint8
}

// New creates an Oracle. A zero bridge address disables the bridged path.
func New(router AmountsOuter, decimals DecimalsReader, base, bridge common.Address, logger *slog.Logger) *Oracle {
	return &Oracle{
		router:       router,
		decimals:     decimals,
		base:         base,
		bridge:       bridge,
		baseDecimals: chain.DefaultDecimals,
		logger:       logger.With(slog.String("component", "oracle")),
		now:          time.Now,
		dec:          make(map[common.Address]uint8),
	}
}

// Quote returns the current price of token. ok is false when neither path
// yields a positive amount; that is a normal "no liquidity" answer, not a
// fault.
func (o *Oracle) Quote(ctx context.Context, token common.Address) (domain.PriceQuote, bool) {
	d, err := o.tokenDecimals(ctx, token)
	if err != nil {
		o.logger.Warn("decimals lookup failed, no quote",
			slog.String("token", token.Hex()),
			slog.String("error", err.Error()),
		)
		return domain.PriceQuote{}, false
	}
	unit := chain.UnitAmount(d)

	if out, ok := o.amountOut(ctx, unit, []common.Address{token, o.base}); ok {
		return o.quote(token, out, domain.QuotePathDirect), true
	}
	if o.bridge == (common.Address{}) || o.bridge == token || o.bridge == o.base {
		return domain.PriceQuote{}, false
	}
	if out, ok := o.amountOut(ctx, unit, []common.Address{token, o.bridge, o.base}); ok {
		return o.quote(token, out, domain.QuotePathBridged), true
	}
	o.logger.Debug("no quote", slog.String("token", token.Hex()))
	return domain.PriceQuote{}, false
}

func (o *Oracle) amountOut(ctx context.Context, amountIn *big.Int, path []common.Address) (*big.Int, bool) {
	amounts, err := o.router.GetAmountsOut(ctx, amountIn, path)
	if err != nil {
		o.logger.Debug("getAmountsOut failed",
			slog.Int("hops", len(path)-1),
			slog.String("token", path[0].Hex()),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	if len(amounts) == 0 {
		return nil, false
	}
	out := amounts[len(amounts)-1]
	if out == nil || out.Sign() <= 0 {
		return nil, false
	}
	return out, true
}

func (o *Oracle) quote(token common.Address, out *big.Int, path domain.QuotePath) domain.PriceQuote {
	return domain.PriceQuote{
		Token:        token,
		BasePerToken: decimal.NewFromBigInt(out, -o.baseDecimals),
		Path:         path,
		QuotedAt:     o.now().UTC(),
	}
}

// tokenDecimals caches decimals per token; they never change. Failed reads
// are not cached.
func (o *Oracle) tokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	o.mu.Lock()
	d, ok := o.dec[token]
	o.mu.Unlock()
	if ok {
		return d, nil
	}
	d, err := o.decimals.Decimals(ctx, token)
	if err != nil {
		return 0, err
	}
	o.mu.Lock()
	o.dec[token] = d
	o.mu.Unlock()
	return d, nil
}
