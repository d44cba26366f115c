package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// QuotePath identifies the router path that produced a quote.
type QuotePath string

const (
	QuotePathDirect  QuotePath = "direct"
	QuotePathBridged QuotePath = "bridged"
)

// PriceQuote is the price of one whole token in base currency. A quote is
// always strictly positive; the absence of liquidity is reported as "no
// quote" by the oracle rather than as a zero price.
type PriceQuote struct {
	Token        common.Address
	BasePerToken decimal.Decimal
	Path         QuotePath
	QuotedAt     time.Time
}
