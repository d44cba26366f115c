package oracle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pairsniper/internal/chain"
	"github.com/alanyoungcy/pairsniper/internal/chain/chaintest"
	"github.com/alanyoungcy/pairsniper/internal/domain"
)

var (
	routerAddr  = common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E")
	factoryAddr = common.HexToAddress("0xcA143Ce32Fe78f1f7019d7d551a6402fC5350c73")
	wbnb        = common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c")
	busd        = common.HexToAddress("0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56")
	tokenX      = common.HexToAddress("0xABC0000000000000000000000000000000000001")
)

func newOracle(fake *chaintest.Caller) *Oracle {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(chain.NewRouter(fake, routerAddr), chain.NewERC20(fake), wbnb, busd, logger)
}

func TestQuoteDirect(t *testing.T) {
	fake := chaintest.NewCaller(routerAddr, factoryAddr)
	fake.SetDecimals(tokenX, 18)
	fake.SetRate(tokenX, wbnb, big.NewRat(1, 100))

	q, ok := newOracle(fake).Quote(context.Background(), tokenX)
	if !ok {
		t.Fatal("expected a quote")
	}
	if q.Path != domain.QuotePathDirect {
		t.Fatalf("path got=%s want=%s", q.Path, domain.QuotePathDirect)
	}
	if !q.BasePerToken.Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("price got=%s want=0.01", q.BasePerToken)
	}
}

func TestQuoteFallsBackToBridge(t *testing.T) {
	fake := chaintest.NewCaller(routerAddr, factoryAddr)
	fake.SetDecimals(tokenX, 9)
	// 1 whole token (1e9 raw) -> 2 BUSD (2e18 raw) -> 0.004 WBNB.
	fake.SetRate(tokenX, busd, big.NewRat(2e9, 1))
	fake.SetRate(busd, wbnb, big.NewRat(1, 500))

	q, ok := newOracle(fake).Quote(context.Background(), tokenX)
	if !ok {
		t.Fatal("expected a bridged quote")
	}
	if q.Path != domain.QuotePathBridged {
		t.Fatalf("path got=%s want=%s", q.Path, domain.QuotePathBridged)
	}
	if !q.BasePerToken.Equal(decimal.RequireFromString("0.004")) {
		t.Fatalf("price got=%s want=0.004", q.BasePerToken)
	}
}

func TestQuoteNoLiquidity(t *testing.T) {
	fake := chaintest.NewCaller(routerAddr, factoryAddr)
	if _, ok := newOracle(fake).Quote(context.Background(), tokenX); ok {
		t.Fatal("expected no quote when both paths revert")
	}
}

func TestQuoteZeroOutputIsNoQuote(t *testing.T) {
	fake := chaintest.NewCaller(routerAddr, factoryAddr)
	fake.SetRate(tokenX, wbnb, big.NewRat(0, 1))
	if _, ok := newOracle(fake).Quote(context.Background(), tokenX); ok {
		t.Fatal("zero amount out must not be reported as a price")
	}
}

func TestQuoteCachesDecimals(t *testing.T) {
	fake := chaintest.NewCaller(routerAddr, factoryAddr)
	fake.SetDecimals(tokenX, 18)
	fake.SetRate(tokenX, wbnb, big.NewRat(1, 100))
	o := newOracle(fake)
	for i := 0; i < 3; i++ {
		o.Quote(context.Background(), tokenX)
	}
	if n := fake.Calls("decimals"); n != 1 {
		t.Fatalf("decimals calls got=%d want=1", n)
	}
}

func TestQuoteDoesNotCacheFailedDecimals(t *testing.T) {
	fake := chaintest.NewCaller(routerAddr, factoryAddr)
	fake.SetDecimals(tokenX, 9)
	fake.SetRate(tokenX, wbnb, big.NewRat(1, 100))
	o := newOracle(fake)

	fake.Fail("decimals", errors.New("read: connection reset by peer"))
	if _, ok := o.Quote(context.Background(), tokenX); ok {
		t.Fatal("a quote priced on guessed decimals must not be returned")
	}

	fake.Fail("decimals", nil)
	q, ok := o.Quote(context.Background(), tokenX)
	if !ok {
		t.Fatal("expected a quote once decimals are readable")
	}
	// 1e9 raw units at 1/100 -> 1e7 wei.
	if !q.BasePerToken.Equal(decimal.RequireFromString("0.00000000001")) {
		t.Fatalf("price got=%s want=0.00000000001", q.BasePerToken)
	}
	if n := fake.Calls("decimals"); n != 2 {
		t.Fatalf("decimals calls got=%d want=2", n)
	}
}
