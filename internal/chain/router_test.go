package chain_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/pairsniper/internal/chain"
	"github.com/alanyoungcy/pairsniper/internal/chain/chaintest"
)

var (
	router  = common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E")
	factory = common.HexToAddress("0xcA143Ce32Fe78f1f7019d7d551a6402fC5350c73")
	wbnb    = common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c")
	tokenX  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	wallet  = common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
)

func TestRouterFactoryAndQuote(t *testing.T) {
	ctx := context.Background()
	fake := chaintest.NewCaller(router, factory)
	fake.SetRate(tokenX, wbnb, big.NewRat(1, 1000))
	r := chain.NewRouter(fake, router)

	got, err := r.Factory(ctx)
	if err != nil {
		t.Fatalf("Factory: %v", err)
	}
	if got != factory {
		t.Fatalf("factory got=%s want=%s", got.Hex(), factory.Hex())
	}

	amounts, err := r.GetAmountsOut(ctx, chain.UnitAmount(18), []common.Address{tokenX, wbnb})
	if err != nil {
		t.Fatalf("GetAmountsOut: %v", err)
	}
	want := big.NewInt(1e15)
	if amounts[1].Cmp(want) != 0 {
		t.Fatalf("amount out got=%s want=%s", amounts[1], want)
	}

	if _, err := r.GetAmountsOut(ctx, chain.UnitAmount(18), []common.Address{wbnb, tokenX}); err == nil {
		t.Fatal("GetAmountsOut without liquidity should fail")
	}
}

func TestPackSwapSelectsFeeVariant(t *testing.T) {
	r := chain.NewRouter(nil, router)
	path := []common.Address{tokenX, wbnb}

	plain, err := r.PackSwapExactTokensForETH(big.NewInt(5), big.NewInt(0), path, wallet, 100, false)
	if err != nil {
		t.Fatal(err)
	}
	taxed, err := r.PackSwapExactTokensForETH(big.NewInt(5), big.NewInt(0), path, wallet, 100, true)
	if err != nil {
		t.Fatal(err)
	}
	m, err := chain.RouterABI.MethodById(plain[:4])
	if err != nil || m.Name != "swapExactTokensForETH" {
		t.Fatalf("plain selector decoded to %v (%v)", m, err)
	}
	m, err = chain.RouterABI.MethodById(taxed[:4])
	if err != nil || m.Name != "swapExactTokensForETHSupportingFeeOnTransferTokens" {
		t.Fatalf("taxed selector decoded to %v (%v)", m, err)
	}
}

func TestERC20BalanceAndDecimals(t *testing.T) {
	ctx := context.Background()
	fake := chaintest.NewCaller(router, factory)
	fake.SetBalance(tokenX, wallet, big.NewInt(42))
	fake.SetDecimals(tokenX, 9)
	erc := chain.NewERC20(fake)

	bal, err := erc.BalanceOf(ctx, tokenX, wallet)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if bal.Int64() != 42 {
		t.Fatalf("balance got=%s want=42", bal)
	}
	if d, err := erc.Decimals(ctx, tokenX); err != nil || d != 9 {
		t.Fatalf("decimals got=%d err=%v want=9", d, err)
	}
	if d, err := erc.Decimals(ctx, wbnb); err != nil || d != chain.DefaultDecimals {
		t.Fatalf("fallback decimals got=%d err=%v want=%d", d, err, chain.DefaultDecimals)
	}

	fake.Fail("decimals", errors.New("dial tcp: connection refused"))
	if _, err := erc.Decimals(ctx, tokenX); err == nil {
		t.Fatal("transport failure must surface as an error, not a default")
	}
}
