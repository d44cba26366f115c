// Package trade turns buy and sell intents into router transactions.
package trade

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/pairsniper/internal/chain"
	"github.com/alanyoungcy/pairsniper/internal/domain"
)

// Submitter is the transaction executor. *executor.Executor satisfies it.
type Submitter interface {
	Submit(ctx context.Context, req domain.TxRequest) (domain.TxResult, error)
	SubmitSequential(ctx context.Context, first domain.TxRequest, next func(context.Context) (domain.TxRequest, error)) (domain.TxResult, error)
}

// BalanceReader reads ERC-20 balances. *chain.ERC20 satisfies it.
type BalanceReader interface {
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
}

// Config carries the gas and deadline settings for swaps.
type Config struct {
	GasPrice        *big.Int
	SwapGasLimit    uint64
	ApproveGasLimit uint64
	Deadline        time.Duration
	FeeOnTransfer   bool
}

// Swapper buys tokens with the base currency and sells them back.
type Swapper struct {
	exec     Submitter
	router   *chain.Router
	balances BalanceReader
	wallet   common.Address
	base     common.Address
	cfg      Config
	now      func() time.Time
}

// NewSwapper creates a Swapper trading from wallet against base.
func NewSwapper(exec Submitter, router *chain.Router, balances BalanceReader, wallet, base common.Address, cfg Config) *Swapper {
	return &Swapper{
		exec:     exec,
		router:   router,
		balances: balances,
		wallet:   wallet,
		base:     base,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Buy spends amountWei of the base currency on token. Slippage is not
// bounded: the router is asked for at least zero tokens out.
func (s *Swapper) Buy(ctx context.Context, token common.Address, amountWei *big.Int) (domain.TxResult, error) {
	data, err := s.router.PackSwapExactETHForTokens(new(big.Int), []common.Address{s.base, token}, s.wallet, s.deadline())
	if err != nil {
		return domain.TxResult{}, fmt.Errorf("trade: buy %s: %w", token.Hex(), err)
	}
	return s.exec.Submit(ctx, domain.TxRequest{
		Label:    "buy",
		To:       s.router.Address(),
		Data:     data,
		Value:    new(big.Int).Set(amountWei),
		GasLimit: s.cfg.SwapGasLimit,
		GasPrice: s.cfg.GasPrice,
	})
}

// Balance returns the wallet's raw balance of token.
func (s *Swapper) Balance(ctx context.Context, token common.Address) (*big.Int, error) {
	bal, err := s.balances.BalanceOf(ctx, token, s.wallet)
	if err != nil {
		return nil, fmt.Errorf("trade: balance of %s: %w", token.Hex(), err)
	}
	return bal, nil
}

// Sell approves the router for amount and then swaps amount of token for
// the base currency. The swap is never sent unless the approve confirmed.
func (s *Swapper) Sell(ctx context.Context, token common.Address, amount *big.Int) (domain.TxResult, error) {
	approve, err := chain.PackApprove(s.router.Address(), amount)
	if err != nil {
		return domain.TxResult{}, fmt.Errorf("trade: sell %s: %w", token.Hex(), err)
	}
	first := domain.TxRequest{
		Label:    "approve",
		To:       token,
		Data:     approve,
		Value:    new(big.Int),
		GasLimit: s.cfg.ApproveGasLimit,
		GasPrice: s.cfg.GasPrice,
	}
	return s.exec.SubmitSequential(ctx, first, func(context.Context) (domain.TxRequest, error) {
		data, err := s.router.PackSwapExactTokensForETH(amount, new(big.Int), []common.Address{token, s.base}, s.wallet, s.deadline(), s.cfg.FeeOnTransfer)
		if err != nil {
			return domain.TxRequest{}, err
		}
		return domain.TxRequest{
			Label:    "sell",
			To:       s.router.Address(),
			Data:     data,
			Value:    new(big.Int),
			GasLimit: s.cfg.SwapGasLimit,
			GasPrice: s.cfg.GasPrice,
		}, nil
	})
}

func (s *Swapper) deadline() int64 {
	return s.now().Add(s.cfg.Deadline).Unix()
}
