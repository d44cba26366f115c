// Package chaintest provides an in-memory stand-in for a router and its
// tokens, answering eth_call the way the real contracts would.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/pairsniper/internal/chain"
)

// ErrReverted is returned for calls the fake cannot satisfy.
var ErrReverted = errors.New("execution reverted")

// Caller implements chain.ContractCaller.
type Caller struct {
	mu       sync.Mutex
	Router   common.Address
	Factory  common.Address
	rates    map[[2]common.Address]*big.Rat
	balances map[[2]common.Address]*big.Int
	decimals map[common.Address]uint8
	failures map[string]error
	calls    map[string]int
}

var _ chain.ContractCaller = (*Caller)(nil)

// NewCaller returns a fake with no liquidity anywhere.
func NewCaller(router, factory common.Address) *Caller {
	return &Caller{
		Router:   router,
		Factory:  factory,
		rates:    make(map[[2]common.Address]*big.Rat),
		balances: make(map[[2]common.Address]*big.Int),
		decimals: make(map[common.Address]uint8),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// SetRate sets how many raw units of to one raw unit of from buys. A nil
// rate removes the hop.
func (c *Caller) SetRate(from, to common.Address, rate *big.Rat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rate == nil {
		delete(c.rates, [2]common.Address{from, to})
		return
	}
	c.rates[[2]common.Address{from, to}] = new(big.Rat).Set(rate)
}

// SetBalance sets owner's balance of token.
func (c *Caller) SetBalance(token, owner common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[[2]common.Address{token, owner}] = new(big.Int).Set(amount)
}

// SetDecimals sets a token's decimals. Tokens without one revert.
func (c *Caller) SetDecimals(token common.Address, d uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decimals[token] = d
}

// Fail makes every call to method return err until it is cleared with a
// nil err.
func (c *Caller) Fail(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failures, method)
		return
	}
	c.failures[method] = err
}

// Calls returns how many times method has been called.
func (c *Caller) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *Caller) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, ErrReverted
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	contract := chain.ERC20ABI
	if *msg.To == c.Router {
		contract = chain.RouterABI
	}
	m, err := contract.MethodById(msg.Data[:4])
	if err != nil {
		return nil, ErrReverted
	}
	c.calls[m.Name]++
	if err := c.failures[m.Name]; err != nil {
		return nil, err
	}
	args, err := m.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, fmt.Errorf("chaintest: unpack %s: %w", m.Name, err)
	}
	out, err := c.dispatch(*msg.To, m, args)
	if err != nil {
		return nil, err
	}
	return m.Outputs.Pack(out...)
}

func (c *Caller) dispatch(to common.Address, m *abi.Method, args []any) ([]any, error) {
	switch m.Name {
	case "factory":
		return []any{c.Factory}, nil
	case "getAmountsOut":
		amountIn := args[0].(*big.Int)
		path := args[1].([]common.Address)
		amounts := []*big.Int{new(big.Int).Set(amountIn)}
		for i := 0; i+1 < len(path); i++ {
			rate, ok := c.rates[[2]common.Address{path[i], path[i+1]}]
			if !ok {
				return nil, ErrReverted
			}
			next := new(big.Rat).Mul(new(big.Rat).SetInt(amounts[i]), rate)
			amounts = append(amounts, new(big.Int).Quo(next.Num(), next.Denom()))
		}
		return []any{amounts}, nil
	case "balanceOf":
		bal, ok := c.balances[[2]common.Address{to, args[0].(common.Address)}]
		if !ok {
			bal = new(big.Int)
		}
		return []any{new(big.Int).Set(bal)}, nil
	case "decimals":
		d, ok := c.decimals[to]
		if !ok {
			return nil, ErrReverted
		}
		return []any{d}, nil
	}
	return nil, ErrReverted
}
