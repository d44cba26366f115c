package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// errMalformedOutput marks a call whose return data does not decode, which is
// what a contract without the called function produces.
var errMalformedOutput = errors.New("malformed call output")

// Router wraps a Uniswap-V2-style router contract.
type Router struct {
	caller  ContractCaller
	address common.Address
}

// NewRouter binds the router at address.
func NewRouter(caller ContractCaller, address common.Address) *Router {
	return &Router{caller: caller, address: address}
}

// Address returns the router contract address.
func (r *Router) Address() common.Address {
	return r.address
}

// Factory reads the router's factory address.
func (r *Router) Factory(ctx context.Context) (common.Address, error) {
	out, err := r.call(ctx, "factory")
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("chain: factory: unexpected output %T", out[0])
	}
	return addr, nil
}

// GetAmountsOut quotes amountIn along path. The last element of the result
// is the amount received at the end of the path.
func (r *Router) GetAmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	out, err := r.call(ctx, "getAmountsOut", amountIn, path)
	if err != nil {
		return nil, err
	}
	amounts, ok := out[0].([]*big.Int)
	if !ok || len(amounts) != len(path) {
		return nil, fmt.Errorf("chain: getAmountsOut: malformed result for %d-hop path", len(path))
	}
	return amounts, nil
}

// PackSwapExactETHForTokens encodes a buy of path[len-1] paying the tx value.
func (r *Router) PackSwapExactETHForTokens(amountOutMin *big.Int, path []common.Address, to common.Address, deadline int64) ([]byte, error) {
	data, err := RouterABI.Pack("swapExactETHForTokens", amountOutMin, path, to, big.NewInt(deadline))
	if err != nil {
		return nil, fmt.Errorf("chain: pack swapExactETHForTokens: %w", err)
	}
	return data, nil
}

// PackSwapExactTokensForETH encodes a sale of amountIn of path[0]. With
// feeOnTransfer set it uses the variant that tolerates taxed tokens.
func (r *Router) PackSwapExactTokensForETH(amountIn, amountOutMin *big.Int, path []common.Address, to common.Address, deadline int64, feeOnTransfer bool) ([]byte, error) {
	method := "swapExactTokensForETH"
	if feeOnTransfer {
		method = "swapExactTokensForETHSupportingFeeOnTransferTokens"
	}
	data, err := RouterABI.Pack(method, amountIn, amountOutMin, path, to, big.NewInt(deadline))
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	return data, nil
}

func (r *Router) call(ctx context.Context, method string, args ...any) ([]any, error) {
	return callView(ctx, r.caller, RouterABI, r.address, method, args...)
}

func callView(ctx context.Context, caller ContractCaller, contract abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	raw, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: call %s on %s: %w", method, to.Hex(), err)
	}
	out, err := contract.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack %s: %w: %w", method, errMalformedOutput, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("chain: %s: %w", method, errMalformedOutput)
	}
	return out, nil
}
