package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultDecimals is assumed when a token does not answer decimals().
const DefaultDecimals = 18

// ERC20 reads and encodes calls against arbitrary ERC-20 tokens.
type ERC20 struct {
	caller ContractCaller
}

// NewERC20 returns an ERC20 helper backed by caller.
func NewERC20(caller ContractCaller) *ERC20 {
	return &ERC20{caller: caller}
}

// BalanceOf returns owner's raw balance of token.
func (e *ERC20) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	out, err := callView(ctx, e.caller, ERC20ABI, token, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	bal, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: balanceOf: unexpected output %T", out[0])
	}
	return bal, nil
}

// Decimals returns token's decimals. A token that reverts or answers with
// garbage does not implement decimals() and gets DefaultDecimals; any other
// failure is returned so callers do not mistake an RPC outage for an answer.
func (e *ERC20) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := callView(ctx, e.caller, ERC20ABI, token, "decimals")
	if err != nil {
		if isRevert(err) {
			return DefaultDecimals, nil
		}
		return 0, err
	}
	d, ok := out[0].(uint8)
	if !ok {
		return DefaultDecimals, nil
	}
	return d, nil
}

// isRevert reports whether err is the contract's answer rather than a
// transport failure.
func isRevert(err error) bool {
	return errors.Is(err, errMalformedOutput) || strings.Contains(err.Error(), "execution reverted")
}

// PackApprove encodes approve(spender, amount).
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	data, err := ERC20ABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("chain: pack approve: %w", err)
	}
	return data, nil
}

// UnitAmount returns 10^decimals, the raw amount of one whole token.
func UnitAmount(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
