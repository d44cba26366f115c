// Package chain speaks to the EVM chain: the DEX router, ERC-20 tokens and
// the factory's PairCreated log stream.
package chain

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"
)

const routerABIJSON = `[
 {"name":"factory","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"name":"getAmountsOut","type":"function","stateMutability":"view",
  "inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],
  "outputs":[{"name":"amounts","type":"uint256[]"}]},
 {"name":"swapExactETHForTokens","type":"function","stateMutability":"payable",
  "inputs":[{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],
  "outputs":[{"name":"amounts","type":"uint256[]"}]},
 {"name":"swapExactTokensForETH","type":"function","stateMutability":"nonpayable",
  "inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],
  "outputs":[{"name":"amounts","type":"uint256[]"}]},
 {"name":"swapExactTokensForETHSupportingFeeOnTransferTokens","type":"function","stateMutability":"nonpayable",
  "inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],
  "outputs":[]}
]`

const erc20ABIJSON = `[
 {"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
 {"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

const factoryABIJSON = `[
 {"name":"PairCreated","type":"event","anonymous":false,"inputs":[
  {"name":"token0","type":"address","indexed":true},
  {"name":"token1","type":"address","indexed":true},
  {"name":"pair","type":"address","indexed":false},
  {"name":"","type":"uint256","indexed":false}]}
]`

var (
	RouterABI  = mustParseABI(routerABIJSON)
	ERC20ABI   = mustParseABI(erc20ABIJSON)
	FactoryABI = mustParseABI(factoryABIJSON)

	// PairCreatedTopic is topic[0] of every PairCreated log.
	PairCreatedTopic = FactoryABI.Events["PairCreated"].ID
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic("chain: bad ABI: " + err.Error())
	}
	return parsed
}

// ContractCaller executes read-only contract calls. *ethclient.Client
// satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// LogFilterer reads logs and the chain head. *ethclient.Client satisfies it.
type LogFilterer interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}
