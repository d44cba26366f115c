package trade

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/pairsniper/internal/chain"
	"github.com/alanyoungcy/pairsniper/internal/domain"
)

var (
	routerAddr = common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E")
	wbnb       = common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c")
	tokenX     = common.HexToAddress("0xABC0000000000000000000000000000000000001")
	wallet     = common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
)

// recordingSubmitter confirms everything except labels listed in fail.
type recordingSubmitter struct {
	sent []domain.TxRequest
	fail map[string]bool
}

func (r *recordingSubmitter) Submit(_ context.Context, req domain.TxRequest) (domain.TxResult, error) {
	r.sent = append(r.sent, req)
	if r.fail[req.Label] {
		return domain.TxResult{Status: domain.TxConfirmedFailure}, nil
	}
	return domain.TxResult{Status: domain.TxConfirmedSuccess}, nil
}

func (r *recordingSubmitter) SubmitSequential(ctx context.Context, first domain.TxRequest, next func(context.Context) (domain.TxRequest, error)) (domain.TxResult, error) {
	res, err := r.Submit(ctx, first)
	if err != nil || !res.Succeeded() {
		return res, err
	}
	req, err := next(ctx)
	if err != nil {
		return domain.TxResult{}, err
	}
	return r.Submit(ctx, req)
}

type noBalances struct{}

func (noBalances) BalanceOf(context.Context, common.Address, common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func newSwapper(sub Submitter) *Swapper {
	s := NewSwapper(sub, chain.NewRouter(nil, routerAddr), noBalances{}, wallet, wbnb, Config{
		GasPrice:        big.NewInt(5e9),
		SwapGasLimit:    300_000,
		ApproveGasLimit: 100_000,
		Deadline:        10 * time.Minute,
	})
	s.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return s
}

func TestBuyEncodesSwapWithValue(t *testing.T) {
	sub := &recordingSubmitter{}
	res, err := newSwapper(sub).Buy(context.Background(), tokenX, big.NewInt(1e15))
	if err != nil || !res.Succeeded() {
		t.Fatalf("Buy res=%+v err=%v", res, err)
	}
	if len(sub.sent) != 1 {
		t.Fatalf("sent got=%d want=1", len(sub.sent))
	}
	req := sub.sent[0]
	if req.To != routerAddr || req.Value.Int64() != 1e15 || req.GasLimit != 300_000 {
		t.Fatalf("unexpected buy request %+v", req)
	}
	m, err := chain.RouterABI.MethodById(req.Data[:4])
	if err != nil {
		t.Fatal(err)
	}
	args, err := m.Inputs.Unpack(req.Data[4:])
	if err != nil {
		t.Fatal(err)
	}
	path := args[1].([]common.Address)
	if m.Name != "swapExactETHForTokens" || path[0] != wbnb || path[1] != tokenX {
		t.Fatalf("decoded %s path=%v", m.Name, path)
	}
	if deadline := args[3].(*big.Int).Int64(); deadline != 1_700_000_600 {
		t.Fatalf("deadline got=%d want=1700000600", deadline)
	}
}

func TestSellApprovesThenSwaps(t *testing.T) {
	sub := &recordingSubmitter{}
	res, err := newSwapper(sub).Sell(context.Background(), tokenX, big.NewInt(777))
	if err != nil || !res.Succeeded() {
		t.Fatalf("Sell res=%+v err=%v", res, err)
	}
	if len(sub.sent) != 2 || sub.sent[0].Label != "approve" || sub.sent[1].Label != "sell" {
		t.Fatalf("unexpected sequence %v", sub.sent)
	}
	if sub.sent[0].To != tokenX || sub.sent[1].To != routerAddr {
		t.Fatal("approve must target the token and the swap the router")
	}
}

func TestSellSkipsSwapWhenApproveFails(t *testing.T) {
	sub := &recordingSubmitter{fail: map[string]bool{"approve": true}}
	res, err := newSwapper(sub).Sell(context.Background(), tokenX, big.NewInt(777))
	if err != nil {
		t.Fatal(err)
	}
	if res.Succeeded() {
		t.Fatal("sell must not succeed when approve fails")
	}
	for _, r := range sub.sent {
		if r.Label == "sell" {
			t.Fatal("swap was submitted after a failed approve")
		}
	}
}
