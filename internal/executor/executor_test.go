package executor

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/pairsniper/internal/crypto"
	"github.com/alanyoungcy/pairsniper/internal/domain"
)

type fakeBackend struct {
	mu           sync.Mutex
	pendingNonce uint64
	sent         []*types.Transaction
	// status is keyed by the first byte of tx data; a missing key means the
	// receipt never appears.
	status map[byte]uint64
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pendingNonce, nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, tx := range b.sent {
		if tx.Hash() != hash {
			continue
		}
		st, ok := b.status[tx.Data()[0]]
		if !ok {
			return nil, ethereum.NotFound
		}
		return &types.Receipt{Status: st, TxHash: hash}, nil
	}
	return nil, ethereum.NotFound
}

type countingObserver struct{ n map[domain.TxStatus]int }

func (o *countingObserver) ObserveTx(_ string, s domain.TxStatus, _ time.Duration) { o.n[s]++ }

const (
	tagOK      byte = 0x01
	tagRevert  byte = 0x02
	tagPending byte = 0x03
)

func newTestExecutor(t *testing.T, b *fakeBackend, obs Observer) *Executor {
	t.Helper()
	return newLoggedExecutor(t, b, obs, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newLoggedExecutor(t *testing.T, b *fakeBackend, obs Observer, logger *slog.Logger) *Executor {
	t.Helper()
	pk, err := crypto.LoadKey(crypto.KeySource{RawPrivateKey: "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"})
	if err != nil {
		t.Fatal(err)
	}
	return New(b, crypto.NewTxSigner(pk, 56), Config{
		ReceiptTimeout:      50 * time.Millisecond,
		ReceiptPollInterval: 5 * time.Millisecond,
	}, obs, logger)
}

func req(label string, tag byte) domain.TxRequest {
	return domain.TxRequest{
		Label:    label,
		To:       common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E"),
		Data:     []byte{tag},
		GasLimit: 100_000,
		GasPrice: big.NewInt(5e9),
	}
}

func TestSubmitNoncesIncreaseWhenNodeLags(t *testing.T) {
	b := &fakeBackend{pendingNonce: 5, status: map[byte]uint64{tagOK: types.ReceiptStatusSuccessful}}
	obs := &countingObserver{n: map[domain.TxStatus]int{}}
	e := newTestExecutor(t, b, obs)
	ctx := context.Background()

	var nonces []uint64
	for i := 0; i < 3; i++ {
		res, err := e.Submit(ctx, req("buy", tagOK))
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if !res.Succeeded() {
			t.Fatalf("status got=%s want=%s", res.Status, domain.TxConfirmedSuccess)
		}
		nonces = append(nonces, res.Nonce)
	}
	for i, want := range []uint64{5, 6, 7} {
		if nonces[i] != want {
			t.Fatalf("nonce[%d] got=%d want=%d", i, nonces[i], want)
		}
	}
	if obs.n[domain.TxConfirmedSuccess] != 3 {
		t.Fatalf("observer successes got=%d want=3", obs.n[domain.TxConfirmedSuccess])
	}
}

func TestSubmitWarnsWhenFloorOverridesNode(t *testing.T) {
	var buf bytes.Buffer
	b := &fakeBackend{pendingNonce: 5, status: map[byte]uint64{tagOK: types.ReceiptStatusSuccessful}}
	e := newLoggedExecutor(t, b, nil, slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()

	if _, err := e.Submit(ctx, req("buy", tagOK)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if strings.Contains(buf.String(), "stale nonce") {
		t.Fatalf("warned while the node was current:\n%s", buf.String())
	}

	// The node still reports 5 after nonce 5 confirmed.
	res, err := e.Submit(ctx, req("sell", tagOK))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Nonce != 6 {
		t.Fatalf("nonce got=%d want=6", res.Nonce)
	}
	for _, want := range []string{"level=WARN", "stale nonce", "reported=5", "floor=6"} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("log missing %q:\n%s", want, buf.String())
		}
	}
}

func TestSubmitRevertedIsFailureNotError(t *testing.T) {
	b := &fakeBackend{status: map[byte]uint64{tagRevert: types.ReceiptStatusFailed}}
	e := newTestExecutor(t, b, nil)

	res, err := e.Submit(context.Background(), req("sell", tagRevert))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Status != domain.TxConfirmedFailure {
		t.Fatalf("status got=%s want=%s", res.Status, domain.TxConfirmedFailure)
	}
}

func TestSubmitTimesOut(t *testing.T) {
	b := &fakeBackend{status: map[byte]uint64{}}
	e := newTestExecutor(t, b, nil)

	res, err := e.Submit(context.Background(), req("buy", tagPending))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Status != domain.TxTimeout {
		t.Fatalf("status got=%s want=%s", res.Status, domain.TxTimeout)
	}
	if res.Err() == nil {
		t.Fatal("timeout result should carry an error")
	}
}

func TestSubmitSequentialStopsAfterFailedFirst(t *testing.T) {
	b := &fakeBackend{status: map[byte]uint64{tagRevert: types.ReceiptStatusFailed, tagOK: types.ReceiptStatusSuccessful}}
	e := newTestExecutor(t, b, nil)
	built := false

	res, err := e.SubmitSequential(context.Background(), req("approve", tagRevert), func(context.Context) (domain.TxRequest, error) {
		built = true
		return req("sell", tagOK), nil
	})
	if err != nil {
		t.Fatalf("SubmitSequential: %v", err)
	}
	if res.Status != domain.TxConfirmedFailure {
		t.Fatalf("status got=%s want=%s", res.Status, domain.TxConfirmedFailure)
	}
	if built || len(b.sent) != 1 {
		t.Fatalf("follow-up built=%v sent=%d, want no second transaction", built, len(b.sent))
	}
}

func TestSubmitSequentialRunsBothInOrder(t *testing.T) {
	b := &fakeBackend{pendingNonce: 3, status: map[byte]uint64{tagOK: types.ReceiptStatusSuccessful}}
	e := newTestExecutor(t, b, nil)

	res, err := e.SubmitSequential(context.Background(), req("approve", tagOK), func(context.Context) (domain.TxRequest, error) {
		return req("sell", tagOK), nil
	})
	if err != nil || !res.Succeeded() {
		t.Fatalf("SubmitSequential res=%+v err=%v", res, err)
	}
	if len(b.sent) != 2 || b.sent[0].Nonce() != 3 || b.sent[1].Nonce() != 4 {
		t.Fatalf("unexpected transactions sent: %d", len(b.sent))
	}
}
