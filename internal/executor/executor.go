// Package executor submits signed transactions one at a time and waits for
// each to resolve before the next is sent.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/pairsniper/internal/domain"
)

// Backend is the slice of the RPC client the executor needs.
// *ethclient.Client satisfies it.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Signer signs a request at a nonce. *crypto.TxSigner satisfies it.
type Signer interface {
	Address() common.Address
	Sign(req domain.TxRequest, nonce uint64) (*types.Transaction, error)
}

// Observer is told about every resolved transaction.
type Observer interface {
	ObserveTx(label string, status domain.TxStatus, elapsed time.Duration)
}

// Config tunes receipt polling.
type Config struct {
	ReceiptTimeout      time.Duration
	ReceiptPollInterval time.Duration
}

// Executor is the single path by which transactions reach the chain. Calls
// are serialized, so nonces are assigned in submission order and never
// reused while a confirmed transaction holds them.
type Executor struct {
	backend  Backend
	signer   Signer
	cfg      Config
	observer Observer
	logger   *slog.Logger

	mu sync.Mutex
	// floor is one past the last nonce known to be mined. It guards
	// against a lagging node handing back a nonce we already used.
	floor uint64
}

// New creates an Executor. observer may be nil.
func New(backend Backend, signer Signer, cfg Config, observer Observer, logger *slog.Logger) *Executor {
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = 10 * time.Minute
	}
	if cfg.ReceiptPollInterval <= 0 {
		cfg.ReceiptPollInterval = 2 * time.Second
	}
	return &Executor{
		backend:  backend,
		signer:   signer,
		cfg:      cfg,
		observer: observer,
		logger:   logger.With(slog.String("component", "executor")),
	}
}

// Submit signs req, broadcasts it and waits for its receipt. A reverted or
// unconfirmed transaction is reported through TxResult.Status, not as an
// error; the error return is reserved for failures before broadcast.
// Nothing is retried.
func (e *Executor) Submit(ctx context.Context, req domain.TxRequest) (domain.TxResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.submitLocked(ctx, req)
}

// SubmitSequential submits first, and only if it confirms successfully
// builds and submits the follow-up. The second request is built after the
// first confirms so it can depend on post-first state. If first does not
// succeed its result is returned and no second transaction is sent.
func (e *Executor) SubmitSequential(ctx context.Context, first domain.TxRequest, next func(context.Context) (domain.TxRequest, error)) (domain.TxResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.submitLocked(ctx, first)
	if err != nil || !res.Succeeded() {
		return res, err
	}
	req, err := next(ctx)
	if err != nil {
		return domain.TxResult{}, fmt.Errorf("executor: build follow-up to %s: %w", first.Label, err)
	}
	return e.submitLocked(ctx, req)
}

func (e *Executor) submitLocked(ctx context.Context, req domain.TxRequest) (domain.TxResult, error) {
	from := e.signer.Address()
	nonce, err := e.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return domain.TxResult{}, fmt.Errorf("executor: nonce for %s: %w", from.Hex(), err)
	}
	if nonce < e.floor {
		e.logger.Warn("node reported a stale nonce, using local floor",
			slog.String("from", from.Hex()),
			slog.Uint64("reported", nonce),
			slog.Uint64("floor", e.floor),
		)
		nonce = e.floor
	}

	tx, err := e.signer.Sign(req, nonce)
	if err != nil {
		return domain.TxResult{}, fmt.Errorf("executor: %w", err)
	}

	log := e.logger.With(
		slog.String("label", req.Label),
		slog.String("tx", tx.Hash().Hex()),
		slog.Uint64("nonce", nonce),
	)
	start := time.Now()
	if err := e.backend.SendTransaction(ctx, tx); err != nil {
		return domain.TxResult{}, fmt.Errorf("executor: send %s: %w", req.Label, err)
	}
	log.Info("transaction sent", slog.Uint64("gas", req.GasLimit))

	res := domain.TxResult{Hash: tx.Hash(), Nonce: nonce}
	receipt, err := e.waitReceipt(ctx, tx.Hash())
	switch {
	case err != nil:
		res.Status = domain.TxTimeout
		log.Warn("transaction not confirmed", slog.String("error", err.Error()))
	case receipt.Status == types.ReceiptStatusSuccessful:
		res.Status = domain.TxConfirmedSuccess
		e.floor = nonce + 1
		log.Info("transaction confirmed", slog.Uint64("gas_used", receipt.GasUsed))
	default:
		res.Status = domain.TxConfirmedFailure
		e.floor = nonce + 1
		log.Warn("transaction reverted", slog.Uint64("gas_used", receipt.GasUsed))
	}
	if e.observer != nil {
		e.observer.ObserveTx(req.Label, res.Status, time.Since(start))
	}
	return res, nil
}

// waitReceipt polls for hash until it is mined, the receipt timeout passes,
// or ctx ends.
func (e *Executor) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(e.cfg.ReceiptPollInterval)
	defer ticker.Stop()
	for {
		receipt, err := e.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			e.logger.Debug("receipt lookup failed", slog.String("tx", hash.Hex()), slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("executor: waiting for %s: %w", hash.Hex(), domain.ErrTxTimeout)
		case <-ticker.C:
		}
	}
}
