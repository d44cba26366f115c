package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TxRequest describes a transaction before it is signed. The nonce is not
// part of the request: the executor reads it from the chain at submission.
type TxRequest struct {
	Label    string // "buy", "approve", "sell"; used in logs and metrics
	To       common.Address
	Data     []byte
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
}

// TxStatus is the terminal state of a submitted transaction.
type TxStatus string

const (
	TxConfirmedSuccess TxStatus = "confirmed_success"
	TxConfirmedFailure TxStatus = "confirmed_failure"
	TxTimeout          TxStatus = "timeout"
)

// TxResult is what the executor reports once a transaction has resolved.
type TxResult struct {
	Status TxStatus
	Hash   common.Hash
	Nonce  uint64
}

// Succeeded reports whether the transaction confirmed with success status.
func (r TxResult) Succeeded() bool {
	return r.Status == TxConfirmedSuccess
}

// Err maps a non-successful result onto a sentinel error.
func (r TxResult) Err() error {
	switch r.Status {
	case TxConfirmedSuccess:
		return nil
	case TxTimeout:
		return ErrTxTimeout
	default:
		return ErrTxFailed
	}
}
