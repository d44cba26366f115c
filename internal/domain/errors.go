package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrPositionExists = errors.New("position already exists")
	ErrLockHeld       = errors.New("lock already held")
	ErrInvalidAddress = errors.New("invalid address")
	ErrNoQuote        = errors.New("no quote")
	ErrNoEntryQuote   = errors.New("no entry quote after buy")
	ErrBuyFailed      = errors.New("buy failed")
	ErrSellFailed     = errors.New("sell failed")
	ErrTxFailed       = errors.New("transaction reverted")
	ErrTxTimeout      = errors.New("transaction confirmation timed out")
	ErrSigningFailed  = errors.New("signing failed")
)
