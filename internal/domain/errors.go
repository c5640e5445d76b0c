package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrLockHeld         = errors.New("lock already held")
	ErrTxUnavailable    = errors.New("transaction not available")
	ErrLoanTooSmall     = errors.New("loan amount must be positive")
	ErrWSDisconnect     = errors.New("websocket disconnected")
	ErrScoreUnavailable = errors.New("confidence score unavailable")
)
