package service

import "errors"

var (
	ErrInvalidTradeRequest = errors.New("invalid trade request")
	ErrInsufficientBalance = errors.New("account balance is not positive")
	ErrZeroQuantity        = errors.New("computed order quantity is zero")
	ErrLeverageNotEnsured  = errors.New("leverage could not be ensured")
	ErrRiskLimitExceeded   = errors.New("risk limit exceeded")
	ErrSubmissionFailed    = errors.New("order submission failed")
	ErrCancelFailed        = errors.New("order cancel failed")
	ErrPositionNotFound    = errors.New("position not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrIllegalTransition   = errors.New("illegal order transition")
	ErrInvalidAlert        = errors.New("invalid alert")
	ErrAlertQueueFull      = errors.New("alert queue is full")
	ErrRateLimitExceeded   = errors.New("rate limit exceeded")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrLoopAlreadyRunning  = errors.New("trading loop is already running")
	ErrLoopNotRunning      = errors.New("trading loop is not running")
	ErrInvalidRiskParams   = errors.New("invalid risk parameters")
)
