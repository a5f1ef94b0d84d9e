package apperrors

import "errors"

// Standardized bridge errors
var (
	ErrValidationReject     = errors.New("validation reject")
	ErrOrderExpired         = errors.New("order expired")
	ErrOutsideTradingHours  = errors.New("outside trading hours")
	ErrDecodeFailure        = errors.New("decode failure")
	ErrPersistenceFailure   = errors.New("persistence failure")
	ErrBrokerCallFailure    = errors.New("broker call failure")
	ErrLivenessViolation    = errors.New("broker session liveness violation")
	ErrSessionCreateFailure = errors.New("broker session create failure")
	ErrOrderNotFound        = errors.New("order not found")
	ErrQueueFull            = errors.New("hand-off queue full")
)
