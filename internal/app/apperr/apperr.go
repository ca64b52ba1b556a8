package apperr

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrSoftConflict         = errors.New("soft conflict")
	ErrInvalidInput         = errors.New("invalid input")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrProviderNotSupported = errors.New("provider not supported")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrInvalidTransition    = errors.New("invalid transaction transition")
)
