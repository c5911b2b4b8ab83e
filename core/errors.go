package core

import "errors"

var (
	ErrInvalidRequest            = errors.New("invalid request")
	ErrNotFound                  = errors.New("not found")
	ErrInvalidSignature          = errors.New("invalid signature")
	ErrUnauthorized              = errors.New("unauthorized")
	ErrConflict                  = errors.New("conflict")
	ErrRateLimited               = errors.New("rate limited")
	ErrTransferPreparationFailed = errors.New("transfer preparation failed")
	ErrServiceUnavailable        = errors.New("service unavailable")
)
