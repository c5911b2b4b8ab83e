package nametag

import (
	"fmt"
	"net/http"

	"github.com/layer-3/nametag/core"
)

// APIError is a non-2xx answer of the nametag API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("nametag api: %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the status code back to the core error kind, so callers can
// use errors.Is(err, core.ErrConflict) and friends.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return core.ErrInvalidRequest
	case http.StatusUnauthorized:
		return core.ErrUnauthorized
	case http.StatusNotFound:
		return core.ErrNotFound
	case http.StatusConflict:
		return core.ErrConflict
	case http.StatusTooManyRequests:
		return core.ErrRateLimited
	case http.StatusServiceUnavailable:
		return core.ErrServiceUnavailable
	default:
		return nil
	}
}
