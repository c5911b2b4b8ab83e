package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/nametag/core"
)

// statusFor maps a service error to its HTTP status and a short client message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidRequest):
		msg := strings.TrimSuffix(err.Error(), ": "+core.ErrInvalidRequest.Error())
		return http.StatusBadRequest, msg
	case errors.Is(err, core.ErrInvalidSignature):
		return http.StatusUnauthorized, "Invalid signature"
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized, "Signature does not match wallet address"
	case errors.Is(err, core.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many requests"
	case errors.Is(err, core.ErrTransferPreparationFailed):
		// Checked before ErrNotFound: an unknown recipient is a failed preparation.
		if errors.Is(err, core.ErrNotFound) {
			return http.StatusInternalServerError, "Failed to prepare NFT transfer: recipient not found"
		}
		return http.StatusInternalServerError, "Failed to prepare NFT transfer"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict, "Username already taken"
	case errors.Is(err, core.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "Service unavailable"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

// writeError aborts the request with the mapped status and {"error": msg}.
func writeError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "status", status, "err", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
