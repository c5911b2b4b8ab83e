// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/layer-3/nametag/core"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nametag"

// Metrics groups the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	challengesIssued prometheus.Counter
	verifications    *prometheus.CounterVec
	transfers        *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		challengesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenges_issued_total",
			Help:      "Number of nonce challenges issued.",
		}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenge_verifications_total",
			Help:      "Challenge verification attempts by action and result.",
		}, []string{"action", "result"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_prepared_total",
			Help:      "NFT transfer preparations by token type and result.",
		}, []string{"token_type", "result"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.challengesIssued, m.verifications, m.transfers, m.requestDuration)
	return m
}

func (m *Metrics) ChallengeIssued() {
	if m == nil {
		return
	}
	m.challengesIssued.Inc()
}

func (m *Metrics) Verification(action core.Action, err error) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(string(action), Result(err)).Inc()
}

func (m *Metrics) TransferPrepared(tokenType core.TokenType, err error) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(string(tokenType), Result(err)).Inc()
}

func (m *Metrics) Request(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Result maps an operation error to a low-cardinality label.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, core.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, core.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, core.ErrConflict):
		return "conflict"
	case errors.Is(err, core.ErrTransferPreparationFailed):
		return "transfer_failed"
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	case errors.Is(err, core.ErrServiceUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
