package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/layer-3/nametag/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "not_found", Result(fmt.Errorf("lookup: %w", core.ErrNotFound)))
	assert.Equal(t, "transfer_failed", Result(fmt.Errorf("%w: %w", core.ErrTransferPreparationFailed, core.ErrNotFound)))
	assert.Equal(t, "error", Result(errors.New("boom")))
}

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ChallengeIssued()
	m.ChallengeIssued()
	m.Verification(core.ActionChangeUsername, nil)
	m.Verification(core.ActionChangeUsername, core.ErrUnauthorized)
	m.TransferPrepared(core.TokenTypeERC1155, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.challengesIssued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues("change-username", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues("change-username", "unauthorized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transfers.WithLabelValues("ERC1155", "ok")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ChallengeIssued()
	m.Verification(core.ActionChangeUsername, nil)
	m.TransferPrepared(core.TokenTypeERC721, nil)
	m.Request("GET", "/healthz", 200, 0)
}
