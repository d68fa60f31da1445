package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.Edits.WithLabelValues("claim", OutcomeOK).Inc()
	m.Edits.WithLabelValues("claim", OutcomeOK).Inc()
	m.Transitions.WithLabelValues("claim", "DRAFT", "VALIDATION").Inc()
	m.EditDuration.WithLabelValues("claim").Observe(0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Edits.WithLabelValues("claim", OutcomeOK)))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `brokerdesk_lifecycle_transitions_total{entity="claim",from="DRAFT",to="VALIDATION"} 1`)

	// Separate instances never collide.
	_ = New()
}
