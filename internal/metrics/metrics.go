// Package metrics exposes lifecycle counters on a private Prometheus registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Edit outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeRejected  = "rejected"
	OutcomeForbidden = "forbidden"
	OutcomeError     = "error"
)

type Metrics struct {
	Registry     *prometheus.Registry
	Edits        *prometheus.CounterVec
	Transitions  *prometheus.CounterVec
	EditDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		Edits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerdesk_lifecycle_edits_total",
			Help: "Lifecycle edit requests by entity and outcome",
		}, []string{"entity", "outcome"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerdesk_lifecycle_transitions_total",
			Help: "Committed status transitions",
		}, []string{"entity", "from", "to"}),
		EditDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "brokerdesk_edit_duration_seconds",
			Help:    "Time to validate and commit an edit",
			Buckets: prometheus.DefBuckets,
		}, []string{"entity"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
