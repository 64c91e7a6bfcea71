package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mithrel/ingestd/internal/ingest"
)

// Metrics contains the Prometheus metrics for the ingest daemon
type Metrics struct {
	reg *prometheus.Registry

	Outcomes     *prometheus.CounterVec
	PayloadBytes prometheus.Histogram
}

// NewMetrics creates and registers all metrics on a private registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	m := &Metrics{
		reg: reg,
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestd_outcomes_total",
			Help: "Connections handled, by outcome kind",
		}, []string{"kind"}),
		PayloadBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingestd_payload_bytes",
			Help:    "Size of payloads read to end of stream",
			Buckets: prometheus.ExponentialBuckets(64, 4, 10),
		}),
	}
	// Pre-create every series so dashboards see zeros instead of gaps.
	for _, k := range ingest.Kinds() {
		m.Outcomes.WithLabelValues(string(k))
	}
	return m
}

// Report implements ingest.Observer.
func (m *Metrics) Report(o ingest.Outcome) {
	m.Outcomes.WithLabelValues(string(o.Kind)).Inc()
	if o.Kind != ingest.KindAcceptFailed {
		m.PayloadBytes.Observe(float64(o.Size))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
