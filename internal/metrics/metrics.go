// Package metrics exposes Prometheus metrics for the ingestion pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Results recorded in items_processed_total.
const (
	ResultSaved   = "saved"
	ResultInvalid = "invalid"
	ResultFailed  = "failed"
)

// Metrics holds the pipeline metrics. A nil *Metrics records nothing.
type Metrics struct {
	processed        *prometheus.CounterVec   // By class and result (saved/invalid/failed)
	validationErrors *prometheus.CounterVec   // By class and field
	saveDuration     *prometheus.HistogramVec // By class
}

// New creates the pipeline metrics and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docitem",
			Name:      "items_processed_total",
			Help:      "Total number of ingested records by outcome",
		}, []string{"class", "result"}),
		validationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docitem",
			Name:      "validation_errors_total",
			Help:      "Total number of field validation errors",
		}, []string{"class", "field"}),
		saveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docitem",
			Name:      "save_duration_seconds",
			Help:      "Item save duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}, // Sub-millisecond to 1s
		}, []string{"class"}),
	}
	for _, c := range []prometheus.Collector{m.processed, m.validationErrors, m.saveDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Processed counts a record of class with the given result.
func (m *Metrics) Processed(class, result string) {
	if m == nil {
		return
	}
	m.processed.WithLabelValues(class, result).Inc()
}

// ValidationErrors counts one error per failing field.
func (m *Metrics) ValidationErrors(class string, fields []string) {
	if m == nil {
		return
	}
	for _, f := range fields {
		m.validationErrors.WithLabelValues(class, f).Inc()
	}
}

// ObserveSave records how long saving an item of class took.
func (m *Metrics) ObserveSave(class string, d time.Duration) {
	if m == nil {
		return
	}
	m.saveDuration.WithLabelValues(class).Observe(d.Seconds())
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
