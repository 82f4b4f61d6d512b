// Package metrics exposes ingestion and scheduling counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ingested    *prometheus.CounterVec
	updated     *prometheus.CounterVec
	fetchErrors *prometheus.CounterVec
	records     prometheus.Gauge
	selected    prometheus.Gauge
	gatherer    prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cheaphours_ingested_records_total",
			Help: "Records returned by a source and merged into the store",
		}, []string{"source"}),
		updated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cheaphours_updated_fields_total",
			Help: "Stored fields changed by ingestion",
		}, []string{"source", "field"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cheaphours_fetch_errors_total",
			Help: "Failed source fetches",
		}, []string{"source"}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cheaphours_store_records",
			Help: "Records currently held in the store",
		}),
		selected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cheaphours_selected_hours",
			Help: "Hours in the most recent cheapest-hours selection",
		}),
		gatherer: reg,
	}

	for _, c := range []prometheus.Collector{m.ingested, m.updated, m.fetchErrors, m.records, m.selected} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordIngest counts one source run.
func (m *Metrics) RecordIngest(source string, records, prices, amounts int) {
	if m == nil {
		return
	}
	m.ingested.WithLabelValues(source).Add(float64(records))
	m.updated.WithLabelValues(source, "price").Add(float64(prices))
	m.updated.WithLabelValues(source, "amount").Add(float64(amounts))
}

func (m *Metrics) RecordFetchError(source string) {
	if m == nil {
		return
	}
	m.fetchErrors.WithLabelValues(source).Inc()
}

func (m *Metrics) SetStoreSize(n int) {
	if m == nil {
		return
	}
	m.records.Set(float64(n))
}

func (m *Metrics) SetSelectedHours(h float64) {
	if m == nil {
		return
	}
	m.selected.Set(h)
}
