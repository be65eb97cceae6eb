// Package metrics provides Prometheus metrics collection for rowmap.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/artpar/rowmap/core/coerce"
	"github.com/artpar/rowmap/core/relation"
	"github.com/artpar/rowmap/core/schema"
	"github.com/artpar/rowmap/core/storage"
	"github.com/artpar/rowmap/ports"
)

// Collector holds all Prometheus metrics for rowmap.
// It implements ports.Recorder.
type Collector struct {
	// Engine metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	CascadeSaves      *prometheus.CounterVec
	Hydrations        *prometheus.CounterVec
	TablesCreated     prometheus.Counter

	// Browse API metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

var _ ports.Recorder = (*Collector)(nil)

// New creates a collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rowmap",
				Name:      "operations_total",
				Help:      "Total number of persistence operations",
			},
			[]string{"op", "entity", "outcome"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "rowmap",
				Name:      "operation_duration_seconds",
				Help:      "Persistence operation duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
			},
			[]string{"op", "entity"},
		),
		CascadeSaves: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rowmap",
				Name:      "cascade_saves_total",
				Help:      "Referenced entities saved ahead of their dependents",
			},
			[]string{"entity"},
		),
		Hydrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rowmap",
				Name:      "hydrations_total",
				Help:      "Referenced entities loaded while reading rows",
			},
			[]string{"entity"},
		),
		TablesCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rowmap",
				Name:      "tables_created_total",
				Help:      "Tables created by schema introspection",
			},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rowmap",
				Name:      "http_requests_total",
				Help:      "Total number of browse API requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "rowmap",
				Name:      "http_request_duration_seconds",
				Help:      "Browse API request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rowmap",
				Name:      "config_reloads_total",
				Help:      "Total number of configuration reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rowmap",
				Name:      "config_reload_errors_total",
				Help:      "Total number of failed configuration reloads",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "rowmap",
				Name:      "config_last_reload_timestamp_seconds",
				Help:      "Unix timestamp of the last successful configuration reload",
			},
		),
	}
}

// Operation records one engine operation.
func (c *Collector) Operation(op, entity string, d time.Duration, err error) {
	c.OperationsTotal.WithLabelValues(op, entity, Outcome(err)).Inc()
	c.OperationDuration.WithLabelValues(op, entity).Observe(d.Seconds())
}

// CascadeSave records a referenced entity saved ahead of its dependent.
func (c *Collector) CascadeSave(entity string) {
	c.CascadeSaves.WithLabelValues(entity).Inc()
}

// Hydration records a referenced entity loaded while reading a row.
func (c *Collector) Hydration(entity string) {
	c.Hydrations.WithLabelValues(entity).Inc()
}

// TableCreated records a table created by introspection.
func (c *Collector) TableCreated(string) {
	c.TablesCreated.Inc()
}

// RecordReload records the result of a configuration reload.
func (c *Collector) RecordReload(at time.Time, err error) {
	if err != nil {
		c.ConfigReloadErrors.Inc()
		return
	}
	c.ConfigReloads.Inc()
	c.ConfigLastReload.Set(float64(at.Unix()))
}

// Outcome classifies an operation error into a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, relation.ErrDanglingReference):
		return "dangling_reference"
	case errors.Is(err, relation.ErrDepthExceeded):
		return "depth_exceeded"
	case errors.Is(err, coerce.ErrCoercion):
		return "coercion_error"
	case errors.Is(err, schema.ErrSchema):
		return "schema_error"
	case errors.Is(err, storage.ErrStorage):
		return "storage_error"
	default:
		return "error"
	}
}
