// Package metrics exposes prometheus metrics of the catalog.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/protrend/regnet/pkg/cypher"
	"github.com/protrend/regnet/pkg/queryset"
	"github.com/protrend/regnet/pkg/resultset"
)

const namespace = "regnet"

// Metrics holds the collectors of the catalog.
//
// A nil Metrics is valid, and discards all observations.
type Metrics struct {
	queries       *prometheus.CounterVec
	queryErrors   *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	allocated     *prometheus.CounterVec
	duplicates    *prometheus.CounterVec
	deletions     *prometheus.CounterVec
}

// New creates new metrics and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "queries_total",
			Help:      "Number of queries executed",
		}, []string{"kind"}),
		queryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "query_errors_total",
			Help:      "Number of queries that failed",
		}, []string{"kind"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "query_duration_seconds",
			Help:      "Query duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"kind"}),
		allocated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "identifiers_allocated_total",
			Help:      "Number of identifiers allocated to new entities",
		}, []string{"entity"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "duplicates_rejected_total",
			Help:      "Number of creations and updates rejected for a duplicate natural key",
		}, []string{"entity"}),
		deletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "deletions_total",
			Help:      "Number of entities deleted, including cascaded deletions",
		}, []string{"entity"}),
	}

	for _, c := range []prometheus.Collector{m.queries, m.queryErrors, m.queryDuration, m.allocated, m.duplicates, m.deletions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Allocated records that count identifiers of entity were allocated.
func (m *Metrics) Allocated(entity string, count int) {
	if m == nil {
		return
	}
	m.allocated.WithLabelValues(entity).Add(float64(count))
}

// Duplicate records that a duplicate entity was rejected.
func (m *Metrics) Duplicate(entity string) {
	if m == nil {
		return
	}
	m.duplicates.WithLabelValues(entity).Inc()
}

// Deleted records that an entity was deleted.
func (m *Metrics) Deleted(entity string) {
	if m == nil {
		return
	}
	m.deletions.WithLabelValues(entity).Inc()
}

// Runner instruments the given runner.
// If m is nil, returns runner unchanged.
func (m *Metrics) Runner(runner queryset.Runner) queryset.Runner {
	if m == nil {
		return runner
	}
	return instrumented{Runner: runner, m: m}
}

type instrumented struct {
	queryset.Runner
	m *Metrics
}

func (ir instrumented) Run(ctx context.Context, q cypher.Query) (resultset.Table, error) {
	kind := q.Kind.String()

	start := time.Now()
	table, err := ir.Runner.Run(ctx, q)
	ir.m.queryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	ir.m.queries.WithLabelValues(kind).Inc()
	if err != nil {
		ir.m.queryErrors.WithLabelValues(kind).Inc()
	}
	return table, err
}
