// Package metrics holds the Prometheus instruments shared by the store,
// schema and ledger packages.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "routebook"

// Metrics bundles every collector. A nil *Metrics is valid and records
// nothing, so packages can be used without a registry.
type Metrics struct {
	LedgerOps      *prometheus.CounterVec
	TxDuration     *prometheus.HistogramVec
	MigrationSteps *prometheus.CounterVec
	AuditFailures  prometheus.Counter
	CacheLookups   *prometheus.CounterVec
}

// New creates the collectors and registers them on reg when reg is non-nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LedgerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
		TxDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "transaction_duration_seconds",
			Help:      "Duration of store transactions by outcome.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"outcome"}),
		MigrationSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schema",
			Name:      "migration_steps_total",
			Help:      "Schema migration steps by target version and outcome.",
		}, []string{"to", "outcome"}),
		AuditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "failures_total",
			Help:      "Audit log appends that failed and were discarded.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "cache_lookups_total",
			Help:      "Aggregate cache lookups by result (hit|miss).",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.LedgerOps, m.TxDuration, m.MigrationSteps, m.AuditFailures, m.CacheLookups)
	}
	return m
}

// LedgerOp counts one ledger operation.
func (m *Metrics) LedgerOp(op string, err error) {
	if m == nil {
		return
	}
	m.LedgerOps.WithLabelValues(op, outcome(err)).Inc()
}

// ObserveTx records a transaction's duration.
func (m *Metrics) ObserveTx(start time.Time, err error) {
	if m == nil {
		return
	}
	m.TxDuration.WithLabelValues(outcome(err)).Observe(time.Since(start).Seconds())
}

// MigrationStep counts one applied (or failed) migration step.
func (m *Metrics) MigrationStep(to string, err error) {
	if m == nil {
		return
	}
	m.MigrationSteps.WithLabelValues(to, outcome(err)).Inc()
}

// AuditFailure counts a discarded audit append.
func (m *Metrics) AuditFailure() {
	if m == nil {
		return
	}
	m.AuditFailures.Inc()
}

// CacheLookup counts an aggregate cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
