package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Payment outcome labels.
const (
	OutcomeSuccess      = "success"
	OutcomePartialWrite = "partial_write"
	OutcomeFailed       = "failed"
	OutcomeRejected     = "rejected"
)

// LedgerMetrics records payment protocol and transaction entry outcomes.
type LedgerMetrics struct {
	duration   *prometheus.HistogramVec
	outcomes   *prometheus.CounterVec
	logFailure *prometheus.CounterVec
	staleReads *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_payment_duration_seconds",
		Help:    "Duration of payment recordings in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_payment_outcomes_total",
		Help: "Payment recordings by target kind and outcome.",
	}, []string{"kind", "outcome"})
	logFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_transaction_log_failures_total",
		Help: "Transaction rows that could not be written while the payment continued.",
	}, []string{"kind"})
	staleReads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_stale_reads_total",
		Help: "Post-write reads that disagreed with the written value.",
	}, []string{"entity"})
	reg.MustRegister(duration, outcomes, logFailure, staleReads)
	return &LedgerMetrics{
		duration:   duration,
		outcomes:   outcomes,
		logFailure: logFailure,
		staleReads: staleReads,
	}
}

// ObservePayment records the duration and outcome of one payment recording.
func (m *LedgerMetrics) ObservePayment(kind, outcome string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(kind)).Observe(duration.Seconds())
	m.outcomes.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

// IncTransactionLogFailure counts a best-effort transaction insert that failed.
func (m *LedgerMetrics) IncTransactionLogFailure(kind string) {
	if m == nil || m.logFailure == nil {
		return
	}
	m.logFailure.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncStaleRead counts a re-read row that did not match what was written.
func (m *LedgerMetrics) IncStaleRead(entity string) {
	if m == nil || m.staleReads == nil {
		return
	}
	m.staleReads.WithLabelValues(normalizeLabel(entity)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
