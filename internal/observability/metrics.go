package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Callback outcomes recorded by PaymentCallbacks.
const (
	OutcomeCompleted        = "completed"
	OutcomeFailed           = "failed"
	OutcomeAlreadyProcessed = "already_processed"
	OutcomeInvalid          = "invalid"
	OutcomeNotFound         = "not_found"
	OutcomeUpdateFailed     = "update_failed"
	OutcomeCascadeFailed    = "cascade_failed"
	OutcomeBadSignature     = "bad_signature"
)

// Cascade results recorded by ApplicationCascades.
const (
	CascadeAdvanced = "advanced"
	CascadeNoop     = "noop"
	CascadeError    = "error"
)

var (
	// PaymentCallbacks counts provider callbacks by outcome.
	PaymentCallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cnom_payment_callbacks_total",
		Help: "Total Airtel Money callbacks handled, by outcome",
	}, []string{"outcome"})

	// ApplicationCascades counts submitted->under_review cascade attempts by result.
	ApplicationCascades = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cnom_application_cascades_total",
		Help: "Application cascade attempts after completed inscription payments, by result",
	}, []string{"result"})

	// ReconcileDuration records end-to-end reconciliation latency.
	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cnom_payment_reconcile_duration_seconds",
		Help:    "Payment callback reconciliation latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// RoleResolutions counts access decisions by session state and decision.
	RoleResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cnom_role_resolutions_total",
		Help: "Role access resolutions by resolved state and decision",
	}, []string{"state", "decision"})

	// RoleLookupFailures counts role store reads that failed or timed out.
	RoleLookupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cnom_role_lookup_failures_total",
		Help: "Role lookups that failed and fell back to the default policy",
	})

	// StalePendingPayments is the number of pending payments older than the stale threshold.
	StalePendingPayments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cnom_pending_payments_stale",
		Help: "Pending payments older than the configured staleness threshold",
	})

	// PaymentEventSubscribers is the number of open payment event WebSocket connections.
	PaymentEventSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cnom_payment_event_subscribers",
		Help: "Open WebSocket connections receiving payment events",
	})

	// PaymentEventDrops counts events dropped for slow WebSocket subscribers.
	PaymentEventDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cnom_payment_event_drops_total",
		Help: "Payment events dropped because a subscriber buffer was full",
	})
)
