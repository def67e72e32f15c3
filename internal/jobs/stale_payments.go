// Package jobs runs periodic background checks.
package jobs

import (
	"context"
	"fmt"
	"time"

	"cnom/internal/middleware"
	"cnom/internal/observability"

	"github.com/robfig/cron/v3"
)

// PendingCounter counts pending payments older than a cutoff.
type PendingCounter interface {
	CountStalePending(ctx context.Context, createdBefore time.Time) (int64, error)
}

// StalePaymentMonitor reports payments still waiting for a provider callback
// after the grace period. It only observes; it never settles anything.
type StalePaymentMonitor struct {
	payments PendingCounter
	after    time.Duration
	now      func() time.Time
}

func NewStalePaymentMonitor(payments PendingCounter, after time.Duration) *StalePaymentMonitor {
	if after <= 0 {
		after = 30 * time.Minute
	}
	return &StalePaymentMonitor{payments: payments, after: after, now: time.Now}
}

// Check counts stale pending payments and publishes the gauge.
func (m *StalePaymentMonitor) Check(ctx context.Context) (int64, error) {
	cutoff := m.now().UTC().Add(-m.after)
	n, err := m.payments.CountStalePending(ctx, cutoff)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "stale payment check failed", "error", err)
		return 0, err
	}
	observability.StalePendingPayments.Set(float64(n))
	if n > 0 {
		middleware.Logger.WarnContext(ctx, "payments awaiting provider callback",
			"count", n, "older_than", m.after.String())
	}
	return n, nil
}

// Start schedules Check on a standard five-field cron spec. The returned
// function stops the scheduler and waits for a running check to finish.
func (m *StalePaymentMonitor) Start(ctx context.Context, spec string) (func(), error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid stale payment schedule %q: %w", spec, err)
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		checkCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		_, _ = m.Check(checkCtx)
	}); err != nil {
		return nil, fmt.Errorf("schedule stale payment check: %w", err)
	}
	c.Start()

	return func() {
		<-c.Stop().Done()
	}, nil
}
