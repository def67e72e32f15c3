// Package service implements the application's business operations on top of
// the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cnom/internal/cache"
	"cnom/internal/middleware"
	"cnom/internal/models"
	"cnom/internal/notifications"
	"cnom/internal/observability"
	"cnom/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// Reconciliation failures. Handlers map them to the provider-facing responses.
var (
	ErrInvalidCallback = errors.New("invalid callback data")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrUpdateFailed    = errors.New("failed to update payment")
	ErrCascadeFailed   = errors.New("failed to advance application")
)

// CallbackInput is a provider callback after decoding.
type CallbackInput struct {
	TransactionID string
	StatusCode    string
	Message       string
	AirtelMoneyID string
}

// ReconcileResult describes the state a callback left the payment in.
type ReconcileResult struct {
	Status              models.PaymentStatus
	Payment             *models.Payment
	ApplicationAdvanced bool
	// AlreadyProcessed is set when the payment was terminal before this callback.
	AlreadyProcessed bool
}

// CallbackRecorder journals every callback received.
type CallbackRecorder interface {
	Record(ctx context.Context, entry cache.CallbackEntry) error
}

// EventPublisher announces settled payments.
type EventPublisher interface {
	PublishPaymentEvent(ctx context.Context, evt notifications.PaymentEvent) error
}

// PaymentReconciler applies provider callbacks to pending payments and
// advances the owning application after a completed inscription fee.
// It keeps no state between calls; the database serializes concurrent callbacks.
type PaymentReconciler struct {
	payments      repository.PaymentRepository
	applications  repository.ApplicationRepository
	notifications repository.NotificationRepository
	journal       CallbackRecorder
	events        EventPublisher
	now           func() time.Time
}

// NewPaymentReconciler wires a reconciler. notificationRepo, journal and events may be nil.
func NewPaymentReconciler(
	payments repository.PaymentRepository,
	applications repository.ApplicationRepository,
	notificationRepo repository.NotificationRepository,
	journal CallbackRecorder,
	events EventPublisher,
) *PaymentReconciler {
	return &PaymentReconciler{
		payments:      payments,
		applications:  applications,
		notifications: notificationRepo,
		journal:       journal,
		events:        events,
		now:           time.Now,
	}
}

// Reconcile applies one provider callback.
func (r *PaymentReconciler) Reconcile(ctx context.Context, in CallbackInput) (res ReconcileResult, err error) {
	start := time.Now()
	txID := strings.TrimSpace(in.TransactionID)

	span, ctx := observability.StartSpan(ctx, "reconciler.Reconcile",
		attribute.String("payment.transaction_id", txID),
		attribute.String("payment.provider_status_code", in.StatusCode),
	)
	outcome := observability.OutcomeInvalid
	defer func() {
		span.AddAttributes(attribute.String("reconcile.outcome", outcome))
		span.SetError(err)
		span.End()
		observability.PaymentCallbacks.WithLabelValues(outcome).Inc()
		observability.ReconcileDuration.Observe(time.Since(start).Seconds())
		r.record(ctx, in, txID, outcome, res.Status)
	}()

	if txID == "" {
		return ReconcileResult{}, ErrInvalidCallback
	}

	payment, err := r.payments.FindByTransactionID(ctx, txID)
	if err != nil {
		if models.IsNotFound(err) {
			outcome = observability.OutcomeNotFound
			middleware.Logger.WarnContext(ctx, "payment callback for unknown transaction",
				"transaction_id", txID, "status_code", in.StatusCode)
			return ReconcileResult{}, ErrPaymentNotFound
		}
		outcome = observability.OutcomeUpdateFailed
		return ReconcileResult{}, fmt.Errorf("find payment %s: %w", txID, err)
	}

	if payment.PaymentStatus.Terminal() {
		outcome = observability.OutcomeAlreadyProcessed
		return r.acknowledgeTerminal(ctx, payment, &outcome)
	}

	verdict := models.VerdictForProviderCode(in.StatusCode)
	settle := models.PaymentOutcome{
		Status:             verdict,
		ProviderReference:  in.AirtelMoneyID,
		ProviderStatusCode: in.StatusCode,
		ProviderMessage:    in.Message,
	}
	if verdict == models.PaymentStatusCompleted {
		paidAt := r.now().UTC()
		settle.PaidAt = &paidAt
	}

	won, err := r.payments.Settle(ctx, payment.ID, settle)
	if err != nil {
		outcome = observability.OutcomeUpdateFailed
		middleware.Logger.ErrorContext(ctx, "failed to settle payment",
			"transaction_id", txID, "payment_id", payment.ID, "error", err)
		return ReconcileResult{}, fmt.Errorf("%w: %v", ErrUpdateFailed, err)
	}
	if !won {
		// A concurrent callback settled the payment first; report its result.
		current, err := r.payments.FindByTransactionID(ctx, txID)
		if err != nil {
			outcome = observability.OutcomeUpdateFailed
			return ReconcileResult{}, fmt.Errorf("%w: reload after lost race: %v", ErrUpdateFailed, err)
		}
		outcome = observability.OutcomeAlreadyProcessed
		return r.acknowledgeTerminal(ctx, current, &outcome)
	}

	payment.PaymentStatus = settle.Status
	payment.PaidAt = settle.PaidAt
	payment.ProviderReference = settle.ProviderReference
	payment.ProviderStatusCode = settle.ProviderStatusCode
	payment.ProviderMessage = settle.ProviderMessage
	res = ReconcileResult{Status: verdict, Payment: payment}

	if verdict == models.PaymentStatusCompleted {
		outcome = observability.OutcomeCompleted
	} else {
		outcome = observability.OutcomeFailed
	}

	advanced, err := r.cascade(ctx, payment)
	res.ApplicationAdvanced = advanced
	if err != nil {
		outcome = observability.OutcomeCascadeFailed
		return res, err
	}

	r.notify(ctx, payment, advanced)
	middleware.Logger.InfoContext(ctx, "payment reconciled",
		"transaction_id", txID, "payment_id", payment.ID, "status", verdict,
		"application_advanced", advanced)
	return res, nil
}

// acknowledgeTerminal reports a payment that was already settled. A completed
// inscription fee re-attempts the cascade so a provider retry can heal an
// earlier cascade failure. The first call to actually advance the application
// sends the notification the failed attempt never sent.
func (r *PaymentReconciler) acknowledgeTerminal(ctx context.Context, payment *models.Payment, outcome *string) (ReconcileResult, error) {
	res := ReconcileResult{Status: payment.PaymentStatus, Payment: payment, AlreadyProcessed: true}
	advanced, err := r.cascade(ctx, payment)
	res.ApplicationAdvanced = advanced
	if err != nil {
		*outcome = observability.OutcomeCascadeFailed
		return res, err
	}
	if advanced {
		r.notify(ctx, payment, true)
		middleware.Logger.InfoContext(ctx, "application advanced on callback retry",
			"transaction_id", payment.TransactionID, "payment_id", payment.ID)
	}
	return res, nil
}

// cascade advances the owner's application from submitted to under_review
// after a completed inscription payment. Any other application status is left alone.
func (r *PaymentReconciler) cascade(ctx context.Context, payment *models.Payment) (bool, error) {
	if payment.PaymentStatus != models.PaymentStatusCompleted || payment.PaymentType != models.PaymentTypeInscription {
		return false, nil
	}

	advanced, err := r.applications.AdvanceStatus(ctx, payment.ProfileID,
		models.ApplicationStatusSubmitted, models.ApplicationStatusUnderReview)
	if err != nil {
		observability.ApplicationCascades.WithLabelValues(observability.CascadeError).Inc()
		middleware.Logger.ErrorContext(ctx, "failed to advance application after inscription payment",
			"transaction_id", payment.TransactionID, "profile_id", payment.ProfileID, "error", err)
		return false, fmt.Errorf("%w: %v", ErrCascadeFailed, err)
	}
	if advanced {
		observability.ApplicationCascades.WithLabelValues(observability.CascadeAdvanced).Inc()
	} else {
		observability.ApplicationCascades.WithLabelValues(observability.CascadeNoop).Inc()
	}
	return advanced, nil
}

// notify writes the in-app notification and publishes the payment event.
// Both are best-effort.
func (r *PaymentReconciler) notify(ctx context.Context, payment *models.Payment, advanced bool) {
	evtType := notifications.EventPaymentFailed
	n := models.Notification{
		ProfileID: payment.ProfileID,
		Type:      models.NotificationPaymentFailed,
		Title:     "Paiement échoué",
		Message:   fmt.Sprintf("Le paiement %s n'a pas abouti. Vous pouvez réessayer depuis votre espace.", payment.TransactionID),
	}
	if payment.PaymentStatus == models.PaymentStatusCompleted {
		evtType = notifications.EventPaymentCompleted
		n.Type = models.NotificationPaymentCompleted
		n.Title = "Paiement confirmé"
		n.Message = fmt.Sprintf("Votre paiement %s a été confirmé.", payment.TransactionID)
		if advanced {
			n.Message += " Votre dossier d'inscription est en cours d'examen."
		}
	}

	if r.notifications != nil {
		if err := r.notifications.Create(ctx, &n); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to store payment notification",
				"transaction_id", payment.TransactionID, "error", err)
		}
	}

	if r.events != nil {
		evt := notifications.PaymentEvent{
			Type:                evtType,
			PaymentID:           payment.ID,
			TransactionID:       payment.TransactionID,
			ProfileID:           payment.ProfileID,
			PaymentType:         string(payment.PaymentType),
			Status:              string(payment.PaymentStatus),
			PaidAt:              payment.PaidAt,
			ApplicationAdvanced: advanced,
			OccurredAt:          r.now().UTC(),
		}
		if err := r.events.PublishPaymentEvent(ctx, evt); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to publish payment event",
				"transaction_id", payment.TransactionID, "error", err)
		}
	}
}

func (r *PaymentReconciler) record(ctx context.Context, in CallbackInput, txID, outcome string, status models.PaymentStatus) {
	if r.journal == nil {
		return
	}
	entry := cache.CallbackEntry{
		TransactionID: txID,
		StatusCode:    in.StatusCode,
		Message:       in.Message,
		AirtelMoneyID: in.AirtelMoneyID,
		Outcome:       outcome,
		ResultStatus:  string(status),
		ReceivedAt:    r.now().UTC(),
	}
	if err := r.journal.Record(ctx, entry); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to journal payment callback",
			"transaction_id", txID, "error", err)
	}
}
