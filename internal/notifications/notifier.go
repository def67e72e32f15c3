// Package notifications publishes payment events over Redis and relays them
// to WebSocket subscribers.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"github.com/redis/go-redis/v9"
)

// PaymentEventsChannel carries every payment status transition.
const PaymentEventsChannel = "payments:events"

// Payment event types.
const (
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
)

// PaymentEvent is published after the reconciler settles a payment.
type PaymentEvent struct {
	Type                string     `json:"type"`
	PaymentID           string     `json:"payment_id"`
	TransactionID       string     `json:"transaction_id"`
	ProfileID           string     `json:"profile_id"`
	PaymentType         string     `json:"payment_type"`
	Status              string     `json:"status"`
	PaidAt              *time.Time `json:"paid_at,omitempty"`
	ApplicationAdvanced bool       `json:"application_advanced"`
	OccurredAt          time.Time  `json:"occurred_at"`
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishPaymentEvent publishes evt on PaymentEventsChannel. Per-profile
// delivery goes through the stored notification rows instead.
func (n *Notifier) PublishPaymentEvent(ctx context.Context, evt PaymentEvent) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal payment event: %w", err)
	}

	return n.rdb.Publish(ctx, PaymentEventsChannel, payload).Err()
}

// StartPaymentSubscriber subscribes to PaymentEventsChannel and calls onMessage
// for each incoming message until ctx is cancelled.
func (n *Notifier) StartPaymentSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, PaymentEventsChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", PaymentEventsChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in PaymentSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
