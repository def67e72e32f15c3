package notifications

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestNotifier_NilRedis(t *testing.T) {
	// Notifier with nil Redis should return nil error (fail-open/noop)
	n := NewNotifier(nil)
	assert.NoError(t, n.PublishPaymentEvent(context.Background(), PaymentEvent{TransactionID: "TX1"}))
	assert.NoError(t, n.StartPaymentSubscriber(context.Background(), func(string, string) {}))
}

func TestNotifier_PublishPaymentEvent(t *testing.T) {
	rdb := setupRedis(t)
	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	all := rdb.PSubscribe(ctx, "*")
	_, err := all.Receive(ctx)
	require.NoError(t, err)
	defer func() { _ = all.Close() }()
	seen := all.Channel()

	payloads := make(chan string, 1)
	require.NoError(t, n.StartPaymentSubscriber(ctx, func(channel, payload string) {
		assert.Equal(t, PaymentEventsChannel, channel)
		payloads <- payload
	}))

	now := time.Now().UTC()
	require.NoError(t, n.PublishPaymentEvent(context.Background(), PaymentEvent{
		Type:          EventPaymentCompleted,
		TransactionID: "TX1",
		ProfileID:     "prof-1",
		Status:        "completed",
		PaidAt:        &now,
	}))

	select {
	case payload := <-payloads:
		var evt PaymentEvent
		require.NoError(t, json.Unmarshal([]byte(payload), &evt))
		assert.Equal(t, "TX1", evt.TransactionID)
		assert.Equal(t, EventPaymentCompleted, evt.Type)
	case <-time.After(time.Second):
		t.Fatal("payment event not delivered")
	}

	select {
	case msg := <-seen:
		assert.Equal(t, PaymentEventsChannel, msg.Channel)
		assert.Contains(t, msg.Payload, `"transaction_id":"TX1"`)
	case <-time.After(time.Second):
		t.Fatal("pattern subscriber saw nothing")
	}
	// Only the shared channel carries the event.
	select {
	case msg := <-seen:
		t.Fatalf("unexpected publish on %s", msg.Channel)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotifier_StartPaymentSubscriber_StopsOnCancel(t *testing.T) {
	rdb := setupRedis(t)
	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var received int32
	payloads := make(chan string, 2)
	require.NoError(t, n.StartPaymentSubscriber(ctx, func(_ string, payload string) {
		atomic.AddInt32(&received, 1)
		payloads <- payload
	}))

	require.NoError(t, n.PublishPaymentEvent(context.Background(), PaymentEvent{TransactionID: "before-cancel"}))
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&received) >= 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)

	// Drain the pre-cancel message to avoid false positives.
	select {
	case <-payloads:
	default:
	}

	require.NoError(t, n.PublishPaymentEvent(context.Background(), PaymentEvent{TransactionID: "after-cancel"}))
	assert.Never(t, func() bool {
		select {
		case payload := <-payloads:
			return payload != ""
		default:
			return false
		}
	}, 200*time.Millisecond, 10*time.Millisecond)
}

func TestNotifier_SubscriberRecoversFromPanic(t *testing.T) {
	rdb := setupRedis(t)
	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	require.NoError(t, n.StartPaymentSubscriber(ctx, func(string, string) {
		if atomic.AddInt32(&calls, 1) == 1 {
			panic("boom")
		}
	}))

	require.NoError(t, n.PublishPaymentEvent(context.Background(), PaymentEvent{TransactionID: "TX1"}))
	require.NoError(t, n.PublishPaymentEvent(context.Background(), PaymentEvent{TransactionID: "TX2"}))
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 2
	}, time.Second, 10*time.Millisecond)
}
