package cache

import (
	"context"
	"time"

	"cnom/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	CallbackJournalStream = "payments:callbacks"
	CallbackJournalMaxLen = 10000
)

// CallbackEntry is one provider callback as received, with the outcome the
// reconciler reached for it.
type CallbackEntry struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	StatusCode    string    `json:"status_code"`
	Message       string    `json:"message"`
	AirtelMoneyID string    `json:"airtel_money_id"`
	Outcome       string    `json:"outcome"`
	ResultStatus  string    `json:"result_status,omitempty"`
	ReceivedAt    time.Time `json:"received_at"`
}

// CallbackJournal appends callbacks to a capped Redis stream.
type CallbackJournal struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

// NewCallbackJournal returns a journal on the default stream. rdb may be nil,
// in which case recording is a no-op.
func NewCallbackJournal(rdb *redis.Client) *CallbackJournal {
	return &CallbackJournal{rdb: rdb, stream: CallbackJournalStream, maxLen: CallbackJournalMaxLen}
}

// Record appends entry to the stream.
func (j *CallbackJournal) Record(ctx context.Context, entry CallbackEntry) error {
	if j == nil || j.rdb == nil {
		return nil
	}
	ctx, span := observability.TraceRedisOperation(ctx, "xadd")
	defer span.End()

	if entry.ReceivedAt.IsZero() {
		entry.ReceivedAt = time.Now().UTC()
	}
	return j.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: j.stream,
		MaxLen: j.maxLen,
		Values: map[string]any{
			"transaction_id":  entry.TransactionID,
			"status_code":     entry.StatusCode,
			"message":         entry.Message,
			"airtel_money_id": entry.AirtelMoneyID,
			"outcome":         entry.Outcome,
			"result_status":   entry.ResultStatus,
			"received_at":     entry.ReceivedAt.Format(time.RFC3339Nano),
		},
	}).Err()
}

// Recent returns up to limit entries, newest first.
func (j *CallbackJournal) Recent(ctx context.Context, limit int) ([]CallbackEntry, error) {
	if j == nil || j.rdb == nil {
		return []CallbackEntry{}, nil
	}
	msgs, err := j.rdb.XRevRangeN(ctx, j.stream, "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]CallbackEntry, 0, len(msgs))
	for _, m := range msgs {
		e := CallbackEntry{
			ID:            m.ID,
			TransactionID: field(m.Values, "transaction_id"),
			StatusCode:    field(m.Values, "status_code"),
			Message:       field(m.Values, "message"),
			AirtelMoneyID: field(m.Values, "airtel_money_id"),
			Outcome:       field(m.Values, "outcome"),
			ResultStatus:  field(m.Values, "result_status"),
		}
		if ts, err := time.Parse(time.RFC3339Nano, field(m.Values, "received_at")); err == nil {
			e.ReceivedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func field(values map[string]any, key string) string {
	s, _ := values[key].(string)
	return s
}
