package worker

// dlq.go: Dead Letter Queue
// Jobs that exhaust their attempts are parked here, one Redis list per source
// queue (dlq:{original_queue}), until an operator or the redrive cron retries them.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DLQPrefix = "dlq:"

// DLQEntry wraps a failed job with metadata for debugging.
type DLQEntry struct {
	OriginalQueue string          `json:"original_queue"`
	JobType       string          `json:"job_type"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	FailedAt      string          `json:"failed_at"` // RFC 3339
	Attempts      int             `json:"attempts"`
}

// SendToDLQ parks a failed job. Failures to do so are only logged; the job is
// lost, which is acceptable for derived artifacts such as reports.
func SendToDLQ(ctx context.Context, rdb redis.Cmdable, queue string, jobType string, payload json.RawMessage, reason string, attempts int) {
	entry := DLQEntry{
		OriginalQueue: queue,
		JobType:       jobType,
		Payload:       payload,
		Reason:        reason,
		FailedAt:      time.Now().UTC().Format(time.RFC3339),
		Attempts:      attempts,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: failed to marshal entry")
		return
	}

	dlqKey := DLQPrefix + queue
	if err := rdb.LPush(ctx, dlqKey, data).Err(); err != nil {
		log.Error().Err(err).Str("dlq_key", dlqKey).Msg("dlq: failed to push to DLQ")
		return
	}

	log.Warn().
		Str("queue", queue).
		Str("job_type", jobType).
		Str("reason", reason).
		Int("attempts", attempts).
		Msg("dlq: job moved to dead letter queue")
}

// DLQLength returns the number of entries in a DLQ for monitoring.
func DLQLength(ctx context.Context, rdb redis.Cmdable, queue string) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+queue).Result()
}

// Redrive moves up to limite of the oldest entries of queue's DLQ back onto the
// queue with a fresh attempt count. It returns how many were moved.
func Redrive(ctx context.Context, rdb redis.Cmdable, queue string, limite int) (int, error) {
	dlqKey := DLQPrefix + queue
	moved := 0
	for moved < limite {
		raw, err := rdb.RPop(ctx, dlqKey).Bytes()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return moved, fmt.Errorf("dlq: pop %s: %w", dlqKey, err)
		}
		var entry DLQEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			log.Error().Err(err).Str("dlq_key", dlqKey).Msg("dlq: dropping unreadable entry")
			continue
		}
		if err := push(ctx, rdb, queue, Job{Type: entry.JobType, Payload: entry.Payload}); err != nil {
			// Put it back so nothing is lost.
			_ = rdb.RPush(ctx, dlqKey, raw).Err()
			return moved, err
		}
		moved++
	}
	return moved, nil
}
