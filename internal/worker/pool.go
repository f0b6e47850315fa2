package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueReporte = "jobs:reporte_turno"
	QueueEmail   = "jobs:email"

	JobReporteTurno = "reporte_turno"
	JobEmail        = "email"

	// DefaultMaxAttempts is how many times a job runs before it goes to the DLQ.
	DefaultMaxAttempts = 3
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// Handler processes one job payload. A returned error schedules a retry.
type Handler func(ctx context.Context, payload json.RawMessage) error

// ── Dispatcher ────────────────────────────────────────────────────────────────

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb redis.Cmdable
}

func NewDispatcher(rdb redis.Cmdable) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// ReporteJobPayload is the job envelope sent to QueueReporte.
type ReporteJobPayload struct {
	TurnoID string `json:"turno_id"`
}

// TurnoCerrado enqueues the close report of a shift.
func (d *Dispatcher) TurnoCerrado(ctx context.Context, turnoID uuid.UUID) error {
	return d.enqueue(ctx, QueueReporte, JobReporteTurno, ReporteJobPayload{TurnoID: turnoID.String()})
}

// EnqueueEmail pushes an email job to Redis.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, JobEmail, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return push(ctx, d.rdb, queue, Job{Type: jobType, Payload: data})
}

func push(ctx context.Context, rdb redis.Cmdable, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := rdb.LPush(ctx, queue, encoded).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", queue, err)
	}
	return nil
}

// ── Pool ──────────────────────────────────────────────────────────────────────

// Pool consumes the registered queues. Each goroutine blocks on BRPOP, so it
// costs nothing while idle.
type Pool struct {
	rdb         *redis.Client
	maxAttempts int
	handlers    map[string]Handler // by job type
	queues      []string
	wg          sync.WaitGroup
}

func NewPool(rdb *redis.Client, maxAttempts int) *Pool {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Pool{rdb: rdb, maxAttempts: maxAttempts, handlers: map[string]Handler{}}
}

// Register routes jobs of jobType, read from queue, to h.
func (p *Pool) Register(queue, jobType string, h Handler) {
	p.handlers[jobType] = h
	for _, q := range p.queues {
		if q == queue {
			return
		}
	}
	p.queues = append(p.queues, queue)
}

// Start launches numWorkers goroutines. They stop when ctx is cancelled;
// Wait blocks until they have.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	log.Info().Strs("queues", p.queues).Msgf("worker pool started with %d workers", numWorkers)
}

func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop: waits up to 5s then loops to check ctx
			result, err := p.rdb.BRPop(ctx, 5*time.Second, p.queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			p.processJob(ctx, result[0], result[1])
		}
	}
}

func (p *Pool) processJob(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		// Park the raw text as a JSON string; it is not valid JSON itself.
		payload, _ := json.Marshal(raw)
		SendToDLQ(ctx, p.rdb, queue, "desconocido", payload, "payload ilegible: "+err.Error(), 0)
		return
	}
	h, ok := p.handlers[job.Type]
	if !ok {
		SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload, "tipo de job sin handler", job.Attempts)
		return
	}

	err := h(ctx, job.Payload)
	if err == nil {
		log.Info().Str("type", job.Type).Str("queue", queue).Int("attempt", job.Attempts+1).Msg("job processed")
		return
	}

	job.Attempts++
	if job.Attempts >= p.maxAttempts {
		SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload, err.Error(), job.Attempts)
		return
	}
	log.Warn().Err(err).Str("type", job.Type).Int("attempts", job.Attempts).Msg("job failed, requeued")
	if perr := push(ctx, p.rdb, queue, job); perr != nil {
		log.Error().Err(perr).Str("queue", queue).Msg("requeue failed")
	}
}
