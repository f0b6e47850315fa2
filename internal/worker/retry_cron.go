package worker

// retry_cron.go
// Background goroutine that periodically moves dead-lettered email jobs back
// onto their queue. Uses the circuit breaker to avoid redriving into a relay
// that is still down.

import (
	"context"
	"time"

	"almacenpos/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	redriveTickInterval = 5 * time.Minute
	redriveBatchSize    = 10
)

type RedriveCronConfig struct {
	RDB      redis.Cmdable
	CB       *infra.CircuitBreaker
	Queues   []string
	Interval time.Duration // default 5m
}

// StartRedriveCron ticks until ctx is cancelled.
func StartRedriveCron(ctx context.Context, cfg RedriveCronConfig) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = redriveTickInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info().Strs("queues", cfg.Queues).Msg("redrive_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("redrive_cron: shutting down")
				return
			case <-ticker.C:
				redriveOnce(ctx, cfg)
			}
		}
	}()
}

func redriveOnce(ctx context.Context, cfg RedriveCronConfig) int {
	if cfg.CB != nil && cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("redrive_cron: circuit breaker is open, skipping tick")
		return 0
	}
	total := 0
	for _, q := range cfg.Queues {
		n, err := Redrive(ctx, cfg.RDB, q, redriveBatchSize)
		if err != nil {
			log.Error().Err(err).Str("queue", q).Msg("redrive_cron: redrive failed")
		}
		if n > 0 {
			log.Info().Str("queue", q).Int("count", n).Msg("redrive_cron: jobs requeued")
		}
		total += n
	}
	return total
}
