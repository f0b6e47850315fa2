package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"almacenpos/internal/apperr"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// releaseScript deletes the key only while it still holds our token, so a
// holder whose lease expired cannot free somebody else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Redis is a Locker shared by every API instance pointing at the same Redis.
// Each key is a SET NX PX lease; ttl bounds how long a crashed holder can
// block others.
type Redis struct {
	rdb     redis.Cmdable
	ttl     time.Duration
	timeout time.Duration
	retry   time.Duration
}

// NewRedis builds a Redis locker. ttl must exceed the longest sale transaction.
func NewRedis(rdb redis.Cmdable, ttl, timeout time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Redis{rdb: rdb, ttl: ttl, timeout: timeout, retry: 25 * time.Millisecond}
}

func redisKey(k Key) string {
	return fmt.Sprintf("almacen:%s:lock", k)
}

func (r *Redis) Acquire(ctx context.Context, keys ...Key) (Release, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	token := uuid.NewString()
	ordered := Order(keys)
	held := make([]Key, 0, len(ordered))
	for _, k := range ordered {
		if err := r.take(ctx, k, token); err != nil {
			r.release(held, token)
			return nil, err
		}
		held = append(held, k)
	}

	var once sync.Once
	return func() { once.Do(func() { r.release(held, token) }) }, nil
}

func (r *Redis) take(ctx context.Context, k Key, token string) error {
	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()
	for {
		ok, err := r.rdb.SetNX(ctx, redisKey(k), token, r.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("lock: setnx %s: %w", k, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return apperr.Wrap(apperr.KindResourceConflict, "recurso ocupado: "+string(k), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (r *Redis) release(held []Key, token string) {
	// The caller's ctx may already be done; releasing must still reach Redis.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := len(held) - 1; i >= 0; i-- {
		if err := releaseScript.Run(ctx, r.rdb, []string{redisKey(held[i])}, token).Err(); err != nil {
			log.Warn().Err(err).Str("key", string(held[i])).Msg("lock: release failed, lease will expire")
		}
	}
}
