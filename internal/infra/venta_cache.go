package infra

import (
	"context"
	"encoding/json"
	"time"

	"almacenpos/internal/dto"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const ventaCachePrefix = "idem:venta:"

// VentaCache keeps the response of each idempotent sale for a while so a
// retried request is answered without touching the database. It is a fast
// path only: the stored idempotency key stays the authority, so every Redis
// failure degrades to a cache miss.
type VentaCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewVentaCache(rdb redis.Cmdable, ttl time.Duration) *VentaCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &VentaCache{rdb: rdb, ttl: ttl}
}

func (c *VentaCache) Get(ctx context.Context, key string) (*dto.VentaResponse, bool) {
	raw, err := c.rdb.Get(ctx, ventaCachePrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("idempotency_key", key).Msg("venta cache: get falló")
		}
		return nil, false
	}
	var v dto.VentaResponse
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Warn().Err(err).Str("idempotency_key", key).Msg("venta cache: entrada corrupta")
		return nil, false
	}
	return &v, true
}

func (c *VentaCache) Set(ctx context.Context, key string, v *dto.VentaResponse) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, ventaCachePrefix+key, raw, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("idempotency_key", key).Msg("venta cache: set falló")
	}
}
