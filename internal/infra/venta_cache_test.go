package infra

import (
	"context"
	"testing"
	"time"

	"almacenpos/internal/dto"
	"almacenpos/internal/money"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVentaCache_RoundTripAndExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewVentaCache(rdb, time.Minute)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "k1")
	assert.False(t, ok)

	cache.Set(ctx, "k1", &dto.VentaResponse{ID: "v1", NumeroTicket: 7, Total: money.New(1500)})
	got, ok := cache.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, int64(7), got.NumeroTicket)
	assert.Equal(t, money.New(1500), got.Total)

	mr.FastForward(2 * time.Minute)
	_, ok = cache.Get(ctx, "k1")
	assert.False(t, ok)
}

func TestVentaCache_RedisDownIsAMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewVentaCache(rdb, time.Minute)
	mr.Close()

	cache.Set(context.Background(), "k", &dto.VentaResponse{ID: "v"})
	_, ok := cache.Get(context.Background(), "k")
	assert.False(t, ok)
}
