package blobcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSetRemove(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(time.Minute)

	_, ok := store.Get(ctx, "missing")
	assert.False(t, ok)

	store.Set(ctx, "k", []byte{0x01, 0x02})
	got, ok := store.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte{0x01, 0x02}, got)

	store.Remove(ctx, "k")
	_, ok = store.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryTTLExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(10 * time.Millisecond)

	store.Set(ctx, "k", []byte("v"))
	time.Sleep(25 * time.Millisecond)
	_, ok := store.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCopiesValueOnSet(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(time.Minute)

	src := []byte("original")
	store.Set(ctx, "k", src)
	src[0] = 'X'

	got, ok := store.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("original"), got)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedis(context.Background(), "redis://"+mr.Addr(), time.Hour, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return mr, store
}

func TestRedisGetSetRemove(t *testing.T) {
	ctx := context.Background()
	_, store := newTestRedis(t)

	_, ok := store.Get(ctx, "missing")
	assert.False(t, ok)

	store.Set(ctx, "player:abc", []byte("js body"))
	got, ok := store.Get(ctx, "player:abc")
	require.True(t, ok)
	assert.Equal(t, []byte("js body"), got)

	store.Remove(ctx, "player:abc")
	_, ok = store.Get(ctx, "player:abc")
	assert.False(t, ok)
}

func TestRedisAppliesTTLOnWrite(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestRedis(t)

	store.Set(ctx, "k", []byte("v"))
	ttl := mr.TTL("k")
	assert.Equal(t, time.Hour, ttl)

	mr.FastForward(2 * time.Hour)
	_, ok := store.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisUnavailableDegradesToMiss(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestRedis(t)

	mr.Close()

	_, ok := store.Get(ctx, "k")
	assert.False(t, ok)
	store.Set(ctx, "k", []byte("v")) // must not panic or error
	store.Remove(ctx, "k")
}

func TestNewRedisRejectsBadURL(t *testing.T) {
	_, err := NewRedis(context.Background(), "not-a-url", time.Hour, zerolog.Nop())
	require.Error(t, err)
}
