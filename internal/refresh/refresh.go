// Package refresh provides a TTL-scoped, single-flight value cache.
//
// Both upstream configuration objects (the signed client config and the
// platform session) are expensive to construct and valid for hours, so
// they sit behind a Cache: within the refresh interval readers get the
// cached value with no I/O, and concurrent readers during a refresh all
// await the same in-flight fetch rather than starting their own.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Cache holds one value of type T and refreshes it at most once per
// interval. The zero value is not usable; use New.
type Cache[T any] struct {
	name    string
	ttl     time.Duration
	fetch   func(context.Context) (T, error)
	logger  zerolog.Logger
	nowFunc func() time.Time

	mu          sync.Mutex
	value       T
	hasValue    bool
	lastUpdated time.Time
	inFlight    *flight[T]
}

// flight is the shared result slot for one in-flight fetch. Waiters block
// on done and then read result/err; both are written exactly once, before
// done is closed.
type flight[T any] struct {
	done   chan struct{}
	result T
	err    error
}

// New creates a cache named for logging, refreshing via fetch at most once
// per ttl.
func New[T any](name string, ttl time.Duration, fetch func(context.Context) (T, error), logger zerolog.Logger) *Cache[T] {
	return &Cache[T]{
		name:    name,
		ttl:     ttl,
		fetch:   fetch,
		logger:  logger.With().Str("cache", name).Logger(),
		nowFunc: time.Now,
	}
}

// Get returns the cached value, refreshing it first when missing or older
// than the refresh interval. A failed refresh leaves any stale value
// untouched; the next call retries.
func (c *Cache[T]) Get(ctx context.Context) (T, error) {
	c.mu.Lock()

	if fl := c.inFlight; fl != nil {
		c.mu.Unlock()
		c.logger.Debug().Msg("awaiting in-flight refresh")
		return await(ctx, fl)
	}

	if c.hasValue && c.nowFunc().Before(c.lastUpdated.Add(c.ttl)) {
		value := c.value
		c.mu.Unlock()
		return value, nil
	}

	if !c.hasValue {
		c.logger.Info().Msg("initializing")
	} else {
		c.logger.Info().
			Time("last_updated", c.lastUpdated).
			Time("next_update", c.lastUpdated.Add(c.ttl)).
			Msg("refreshing")
	}

	fl := &flight[T]{done: make(chan struct{})}
	c.inFlight = fl
	c.mu.Unlock()

	value, err := c.refresh(ctx, fl)
	if err != nil {
		var zero T
		return zero, err
	}
	return value, nil
}

// Last returns the current cached value without triggering a refresh.
func (c *Cache[T]) Last() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.hasValue
}

func (c *Cache[T]) refresh(ctx context.Context, fl *flight[T]) (T, error) {
	value, err := c.fetch(ctx)

	c.mu.Lock()
	// Clear the in-flight marker unconditionally so a failed refresh
	// cannot wedge the cache in a pending state.
	c.inFlight = nil
	if err == nil {
		c.value = value
		c.hasValue = true
		c.lastUpdated = c.nowFunc()
	}
	c.mu.Unlock()

	fl.result, fl.err = value, err
	close(fl.done)

	return value, err
}

// await blocks on a shared in-flight fetch. The fetch itself is not
// cancelled when this waiter's context expires; it runs to completion and
// still populates the cache for later callers.
func await[T any](ctx context.Context, fl *flight[T]) (T, error) {
	select {
	case <-fl.done:
		return fl.result, fl.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
