// Package tiered implements a two-level (L1 + L2) cache adapter.
package tiered

import (
	"context"
	"log/slog"
	"time"

	"github.com/Strob0t/clawkanban/internal/port/cache"
	"github.com/Strob0t/clawkanban/internal/resilience"
)

// Cache combines an in-process L1 with a shared remote L2.
// Get checks L1 first, then L2, backfilling L1 on an L2 hit. Set and Delete
// write both levels. L2 is optional to callers: its failures are logged and
// treated as misses, and a breaker stops calling it while it is down.
type Cache struct {
	l1       cache.Cache
	l2       cache.Cache
	l1Expire time.Duration
	breaker  *resilience.Breaker
}

// New creates a tiered cache. l1Expire bounds how long an L2 hit lives in
// L1, so a backfilled entry may outlive its L2 deadline by at most l1Expire.
func New(l1, l2 cache.Cache, l1Expire time.Duration, breaker *resilience.Breaker) *Cache {
	if breaker == nil {
		breaker = resilience.NewBreaker(3, 30*time.Second)
	}
	return &Cache{l1: l1, l2: l2, l1Expire: l1Expire, breaker: breaker}
}

// Get checks L1, then L2.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	val, found, err := c.l1.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		return val, true, nil
	}

	err = c.breaker.Execute(func() error {
		var l2Err error
		val, found, l2Err = c.l2.Get(ctx, key)
		return l2Err
	})
	if err != nil {
		slog.Debug("l2 cache get skipped", "key", key, "error", err)
		return nil, false, nil
	}
	if found {
		_ = c.l1.Set(ctx, key, val, c.l1Expire)
		return val, true, nil
	}
	return nil, false, nil
}

// Set writes L1, then L2.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l1.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	if err := c.breaker.Execute(func() error { return c.l2.Set(ctx, key, value, ttl) }); err != nil {
		slog.Debug("l2 cache set skipped", "key", key, "error", err)
	}
	return nil
}

// Delete removes key from both levels.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.l1.Delete(ctx, key); err != nil {
		return err
	}
	if err := c.breaker.Execute(func() error { return c.l2.Delete(ctx, key) }); err != nil {
		slog.Debug("l2 cache delete skipped", "key", key, "error", err)
	}
	return nil
}
