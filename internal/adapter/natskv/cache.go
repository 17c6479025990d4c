// Package natskv implements the cache port on a NATS JetStream KeyValue
// bucket, shared by every process connected to the same server.
package natskv

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// headerLen is the size of the expiry prefix stored before each value.
const headerLen = 8

// Cache wraps a KeyValue bucket. The bucket TTL only bounds storage; each
// entry carries its own deadline so per-key TTLs are honoured exactly.
type Cache struct {
	kv  jetstream.KeyValue
	now func() time.Time
}

// New creates a cache over kv.
func New(kv jetstream.KeyValue) *Cache {
	return &Cache{kv: kv, now: time.Now}
}

// Open creates or updates bucket with a storage TTL of maxTTL and returns a
// cache over it.
func Open(ctx context.Context, js jetstream.JetStream, bucket string, maxTTL time.Duration) (*Cache, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "clawkanban shared cost cache",
		TTL:         maxTTL,
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("nats kv bucket %s: %w", bucket, err)
	}
	return New(kv), nil
}

// Get returns the value stored under key if it has not expired.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	entry, err := c.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("nats kv get %s: %w", key, err)
	}
	raw := entry.Value()
	if len(raw) < headerLen {
		return nil, false, nil
	}
	deadline := time.Unix(0, int64(binary.BigEndian.Uint64(raw[:headerLen]))) //nolint:gosec // G115: written by Set
	if !c.now().Before(deadline) {
		return nil, false, nil
	}
	return raw[headerLen:], true, nil
}

// Set stores value under key until ttl elapses.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	buf := make([]byte, headerLen+len(value))
	binary.BigEndian.PutUint64(buf, uint64(c.now().Add(ttl).UnixNano())) //nolint:gosec // G115: positive timestamp
	copy(buf[headerLen:], value)
	if _, err := c.kv.Put(ctx, key, buf); err != nil {
		return fmt.Errorf("nats kv put %s: %w", key, err)
	}
	return nil
}

// Delete removes key. A missing key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(ctx, key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("nats kv delete %s: %w", key, err)
	}
	return nil
}
