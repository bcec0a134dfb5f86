// Package memory is an in-process CacheDriver backed by ristretto, adapted
// from the teacher's cache/l1.go. It is the canonical L1 tier.
package memory

import (
	"bytes"
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/Keksclan/rawrcache/cachedriver"
)

// Driver is an in-process cache backed by ristretto.
type Driver struct {
	rc     *ristretto.Cache[string, []byte]
	prefix string
}

// New creates a Driver. maxCost bounds the total cost the cache can hold;
// each entry has a cost of 1, matching the teacher's L1.
func New(maxCost int64) (*Driver, error) {
	rc, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCost * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Driver{rc: rc}, nil
}

func (d *Driver) key(k string) string {
	if d.prefix == "" {
		return k
	}
	return d.prefix + ":" + k
}

// Get retrieves a value by key.
func (d *Driver) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := d.rc.Get(d.key(key))
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

// Pull retrieves and then removes a value by key. The read and the delete
// are two separate ristretto operations, so Pull is not atomic with respect
// to concurrent callers.
func (d *Driver) Pull(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok, err := d.Get(ctx, key)
	if err != nil || !ok {
		return v, ok, err
	}
	d.rc.Del(d.key(key))
	d.rc.Wait()
	return v, true, nil
}

// Set stores val under key with the given TTL. A zero TTL means no
// automatic expiration.
func (d *Driver) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	d.rc.SetWithTTL(d.key(key), bytes.Clone(val), 1, ttl)
	d.rc.Wait()
	return nil
}

// Has reports whether key is present.
func (d *Driver) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := d.Get(ctx, key)
	return ok, err
}

// Delete removes key.
func (d *Driver) Delete(_ context.Context, key string) error {
	d.rc.Del(d.key(key))
	return nil
}

// DeleteMany removes every key in keys.
func (d *Driver) DeleteMany(_ context.Context, keys []string) error {
	for _, k := range keys {
		d.rc.Del(d.key(k))
	}
	return nil
}

// Clear removes every entry ristretto holds, across all namespaces. Since
// ristretto has no prefix-scan, a namespaced view cannot clear only its own
// keys; callers that need namespace-scoped clearing should prefer the Redis
// driver for L2 and treat L1 as a pure cache (clear is rare and acceptable
// to be global here).
func (d *Driver) Clear(_ context.Context) error {
	d.rc.Clear()
	return nil
}

// Disconnect releases ristretto's background goroutines.
func (d *Driver) Disconnect(_ context.Context) error {
	d.rc.Close()
	return nil
}

// Namespace returns a view of this driver whose keys are transparently
// prefixed with prefix.
func (d *Driver) Namespace(prefix string) cachedriver.Driver {
	p := prefix
	if d.prefix != "" {
		p = d.prefix + ":" + prefix
	}
	return &Driver{rc: d.rc, prefix: p}
}
