// Package redis is a Redis-backed CacheDriver, adapted from the teacher's
// cache/redis.go. It is the canonical L2 tier: best-effort shared state,
// fails soft on read errors (treated as a miss) and fails soft on write
// errors (swallowed, logged by the caller), per spec.md §7.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Keksclan/rawrcache/cachedriver"
)

// Driver wraps a *redis.Client.
type Driver struct {
	rdb    *goredis.Client
	prefix string
}

// New creates a Driver.
func New(addr, password string, db int) *Driver {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Driver{rdb: rdb}
}

func (d *Driver) key(k string) string {
	if d.prefix == "" {
		return k
	}
	return d.prefix + ":" + k
}

// Get retrieves a value by key. Returns (nil, false, nil) on a miss or when
// Redis is unreachable — L2 read failures are treated as a miss, per
// spec.md §7.
func (d *Driver) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := d.rdb.Get(ctx, d.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, nil
	}
	return val, true, nil
}

// Pull retrieves and deletes a value atomically using GETDEL.
func (d *Driver) Pull(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := d.rdb.GetDel(ctx, d.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores val under key with the given TTL. A zero TTL means no
// automatic expiration. Errors are returned to the caller — it is
// CacheStackWriter's job to downgrade an L2 write failure to a logged
// warning (spec.md §4.2), not this driver's.
func (d *Driver) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return d.rdb.Set(ctx, d.key(key), val, ttl).Err()
}

// Has reports whether key exists.
func (d *Driver) Has(ctx context.Context, key string) (bool, error) {
	n, err := d.rdb.Exists(ctx, d.key(key)).Result()
	if err != nil {
		return false, nil
	}
	return n > 0, nil
}

// Delete removes key.
func (d *Driver) Delete(ctx context.Context, key string) error {
	return d.rdb.Del(ctx, d.key(key)).Err()
}

// DeleteMany removes all of keys via UNLINK (non-blocking delete).
func (d *Driver) DeleteMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = d.key(k)
	}
	return d.rdb.Unlink(ctx, prefixed...).Err()
}

// Clear removes every key under this driver's namespace by scanning for
// prefix+":*" and unlinking matches. A driver with no namespace (the root
// view) refuses to clear the whole keyspace, since Redis may be shared with
// unrelated data; use DeleteMany with an explicit key list instead.
func (d *Driver) Clear(ctx context.Context) error {
	if d.prefix == "" {
		return errors.New("redis: Clear requires a namespaced driver (see Namespace); refusing to scan the entire keyspace")
	}
	var cursor uint64
	pattern := d.prefix + ":*"
	for {
		keys, next, err := d.rdb.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := d.rdb.Unlink(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Disconnect closes the underlying Redis client.
func (d *Driver) Disconnect(context.Context) error {
	return d.rdb.Close()
}

// Namespace returns a view of this driver whose keys are transparently
// prefixed with prefix.
func (d *Driver) Namespace(prefix string) cachedriver.Driver {
	p := prefix
	if d.prefix != "" {
		p = d.prefix + ":" + prefix
	}
	return &Driver{rdb: d.rdb, prefix: p}
}

// Ping checks the Redis connection, as in the teacher's L2.
func (d *Driver) Ping(ctx context.Context) error {
	return d.rdb.Ping(ctx).Err()
}
