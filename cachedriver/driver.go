// Package cachedriver defines the contract an L1 or L2 cache tier must
// satisfy. Concrete drivers (in-process, Redis, SQL, DynamoDB, ...) live
// outside this package; cachestack and cachecore depend only on this
// interface.
package cachedriver

import (
	"context"
	"time"
)

// Driver is the L1/L2 contract. Every operation may complete synchronously
// or block on network I/O; callers always pass a context so both cases are
// handled uniformly.
type Driver interface {
	// Get retrieves a value by key. ok is false on a miss.
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)

	// Pull retrieves a value by key and deletes it. Whether the two steps
	// are atomic depends on the driver: the Redis driver uses GETDEL, the
	// in-process driver reads and deletes in two separate steps.
	Pull(ctx context.Context, key string) (val []byte, ok bool, err error)

	// Set stores val under key. A zero ttl means no automatic expiration.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error

	// Has reports whether key is present (and unexpired).
	Has(ctx context.Context, key string) (bool, error)

	// Delete removes key. It does not error when key is absent.
	Delete(ctx context.Context, key string) error

	// DeleteMany removes all of keys in one call where the backing store
	// supports it.
	DeleteMany(ctx context.Context, keys []string) error

	// Clear removes every key owned by this driver (its namespace, if any).
	Clear(ctx context.Context) error

	// Disconnect releases any underlying connection/resources. After
	// Disconnect the driver must not be used again.
	Disconnect(ctx context.Context) error

	// Namespace returns a view of this driver whose keys are transparently
	// prefixed with prefix + ":". Operations on the view never see or
	// affect keys outside the prefix.
	Namespace(prefix string) Driver
}
