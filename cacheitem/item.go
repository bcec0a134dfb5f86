// Package cacheitem holds the in-memory representation of a cached entry and
// the per-call options that govern its lifecycle: physical and logical
// expiry, early refresh, grace, and factory timeouts.
package cacheitem

import "time"

// Item is one record as held in either cache tier. It is immutable after
// construction; [Item.WithFallbackExtension] returns a new Item rather than mutating
// the receiver.
type Item struct {
	Key               string
	Value             []byte
	CreatedAt         time.Time
	LogicalExpiresAt  time.Time
	PhysicalExpiresAt time.Time
	EarlyExpirationAt *time.Time
}

// New builds an Item from a value and the options that applied to the write
// that produced it. now is injected so that tests can control timestamps.
func New(key string, value []byte, opts Options, now time.Time) Item {
	logical := now.Add(opts.TTL)
	physical := logical
	if opts.Grace.Enabled {
		physical = logical.Add(opts.Grace.Duration)
	}
	it := Item{
		Key:               key,
		Value:             value,
		CreatedAt:         now,
		LogicalExpiresAt:  logical,
		PhysicalExpiresAt: physical,
	}
	if opts.EarlyExpirationPercentage > 0 && opts.EarlyExpirationPercentage < 1 {
		early := now.Add(time.Duration(float64(opts.TTL) * opts.EarlyExpirationPercentage))
		it.EarlyExpirationAt = &early
	}
	return it
}

// IsLogicallyExpired reports whether the item is stale for correctness
// purposes as of now.
func (i Item) IsLogicallyExpired(now time.Time) bool {
	return !now.Before(i.LogicalExpiresAt)
}

// IsEarlyExpired reports whether the item has entered its background-refresh
// window without yet being logically expired.
func (i Item) IsEarlyExpired(now time.Time) bool {
	if i.EarlyExpirationAt == nil {
		return false
	}
	return !now.Before(*i.EarlyExpirationAt) && !i.IsLogicallyExpired(now)
}

// WithFallbackExtension returns a copy of i with its logical (and physical)
// expiry pushed out by d, as applied by Stage F of the get-or-compute
// protocol when a stale value is served under grace.
func (i Item) WithFallbackExtension(d time.Duration, now time.Time) Item {
	extended := i
	extended.LogicalExpiresAt = now.Add(d)
	if extended.PhysicalExpiresAt.Before(extended.LogicalExpiresAt) {
		extended.PhysicalExpiresAt = extended.LogicalExpiresAt
	}
	return extended
}

// RemainingTTL returns how long until the item's physical expiry, as of now.
// It never returns a negative duration.
func (i Item) RemainingTTL(now time.Time) time.Duration {
	if d := i.PhysicalExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
