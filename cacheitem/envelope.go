package cacheitem

import (
	"encoding/json"
	"time"
)

// envelope is the wire representation of an Item as stored in a
// CacheDriver. Value holds the bytes exactly as the factory or caller
// produced them; the envelope itself is always JSON so that expiry metadata
// round-trips exactly regardless of how those bytes were encoded.
type envelope struct {
	Value             []byte     `json:"value"`
	CreatedAt         time.Time  `json:"created_at"`
	LogicalExpiresAt  time.Time  `json:"logical_expires_at"`
	PhysicalExpiresAt time.Time  `json:"physical_expires_at"`
	EarlyExpirationAt *time.Time `json:"early_expiration_at,omitempty"`
}

// Encode serializes i for storage in a CacheDriver.
func (i Item) Encode() ([]byte, error) {
	return json.Marshal(envelope{
		Value:             i.Value,
		CreatedAt:         i.CreatedAt,
		LogicalExpiresAt:  i.LogicalExpiresAt,
		PhysicalExpiresAt: i.PhysicalExpiresAt,
		EarlyExpirationAt: i.EarlyExpirationAt,
	})
}

// Decode reconstructs an Item previously produced by Encode. A
// deserialization error here is treated by CacheStack as a cache miss
// (logged), per spec.md §4.5.
func Decode(key string, data []byte) (Item, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Item{}, err
	}
	return Item{
		Key:               key,
		Value:             env.Value,
		CreatedAt:         env.CreatedAt,
		LogicalExpiresAt:  env.LogicalExpiresAt,
		PhysicalExpiresAt: env.PhysicalExpiresAt,
		EarlyExpirationAt: env.EarlyExpirationAt,
	}, nil
}
