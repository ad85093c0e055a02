// Package threadcache remembers, per conversation thread, which data files
// and scope have already been loaded, enabling delta-only fetching on
// follow-up queries.
package threadcache

import (
	"context"
	"time"
)

// KV is the key-value store boundary backing the thread cache. Keys are
// namespaced by thread ID (see keys.go). Implementations must make Update
// atomic per key: the merge of new file IDs is a read-modify-write, and two
// queries on the same conversation can be in flight simultaneously.
//
// Get returns (nil, nil) for a missing key; callers treat a missing key and
// an empty one identically (cold cache).
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Update atomically replaces the value at key with fn(old). fn receives
	// nil when the key is absent; returning an error aborts the update.
	Update(ctx context.Context, key string, ttl time.Duration, fn func(old []byte) ([]byte, error)) error

	Close() error
}
