// Package cache holds the ephemeral one-time-code cache. It is strictly a
// latency and duplicate-suppression layer over the durable store: entries may
// vanish at any time (cold start, eviction, Redis flush) and nothing may
// treat a cache hit as authoritative.
package cache

import (
	"context"
	"time"
)

// Entry is a cached one-time code together with its expiry, so issuance can
// keep the durable record's expiry aligned when reusing a code.
type Entry struct {
	Code      string
	ExpiresAt time.Time
}

// Codes is the injected cache abstraction. Keys are "<user_id>:<method>".
// Implementations must evict expired entries on their own (native TTL).
type Codes interface {
	// Put stores the entry until its expiry.
	Put(ctx context.Context, key string, e Entry)
	// Peek returns the entry without consuming it.
	Peek(ctx context.Context, key string) (Entry, bool)
	// Take atomically removes and returns the entry, so two concurrent
	// callers cannot both observe the same cached code.
	Take(ctx context.Context, key string) (Entry, bool)
	// Remove drops the entry if present.
	Remove(ctx context.Context, key string)
}

// Key builds the cache key for a (user, method) pair.
func Key(userID, method string) string {
	return userID + ":" + method
}
