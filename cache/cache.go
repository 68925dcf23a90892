// Package cache stores validation verdicts keyed by address for a bounded
// time. Two stores are provided: an in-process map and Redis.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/optimode/mxverify/types"
)

// DefaultTTL is how long a verdict stays cached.
const DefaultTTL = time.Hour

// Store is a TTL-bounded address → verdict store. Implementations must be
// safe for concurrent use. Errors mean the store itself is unusable; a
// missing or expired key is reported as found == false.
type Store interface {
	Get(ctx context.Context, key string) (result types.ValidationResult, found bool, err error)
	Set(ctx context.Context, key string, result types.ValidationResult, ttl time.Duration) error
}

// Key returns the cache key for addr. Keys are the exact address unless
// foldCase is set.
func Key(addr string, foldCase bool) string {
	if foldCase {
		return strings.ToLower(addr)
	}
	return addr
}
