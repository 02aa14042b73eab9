// Package codecache holds the short-lived binding between an account name
// and the authorization code that proved the user's identity.
package codecache

import (
	"context"
	"time"
)

// DefaultTTL is how long a scanned identity stays valid.
const DefaultTTL = 300 * time.Second

// Cache stores string values with a per-entry TTL. Expired entries read as
// absent. Concurrent writers for the same key: the last one wins.
type Cache interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (value string, ok bool, err error)
}
