// Package cache implements the result cache: a time-bounded mapping
// from resource key to the path of a previously produced artifact.
//
// A hit whose backing file no longer exists is treated as a miss and
// the stale entry is dropped, so the cache never returns a dangling
// reference. Backend failures degrade to "always miss" and never fail
// a download.
package cache

import (
	"context"
	"os"
	"time"
)

// Cache maps resource keys to artifact locations.
type Cache interface {
	// Get returns the cached path for key, or ok=false on a miss.
	Get(ctx context.Context, key string) (path string, ok bool)

	// Put stores key -> path with the given time-to-live.
	Put(ctx context.Context, key, path string, ttl time.Duration)

	// Delete removes key.
	Delete(ctx context.Context, key string)
}

// existsFn reports whether a cached artifact is still on disk. Tests
// and callers with their own storage collaborator can substitute it.
type existsFn func(path string) bool

func defaultExists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}
