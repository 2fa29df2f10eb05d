package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vidgate/internal/observability"
)

type memoryEntry struct {
	path      string
	expiresAt time.Time
}

// Memory is the in-process cache backend with per-entry TTL and a
// background sweep in the manner of the job registry cleanup.
type Memory struct {
	log     *slog.Logger
	metrics *observability.Metrics
	exists  existsFn

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// MemoryOption tweaks a Memory cache.
type MemoryOption func(*Memory)

// WithExists substitutes the file-existence check.
func WithExists(fn func(path string) bool) MemoryOption {
	return func(m *Memory) {
		m.exists = fn
	}
}

// NewMemory creates an in-memory result cache and starts its sweep loop.
func NewMemory(ctx context.Context, log *slog.Logger, metrics *observability.Metrics,
	sweepInterval time.Duration, opts ...MemoryOption) *Memory {
	m := &Memory{
		log:     log.With(slog.String("package", "cache"), slog.String("backend", "memory")),
		metrics: metrics,
		exists:  defaultExists,
		entries: make(map[string]memoryEntry),
	}

	for _, opt := range opts {
		opt(m)
	}

	go m.sweep(ctx, sweepInterval)

	return m
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		m.metrics.RecordCacheMiss()

		return "", false
	}

	if !m.exists(e.path) {
		// Self-healing: the artifact was removed behind our back.
		m.Delete(ctx, key)
		m.metrics.RecordCacheMiss()
		m.log.DebugContext(ctx, "stale cache entry dropped", slog.String("key", key), slog.String("path", e.path))

		return "", false
	}

	m.metrics.RecordCacheHit()

	return e.path, true
}

func (m *Memory) Put(_ context.Context, key, path string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{path: path, expiresAt: time.Now().Add(ttl)}
}

func (m *Memory) Delete(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
}

func (m *Memory) sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()

			m.mu.Lock()
			for key, e := range m.entries {
				if now.After(e.expiresAt) {
					delete(m.entries, key)
				}
			}
			m.mu.Unlock()
		case <-ctx.Done():
			m.log.Info("cache sweep stopped")

			return
		}
	}
}
