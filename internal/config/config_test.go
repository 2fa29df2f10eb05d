package config_test

import (
	"path/filepath"
	"testing"
	"time"

	"vidgate/internal/config"
	"vidgate/internal/consts"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := config.New()
	if err != nil {
		t.Fatalf("config new: %v", err)
	}

	if cfg.HTTP.Port != ":8080" {
		t.Errorf("expected default port :8080, got %q", cfg.HTTP.Port)
	}

	if cfg.Job.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Job.Workers)
	}

	if cfg.Job.Timeout != 30*time.Minute {
		t.Errorf("expected 30m job timeout, got %v", cfg.Job.Timeout)
	}

	if cfg.Cache.Backend != consts.CacheBackendMemory {
		t.Errorf("expected memory cache backend, got %q", cfg.Cache.Backend)
	}

	if cfg.Stream.SlotsPerVideo != 2 {
		t.Errorf("expected 2 stream slots, got %d", cfg.Stream.SlotsPerVideo)
	}

	if !filepath.IsAbs(cfg.Dir.Downloads) {
		t.Errorf("expected absolute downloads dir, got %q", cfg.Dir.Downloads)
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("VIDGATE_HTTP_PORT", ":9090")
	t.Setenv("VIDGATE_JOB_WORKERS", "8")
	t.Setenv("VIDGATE_JOB_RETENTION", "2h")
	t.Setenv("VIDGATE_CACHE_BACKEND", "redis")
	t.Setenv("VIDGATE_CACHE_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("VIDGATE_STREAM_SLOTS_PER_VIDEO", "5")
	t.Setenv("VIDGATE_PROXY_LIST", "socks5h://127.0.0.1:1080,http://127.0.0.1:8888")

	cfg, err := config.New()
	if err != nil {
		t.Fatalf("config new: %v", err)
	}

	if cfg.HTTP.Port != ":9090" {
		t.Errorf("expected :9090, got %q", cfg.HTTP.Port)
	}

	if cfg.Job.Workers != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.Job.Workers)
	}

	if cfg.Job.Retention != 2*time.Hour {
		t.Errorf("expected 2h retention, got %v", cfg.Job.Retention)
	}

	if cfg.Cache.Backend != consts.CacheBackendRedis || cfg.Cache.RedisAddr != "redis.internal:6379" {
		t.Errorf("expected redis backend config, got %q %q", cfg.Cache.Backend, cfg.Cache.RedisAddr)
	}

	if cfg.Stream.SlotsPerVideo != 5 {
		t.Errorf("expected 5 stream slots, got %d", cfg.Stream.SlotsPerVideo)
	}

	if cfg.Proxy.List != "socks5h://127.0.0.1:1080,http://127.0.0.1:8888" {
		t.Errorf("unexpected proxy list %q", cfg.Proxy.List)
	}
}

func TestNewInvalidEnv(t *testing.T) {
	t.Setenv("VIDGATE_JOB_TIMEOUT", "not-a-duration")

	if _, err := config.New(); err == nil {
		t.Error("expected error for invalid duration")
	}
}
