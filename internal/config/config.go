// Package config handles application configuration loading and management.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration.
type Config struct {
	HTTP     HTTP
	App      App
	Job      Job
	Cache    Cache
	Stream   Stream
	Platform Platform
	Proxy    Proxy
	Dir      Dir
}

// App holds application-wide configuration.
type App struct {
	LogLevel string `env:"VIDGATE_APP_LOG_LEVEL" envDefault:"info"`
}

// Job holds download-coordination configuration.
type Job struct {
	// Workers bounds how many extractions run at once so the blocking
	// extraction engine cannot starve the rest of the process.
	Workers   int           `env:"VIDGATE_JOB_WORKERS"    envDefault:"4"`
	QueueSize int           `env:"VIDGATE_JOB_QUEUE_SIZE" envDefault:"100"`
	Timeout   time.Duration `env:"VIDGATE_JOB_TIMEOUT"    envDefault:"30m"`

	// Retention is how long job records stay queryable after creation.
	Retention     time.Duration `env:"VIDGATE_JOB_RETENTION"      envDefault:"1h"`
	SweepInterval time.Duration `env:"VIDGATE_JOB_SWEEP_INTERVAL" envDefault:"5m"`

	// MaxRetries bounds transient-error retries during resolve and transfer.
	MaxRetries     int           `env:"VIDGATE_JOB_MAX_RETRIES"      envDefault:"3"`
	RetryBaseDelay time.Duration `env:"VIDGATE_JOB_RETRY_BASE_DELAY" envDefault:"1s"`
}

// Cache holds result-cache configuration.
type Cache struct {
	Backend       string        `env:"VIDGATE_CACHE_BACKEND"        envDefault:"memory"` // memory or redis
	TTL           time.Duration `env:"VIDGATE_CACHE_TTL"            envDefault:"1h"`
	SweepInterval time.Duration `env:"VIDGATE_CACHE_SWEEP_INTERVAL" envDefault:"5m"`
	RedisAddr     string        `env:"VIDGATE_CACHE_REDIS_ADDR"     envDefault:"localhost:6379"`
	RedisPassword string        `env:"VIDGATE_CACHE_REDIS_PASSWORD" envDefault:""`
	RedisDB       int           `env:"VIDGATE_CACHE_REDIS_DB"       envDefault:"0"`
}

// Stream holds streaming-proxy configuration.
type Stream struct {
	// SlotsPerVideo caps simultaneous proxied streams of the same video.
	SlotsPerVideo  int64         `env:"VIDGATE_STREAM_SLOTS_PER_VIDEO"  envDefault:"2"`
	MaxRetries     int           `env:"VIDGATE_STREAM_MAX_RETRIES"      envDefault:"3"`
	RetryBaseDelay time.Duration `env:"VIDGATE_STREAM_RETRY_BASE_DELAY" envDefault:"1s"`
	ChunkSize      int           `env:"VIDGATE_STREAM_CHUNK_SIZE"       envDefault:"65536"`
	ConnectTimeout time.Duration `env:"VIDGATE_STREAM_CONNECT_TIMEOUT"  envDefault:"10s"`
	ReadTimeout    time.Duration `env:"VIDGATE_STREAM_READ_TIMEOUT"     envDefault:"30s"`
	TotalTimeout   time.Duration `env:"VIDGATE_STREAM_TOTAL_TIMEOUT"    envDefault:"30m"`
}

// Platform holds platform-adapter configuration.
type Platform struct {
	// AuthProbeTTL is how long a "credentials required" verdict for a
	// resource is remembered to avoid re-probing doomed extractions.
	AuthProbeTTL  time.Duration `env:"VIDGATE_PLATFORM_AUTH_PROBE_TTL"  envDefault:"10m"`
	AuthProbeSize int           `env:"VIDGATE_PLATFORM_AUTH_PROBE_SIZE" envDefault:"512"`
}

// Proxy holds upstream proxy configuration for outbound requests.
type Proxy struct {
	// List is a comma-separated list of proxy URLs in socks5h or http format.
	List string `env:"VIDGATE_PROXY_LIST" envDefault:""`
	// FailureBackoff is the initial backoff duration for failed proxies.
	FailureBackoff time.Duration `env:"VIDGATE_PROXY_FAILURE_BACKOFF" envDefault:"1m"`
	// MaxFailures is how many failures remove a proxy from rotation.
	MaxFailures int `env:"VIDGATE_PROXY_MAX_FAILURES" envDefault:"3"`
	// HealthCheckInterval is how often proxies are probed. Zero disables
	// the health checker.
	HealthCheckInterval time.Duration `env:"VIDGATE_PROXY_HEALTH_CHECK_INTERVAL" envDefault:"1m"`
}

// Dir holds directory paths for downloaded artifacts.
type Dir struct {
	Downloads string `env:"VIDGATE_DIR_DOWNLOADS" envDefault:"./data/downloads"`
}

// SetAbsPaths converts all directory paths to absolute paths.
func (d *Dir) SetAbsPaths() error {
	var err error
	if d.Downloads, err = filepath.Abs(d.Downloads); err != nil {
		return fmt.Errorf("downloads: %w", err)
	}

	return nil
}

// HTTP holds HTTP server configuration.
type HTTP struct {
	Port            string        `env:"VIDGATE_HTTP_PORT"             envDefault:":8080"`
	HandlerTimeout  time.Duration `env:"VIDGATE_HTTP_HANDLER_TIMEOUT"  envDefault:"20s"`
	ShutdownTimeout time.Duration `env:"VIDGATE_HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// New loads configuration from environment variables.
func New() (*Config, error) {
	cfg := &Config{}

	err := env.Parse(cfg)
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	err = cfg.Dir.SetAbsPaths()
	if err != nil {
		return nil, fmt.Errorf("set absolute paths: %w", err)
	}

	return cfg, nil
}
