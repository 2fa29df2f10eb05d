// Package proxymgr rotates outbound proxies for upstream requests and
// tracks their failures with exponential backoff.
package proxymgr

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"vidgate/internal/config"
)

const (
	maxBackoff         = 1 * time.Hour
	healthCheckTimeout = 10 * time.Second
)

type proxyInfo struct {
	url          *url.URL
	failures     int
	backoffUntil time.Time
}

// Manager selects proxies for outbound requests. A nil Manager is
// valid and means direct connections.
type Manager struct {
	log *slog.Logger
	cfg *config.Config

	mu      sync.Mutex
	proxies []*proxyInfo
}

// New parses the configured proxy list. Returns nil when no proxies
// are configured; invalid entries are skipped with a warning.
func New(log *slog.Logger, cfg *config.Config) *Manager {
	if cfg.Proxy.List == "" {
		return nil
	}

	m := &Manager{
		log: log.With(slog.String("package", "proxymgr")),
		cfg: cfg,
	}

	for raw := range strings.SplitSeq(cfg.Proxy.List, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			m.log.Warn("invalid proxy url skipped", slog.String("proxy", raw))

			continue
		}

		m.proxies = append(m.proxies, &proxyInfo{url: u})
	}

	if len(m.proxies) == 0 {
		return nil
	}

	return m
}

// ProxyFunc adapts the manager to http.Transport.Proxy. A nil manager
// yields nil, meaning direct connections.
func (m *Manager) ProxyFunc() func(*http.Request) (*url.URL, error) {
	if m == nil {
		return nil
	}

	return func(*http.Request) (*url.URL, error) {
		return m.pick(), nil
	}
}

// MarkFailed records a failure for the proxy serving rawURL and puts it
// into backoff once the failure budget is spent.
func (m *Manager) MarkFailed(proxyURL *url.URL) {
	if m == nil || proxyURL == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.proxies {
		if p.url.Host != proxyURL.Host {
			continue
		}

		p.failures++
		if p.failures >= m.cfg.Proxy.MaxFailures {
			backoff := min(m.cfg.Proxy.FailureBackoff*time.Duration(1<<(p.failures-m.cfg.Proxy.MaxFailures)), maxBackoff)
			p.backoffUntil = time.Now().Add(backoff)

			m.log.Warn("proxy placed in backoff",
				slog.String("proxy", p.url.Host),
				slog.Int("failures", p.failures),
				slog.Duration("backoff", backoff))
		}

		return
	}
}

// MarkSuccess resets the failure budget for the proxy serving rawURL.
func (m *Manager) MarkSuccess(proxyURL *url.URL) {
	if m == nil || proxyURL == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.proxies {
		if p.url.Host == proxyURL.Host {
			p.failures = 0
			p.backoffUntil = time.Time{}

			return
		}
	}
}

// HealthCheck dials the proxy and records the outcome, so a dead exit
// leaves rotation between requests and a recovered one returns.
func (m *Manager) HealthCheck(ctx context.Context, proxyURL *url.URL) error {
	dialer := &net.Dialer{Timeout: healthCheckTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", proxyURL.Host)
	if err != nil {
		m.MarkFailed(proxyURL)

		return fmt.Errorf("dial proxy: %w", err)
	}
	conn.Close()

	m.MarkSuccess(proxyURL)

	return nil
}

// StartHealthChecker probes every configured proxy on an interval until
// ctx is cancelled. A nil manager or a zero interval is a no-op.
func (m *Manager) StartHealthChecker(ctx context.Context) {
	if m == nil || m.cfg.Proxy.HealthCheckInterval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(m.cfg.Proxy.HealthCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, u := range m.snapshot() {
					// Outcomes are recorded by the check itself.
					_ = m.HealthCheck(ctx, u)
				}
			}
		}
	}()

	m.log.Info("proxy health checker started",
		slog.Duration("interval", m.cfg.Proxy.HealthCheckInterval),
		slog.Int("proxy_count", len(m.proxies)))
}

func (m *Manager) snapshot() []*url.URL {
	m.mu.Lock()
	defer m.mu.Unlock()

	urls := make([]*url.URL, 0, len(m.proxies))
	for _, p := range m.proxies {
		urls = append(urls, p.url)
	}

	return urls
}

// Available returns the number of proxies currently in rotation.
func (m *Manager) Available() int {
	if m == nil {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.available())
}

func (m *Manager) pick() *url.URL {
	m.mu.Lock()
	defer m.mu.Unlock()

	avail := m.available()
	if len(avail) == 0 {
		// All proxies in backoff: go direct rather than fail requests.
		return nil
	}

	return avail[rand.IntN(len(avail))].url
}

func (m *Manager) available() []*proxyInfo {
	now := time.Now()

	avail := make([]*proxyInfo, 0, len(m.proxies))
	for _, p := range m.proxies {
		if now.After(p.backoffUntil) {
			avail = append(avail, p)
		}
	}

	return avail
}
