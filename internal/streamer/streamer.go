// Package streamer relays upstream media bytes to callers with
// bounded per-video concurrency, retry on transient failures and
// structured error classification.
package streamer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"vidgate/internal/config"
	"vidgate/internal/entity"
	"vidgate/internal/errs"
	"vidgate/internal/extractor"
	"vidgate/internal/observability"
	"vidgate/internal/platform"
	"vidgate/internal/proxymgr"
	"vidgate/pkg/calc"
	"vidgate/pkg/gen"
)

const maxRetryDelay = 30 * time.Second

// Request describes one proxied stream. Zero-valued tunables fall back
// to the configured defaults.
type Request struct {
	Platform string
	VideoID  string
	Quality  string

	MaxRetries int
	ChunkSize  int
	Timeout    time.Duration

	// OnResolved, when set, is called once with the resolved media info
	// before the first body byte is written. HTTP callers use it to set
	// response headers while the status line is still unsent.
	OnResolved func(info *entity.MediaInfo)
}

// Proxy streams bytes from resolved direct media URLs to callers.
type Proxy struct {
	log      *slog.Logger
	cfg      *config.Config
	metrics  *observability.Metrics
	extract  extractor.Client
	adapters []platform.Adapter
	client   *http.Client

	mu    sync.Mutex
	slots map[string]*slotEntry
}

// slotEntry is a reference-counted per-video semaphore; entries are
// removed once no stream references the video anymore.
type slotEntry struct {
	sem  *semaphore.Weighted
	refs int
}

// New creates a stream proxy. proxyMgr may be nil for direct
// connections.
func New(log *slog.Logger, cfg *config.Config, extract extractor.Client,
	adapters []platform.Adapter, proxyMgr *proxymgr.Manager, metrics *observability.Metrics) *Proxy {
	transport := &http.Transport{
		Proxy: proxyMgr.ProxyFunc(),
		DialContext: (&net.Dialer{
			Timeout: cfg.Stream.ConnectTimeout,
		}).DialContext,
		ResponseHeaderTimeout: cfg.Stream.ReadTimeout,
		// Compression would make content-length mismatches ambiguous.
		DisableCompression: true,
	}

	return &Proxy{
		log:      log.With(slog.String("package", "streamer")),
		cfg:      cfg,
		metrics:  metrics,
		extract:  extract,
		adapters: adapters,
		client:   &http.Client{Transport: transport},
		slots:    make(map[string]*slotEntry),
	}
}

// Stream resolves the video and relays its bytes to w. On a retryable
// mid-stream failure it re-requests upstream after a progressive
// backoff, skipping bytes the caller already received, so the caller
// sees a gapless sequence. The returned session reports bytes relayed
// and attempts used, also on error.
func (p *Proxy) Stream(ctx context.Context, req Request, w io.Writer) (*entity.StreamSession, error) {
	req = p.withDefaults(req)

	session := &entity.StreamSession{
		Platform:  req.Platform,
		VideoID:   req.VideoID,
		Quality:   req.Quality,
		StartedAt: time.Now(),
	}

	slotKey := gen.Key(req.Platform, req.VideoID)

	slot, err := p.acquireSlot(slotKey)
	if err != nil {
		p.metrics.RecordStreamRejected()

		return session, err
	}
	defer p.releaseSlot(slotKey, slot)

	p.metrics.StreamStarted()
	defer p.metrics.StreamEnded()

	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	log := p.log.With("session", session)

	adapter := platform.ByName(p.adapters, req.Platform)

	info, err := p.extract.Resolve(ctx, adapter.WatchURL(req.VideoID), adapter.FormatSelector(req.Quality), "")
	if err != nil {
		kind := adapter.ClassifyError(err)
		log.ErrorContext(ctx, "resolve failed", slog.String("kind", string(kind)), slog.Any("error", err))

		return session, kindError(kind, err)
	}

	if req.OnResolved != nil {
		req.OnResolved(info)
	}

	var lastErr error

	for attempt := 1; attempt <= req.MaxRetries+1; attempt++ {
		session.Attempt = attempt

		if attempt > 1 {
			p.metrics.RecordStreamRetry()

			delay := calc.Backoff(p.cfg.Stream.RetryBaseDelay, attempt-1, maxRetryDelay)
			log.WarnContext(ctx, "retrying relay",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.Any("error", lastErr))

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return session, ctx.Err()
			}
		}

		written, kind, err := p.relay(ctx, info.DirectURL, w, session.BytesStreamed, req.ChunkSize)
		session.BytesStreamed += written
		p.metrics.RecordStreamBytes(written)

		if err == nil {
			log.DebugContext(ctx, "stream finished")

			return session, nil
		}

		if !kind.Retryable() || ctx.Err() != nil {
			log.ErrorContext(ctx, "relay failed", slog.String("kind", string(kind)), slog.Any("error", err))

			return session, kindError(kind, err)
		}

		lastErr = err
	}

	return session, fmt.Errorf("%w after %d attempts: %w", errs.ErrRetriesExhausted, session.Attempt, lastErr)
}

// relay performs one upstream fetch and copies its body to w. skip is
// how many bytes the caller already received; a Range header asks the
// upstream to resume there, and when the upstream ignores it the first
// skip bytes are discarded instead. The relay is a fresh full request
// either way, never a stateful resume.
func (p *Proxy) relay(ctx context.Context, directURL string, w io.Writer, skip int64, chunkSize int) (int64, errs.Kind, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, directURL, nil)
	if err != nil {
		return 0, errs.KindPermanent, fmt.Errorf("build request: %w", err)
	}

	if skip > 0 {
		httpReq.Header.Set("Range", fmt.Sprintf("bytes=%d-", skip))
	} else {
		httpReq.Header.Set("Range", "bytes=0-")
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return 0, errs.KindOf(err), fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	if kind := errs.KindOfStatus(resp.StatusCode); kind != "" {
		return 0, kind, fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	expected := resp.ContentLength

	if skip > 0 && resp.StatusCode == http.StatusOK {
		// Upstream ignored the Range header and restarted from zero.
		if _, err := io.CopyN(io.Discard, resp.Body, skip); err != nil {
			return 0, errs.KindOf(err), fmt.Errorf("discard relayed bytes: %w", err)
		}

		if expected > 0 {
			expected -= skip
		}
	}

	var written int64

	buf := make([]byte, chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return written, errs.KindCancelled, err
		}

		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			wn, werr := w.Write(buf[:n])
			written += int64(wn)

			if werr != nil {
				// The caller went away; retrying cannot help.
				return written, errs.KindCancelled, fmt.Errorf("write to caller: %w", werr)
			}
		}

		if rerr == io.EOF {
			if expected > 0 && written < expected {
				return written, errs.KindTransient,
					fmt.Errorf("%w: got %d of %d bytes", errs.ErrTruncatedBody, written, expected)
			}

			return written, "", nil
		}

		if rerr != nil {
			return written, errs.KindOf(rerr), fmt.Errorf("read upstream body: %w", rerr)
		}
	}
}

func (p *Proxy) withDefaults(req Request) Request {
	if req.MaxRetries == 0 {
		req.MaxRetries = p.cfg.Stream.MaxRetries
	}
	if req.MaxRetries < 0 {
		// Explicit opt-out: a single attempt, no retries.
		req.MaxRetries = 0
	}
	if req.ChunkSize <= 0 {
		req.ChunkSize = p.cfg.Stream.ChunkSize
	}
	if req.Timeout <= 0 {
		req.Timeout = p.cfg.Stream.TotalTimeout
	}
	if req.Quality == "" {
		req.Quality = "best"
	}

	return req
}

// acquireSlot takes one concurrency slot for the video or reports
// saturation immediately so callers can back off.
func (p *Proxy) acquireSlot(key string) (*slotEntry, error) {
	p.mu.Lock()

	e, ok := p.slots[key]
	if !ok {
		e = &slotEntry{sem: semaphore.NewWeighted(p.cfg.Stream.SlotsPerVideo)}
		p.slots[key] = e
	}
	e.refs++

	p.mu.Unlock()

	if !e.sem.TryAcquire(1) {
		p.unref(key)

		return nil, errs.ErrConcurrencyLimit
	}

	return e, nil
}

func (p *Proxy) releaseSlot(key string, e *slotEntry) {
	e.sem.Release(1)
	p.unref(key)
}

func (p *Proxy) unref(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.slots[key]
	if !ok {
		return
	}

	e.refs--
	if e.refs <= 0 {
		delete(p.slots, key)
	}
}

// SlotEntries returns the number of live per-video slot entries.
func (p *Proxy) SlotEntries() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.slots)
}

// kindError attaches the matching sentinel so callers can branch with
// errors.Is without knowing the adapter that classified the failure.
func kindError(kind errs.Kind, err error) error {
	switch kind {
	case errs.KindAuthRequired:
		return fmt.Errorf("%w: %w", errs.ErrAuthRequired, err)
	case errs.KindGeoRestricted:
		return fmt.Errorf("%w: %w", errs.ErrGeoRestricted, err)
	case errs.KindConcurrencyLimit:
		return fmt.Errorf("%w: %w", errs.ErrConcurrencyLimit, err)
	default:
		return err
	}
}
