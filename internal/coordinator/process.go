package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"
	"time"

	"vidgate/internal/entity"
	"vidgate/internal/errs"
	"vidgate/internal/platform"
	"vidgate/pkg/calc"
	"vidgate/pkg/gen"
)

const maxRetryDelay = 30 * time.Second

// process runs one job end to end: keyed lock, cache lookup, resolve
// with platform-aware fallback, transfer to storage and cache fill.
func (c *Coordinator) process(ctx context.Context, jobID string) {
	job, ok := c.registry.GetByID(ctx, jobID)
	if !ok {
		c.log.WarnContext(ctx, "job vanished before processing", slog.String("job_id", jobID))

		return
	}

	if job.Status.IsTerminal() {
		// Cancelled while still queued.
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, c.cfg.Job.Timeout)
	defer cancel()

	c.registry.RegisterCancelFunc(job.ID, cancel)
	defer c.registry.UnregisterCancelFunc(job.ID)

	stop := c.metrics.JobTimer()
	defer stop()

	log := c.log.With("job", job)
	log.InfoContext(jobCtx, "job started")

	c.registry.MarkRunning(jobCtx, job.ID)

	adapter := platform.Classify(c.adapters, job.URL)

	if adapter.RequiresAuth(jobCtx, job.URL) {
		c.registry.MarkFailed(ctx, job.ID, errs.KindAuthRequired, "credentials required for this resource")
		log.InfoContext(jobCtx, "job rejected by auth probe cache")

		return
	}

	// One extraction+download per resource key at a time; losers of the
	// race wait here and usually complete from cache right after.
	handle, err := c.locks.Acquire(jobCtx, job.ResourceKey)
	if err != nil {
		c.finishWithError(ctx, job, errs.KindCancelled, err)

		return
	}
	defer func() {
		handle.Release()
		c.metrics.SetLockEntries(c.locks.Len())
	}()
	c.metrics.SetLockEntries(c.locks.Len())

	if path, ok := c.cache.Get(jobCtx, job.ResourceKey); ok {
		c.registry.MarkCompleted(ctx, job.ID, path, true)
		log.InfoContext(jobCtx, "job completed from cache", slog.String("path", path))

		return
	}

	info, quality, err := c.resolve(jobCtx, adapter, job)
	if err != nil {
		kind := adapter.ClassifyError(err)
		if kind == errs.KindAuthRequired {
			adapter.NoteAuthRequired(jobCtx, job.URL)
		}

		c.finishWithError(ctx, job, kind, err)

		return
	}

	if quality != job.Quality {
		log.InfoContext(jobCtx, "quality degraded",
			slog.String("requested", job.Quality), slog.String("served", quality))
	}

	path, err := c.download(jobCtx, job, info)
	if err != nil {
		c.finishWithError(ctx, job, transferKind(err), err)

		return
	}

	c.cache.Put(jobCtx, job.ResourceKey, path, c.cfg.Cache.TTL)
	c.registry.MarkCompleted(ctx, job.ID, path, false)

	log.InfoContext(jobCtx, "job completed", slog.String("path", path), "media", info)
}

// resolve runs the extraction engine with platform policy applied:
// bounded transient retries, one geo-bypass reattempt and progressive
// quality degradation on persistent extraction failure.
func (c *Coordinator) resolve(ctx context.Context, adapter platform.Adapter, job entity.Job) (*entity.MediaInfo, string, error) {
	quality := job.Quality

	var (
		transientTries int
		geoRetried     bool
		lastErr        error
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		info, err := c.extract.Resolve(ctx, job.URL, adapter.FormatSelector(quality), job.Format)
		if err == nil {
			return info, quality, nil
		}

		lastErr = err

		switch kind := adapter.ClassifyError(err); kind {
		case errs.KindTransient:
			if transientTries >= c.cfg.Job.MaxRetries {
				return nil, "", fmt.Errorf("%w: %w", errs.ErrRetriesExhausted, lastErr)
			}
			transientTries++

			delay := calc.Backoff(c.cfg.Job.RetryBaseDelay, transientTries, maxRetryDelay)
			c.log.WarnContext(ctx, "resolve retry",
				slog.Int("attempt", transientTries), slog.Duration("delay", delay), slog.Any("error", err))

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, "", ctx.Err()
			}

		case errs.KindGeoRestricted:
			// A second attempt goes out through a different proxy exit
			// when one is configured; beyond that retrying is pointless.
			if geoRetried {
				return nil, "", fmt.Errorf("%w: %w", errs.ErrGeoRestricted, err)
			}
			geoRetried = true
			c.log.WarnContext(ctx, "geo restriction, retrying once", slog.Any("error", err))

		case errs.KindExtraction:
			next, ok := adapter.FallbackQuality(quality)
			if !ok {
				return nil, "", err
			}
			quality = next
			c.log.WarnContext(ctx, "extraction failed, degrading quality",
				slog.String("next_quality", next), slog.Any("error", err))

		default:
			return nil, "", err
		}
	}
}

// download fetches the resolved media and writes it to storage, with
// bounded retries on transient failures. Each attempt writes a fresh
// file; a truncated body discards the attempt.
func (c *Coordinator) download(ctx context.Context, job entity.Job, info *entity.MediaInfo) (string, error) {
	base := job.Filename
	if base == "" {
		base = info.Title
	}

	ext := fileExt(job.Format, info.ContentType)

	var lastErr error

	for attempt := 1; attempt <= c.cfg.Job.MaxRetries+1; attempt++ {
		if attempt > 1 {
			delay := calc.Backoff(c.cfg.Job.RetryBaseDelay, attempt-1, maxRetryDelay)
			c.log.WarnContext(ctx, "transfer retry",
				slog.Int("attempt", attempt), slog.Duration("delay", delay), slog.Any("error", lastErr))

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		path, err := c.attemptDownload(ctx, job, info, base, ext)
		if err == nil {
			return path, nil
		}

		if !transferKind(err).Retryable() || ctx.Err() != nil {
			return "", err
		}

		lastErr = err
	}

	return "", fmt.Errorf("%w: %w", errs.ErrRetriesExhausted, lastErr)
}

func (c *Coordinator) attemptDownload(ctx context.Context, job entity.Job, info *entity.MediaInfo, base, ext string) (string, error) {
	body, length, err := c.transfer(ctx, info.DirectURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	if length <= 0 {
		length = info.ContentLength
	}

	path := gen.UniqueFilename(c.cfg.Dir.Downloads, base, ext)

	pr := &progressReader{
		r:     body,
		total: length,
		report: func(percent int) {
			c.registry.SetProgress(ctx, job.ID, percent)
		},
	}

	n, err := c.storer.WriteStream(ctx, path, pr)
	if err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}

	if length > 0 && n < length {
		if delErr := c.storer.Delete(path); delErr != nil {
			c.log.ErrorContext(ctx, "remove truncated artifact", slog.Any("error", delErr))
		}

		return "", fmt.Errorf("%w: got %d of %d bytes", errs.ErrTruncatedBody, n, length)
	}

	return path, nil
}

// finishWithError marks the job according to how it ended. Caller
// cancellation and timeout are kept distinct from upstream failures.
func (c *Coordinator) finishWithError(ctx context.Context, job entity.Job, kind errs.Kind, err error) {
	switch {
	case errors.Is(err, context.Canceled) || kind == errs.KindCancelled:
		c.registry.MarkCancelled(ctx, job.ID)
		c.log.InfoContext(ctx, "job cancelled", "job", job)
	case errors.Is(err, context.DeadlineExceeded):
		c.registry.MarkFailed(ctx, job.ID, errs.KindTransient, "job timed out")
		c.log.WarnContext(ctx, "job timed out", "job", job)
	default:
		c.registry.MarkFailed(ctx, job.ID, kind, err.Error())
		c.log.ErrorContext(ctx, "job failed",
			"job", job, slog.String("kind", string(kind)), slog.Any("error", err))
	}
}

// progressReader reports whole-percent progress changes while the body
// is copied to storage.
type progressReader struct {
	r      io.Reader
	total  int64
	done   int64
	last   int
	report func(percent int)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	p.done += int64(n)

	if p.total > 0 {
		if percent := calc.Progress(p.done, p.total); percent != p.last {
			p.last = percent
			p.report(percent)
		}
	}

	return n, err
}

// fileExt derives the artifact extension from the requested container
// format, falling back to the upstream content type.
func fileExt(format, contentType string) string {
	if format != "" {
		return strings.ToLower(strings.TrimPrefix(format, "."))
	}

	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			if _, sub, ok := strings.Cut(mt, "/"); ok {
				// video/webm -> webm, video/mp4 -> mp4.
				return sub
			}
		}
	}

	return "mp4"
}
