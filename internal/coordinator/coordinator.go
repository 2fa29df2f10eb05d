// Package coordinator orchestrates download jobs: submission, keyed
// locking, result reuse, extraction, transfer and cleanup. At most one
// extraction+download runs per distinct resource key at any time.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"vidgate/internal/cache"
	"vidgate/internal/config"
	"vidgate/internal/consts"
	"vidgate/internal/entity"
	"vidgate/internal/errs"
	"vidgate/internal/extractor"
	"vidgate/internal/observability"
	"vidgate/internal/platform"
	"vidgate/internal/proxymgr"
	"vidgate/internal/registry"
	"vidgate/internal/storage"
	"vidgate/pkg/gen"
	"vidgate/pkg/keyedlock"
	"vidgate/pkg/urls"
)

// SubmitRequest carries the parameters of one download submission.
type SubmitRequest struct {
	URL          string
	Quality      string
	Format       string
	Filename     string
	OwnerSession string
}

// Coordinator accepts jobs synchronously and executes them on a
// bounded worker pool so the blocking extraction engine cannot starve
// the process.
type Coordinator struct {
	log      *slog.Logger
	cfg      *config.Config
	metrics  *observability.Metrics
	registry registry.Registry
	cache    cache.Cache
	locks    *keyedlock.Table
	storer   storage.Storer
	extract  extractor.Client
	adapters []platform.Adapter
	transfer transferFn

	jobQueue  chan string
	wg        sync.WaitGroup
	closed    atomic.Bool
	startOnce sync.Once
}

// Option tweaks a Coordinator.
type Option func(*Coordinator)

// WithTransfer substitutes the byte-transfer function, for tests.
func WithTransfer(fn transferFn) Option {
	return func(c *Coordinator) {
		c.transfer = fn
	}
}

// New creates a download coordinator. proxyMgr may be nil for direct
// connections.
func New(cfg *config.Config, log *slog.Logger, reg registry.Registry, resultCache cache.Cache,
	storer storage.Storer, extract extractor.Client, adapters []platform.Adapter,
	proxyMgr *proxymgr.Manager, metrics *observability.Metrics, opts ...Option) *Coordinator {
	c := &Coordinator{
		log:      log.With(slog.String("package", "coordinator")),
		cfg:      cfg,
		metrics:  metrics,
		registry: reg,
		cache:    resultCache,
		locks:    keyedlock.New(),
		storer:   storer,
		extract:  extract,
		adapters: adapters,
		jobQueue: make(chan string, cfg.Job.QueueSize),
	}

	c.transfer = newHTTPTransfer(cfg, proxyMgr)

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start launches the worker pool. Safe to call once; later calls are
// no-ops.
func (c *Coordinator) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		for i := range c.cfg.Job.Workers {
			c.wg.Add(1)
			go c.worker(ctx, i)
		}
	})
}

// Submit registers a job and queues it for asynchronous execution. It
// always returns synchronously; the returned job is in pending state.
func (c *Coordinator) Submit(ctx context.Context, req SubmitRequest) (entity.Job, error) {
	if c.closed.Load() {
		return entity.Job{}, errs.ErrServiceClosed
	}

	if !urls.IsURLValid(req.URL) {
		return entity.Job{}, errs.ErrInvalidURL
	}

	normalized := urls.Normalize(req.URL)

	quality := req.Quality
	if quality == "" {
		quality = "best"
	}

	session := req.OwnerSession
	if session == "" {
		session = consts.DefaultSessionID
	}

	now := time.Now()
	job := entity.Job{
		ID:           uuid.NewString(),
		ResourceKey:  gen.ResourceKey(normalized, quality, req.Format),
		URL:          normalized,
		Quality:      quality,
		Format:       req.Format,
		Filename:     req.Filename,
		OwnerSession: session,
		Status:       entity.JobStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(c.cfg.Job.Retention),
	}

	c.registry.Set(ctx, job)
	c.metrics.RecordJobCreated()

	select {
	case c.jobQueue <- job.ID:
		return job, nil
	default:
		c.registry.MarkFailed(ctx, job.ID, errs.KindConcurrencyLimit, "worker queue is full")

		return entity.Job{}, fmt.Errorf("%w: %d/%d", errs.ErrQueueFull, len(c.jobQueue), cap(c.jobQueue))
	}
}

// GetStatus returns the job with the given ID.
func (c *Coordinator) GetStatus(ctx context.Context, id string) (entity.Job, bool) {
	return c.registry.GetByID(ctx, id)
}

// Cancel requests cancellation of a job. Returns false when the job is
// unknown or already terminal.
func (c *Coordinator) Cancel(ctx context.Context, id string) bool {
	return c.registry.Cancel(ctx, id)
}

// ListJobs returns the jobs owned by session.
func (c *Coordinator) ListJobs(ctx context.Context, session string) []entity.Job {
	return c.registry.ListBySession(ctx, session)
}

func (c *Coordinator) worker(ctx context.Context, workerID int) {
	defer c.wg.Done()

	log := c.log.With(slog.Int("worker_id", workerID))

	for {
		select {
		case jobID, ok := <-c.jobQueue:
			if !ok {
				log.WarnContext(ctx, "job queue closed")

				return
			}

			c.process(ctx, jobID)
		case <-ctx.Done():
			c.closed.Store(true)
			log.InfoContext(ctx, "got ctx done signal", slog.Any("error", ctx.Err()))

			return
		}
	}
}
