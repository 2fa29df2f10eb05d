// Package registry tracks in-flight and recently finished download
// jobs. All status mutations go through the registry so reads from
// other goroutines never observe a half-written record; the coordinator
// owning a job is the only writer for that job.
package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vidgate/internal/config"
	"vidgate/internal/entity"
	"vidgate/internal/errs"
	"vidgate/internal/observability"
)

// Registry defines job bookkeeping operations.
type Registry interface {
	Set(ctx context.Context, job entity.Job)
	GetByID(ctx context.Context, id string) (entity.Job, bool)
	ListBySession(ctx context.Context, session string) []entity.Job

	MarkRunning(ctx context.Context, id string)
	MarkCompleted(ctx context.Context, id, resultPath string, reused bool)
	MarkFailed(ctx context.Context, id string, kind errs.Kind, message string)
	MarkCancelled(ctx context.Context, id string)
	SetProgress(ctx context.Context, id string, progress int)

	// Cancel requests cancellation of a job. It returns false when the
	// job is unknown or already terminal.
	Cancel(ctx context.Context, id string) bool

	RegisterCancelFunc(id string, cancel context.CancelFunc)
	UnregisterCancelFunc(id string)

	// Sweep periodically drops expired job records. A record past its
	// expiry that is still running is kept until it turns terminal.
	Sweep(ctx context.Context)
}

type memRegistry struct {
	log     *slog.Logger
	cfg     *config.Config
	metrics *observability.Metrics

	mu   sync.RWMutex
	jobs map[string]entity.Job // job ID : job

	cancelMu    sync.RWMutex
	cancelFuncs map[string]context.CancelFunc // job ID : cancel func
}

// New creates an in-memory job registry and starts its sweep loop.
func New(ctx context.Context, log *slog.Logger, cfg *config.Config, metrics *observability.Metrics) Registry {
	reg := &memRegistry{
		log:         log.With(slog.String("package", "registry")),
		cfg:         cfg,
		metrics:     metrics,
		jobs:        make(map[string]entity.Job),
		cancelFuncs: make(map[string]context.CancelFunc),
	}

	go reg.Sweep(ctx)

	return reg
}

func (r *memRegistry) Set(ctx context.Context, job entity.Job) {
	if job.ID == "" {
		r.log.ErrorContext(ctx, "set job: empty job ID")

		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[job.ID] = job
}

func (r *memRegistry) GetByID(_ context.Context, id string) (entity.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]

	return job, ok
}

func (r *memRegistry) ListBySession(_ context.Context, session string) []entity.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make([]entity.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if job.OwnerSession == session {
			jobs = append(jobs, job)
		}
	}

	return jobs
}

func (r *memRegistry) MarkRunning(ctx context.Context, id string) {
	r.transition(ctx, id, func(job *entity.Job) {
		job.Status = entity.JobStatusRunning
	})
}

func (r *memRegistry) MarkCompleted(ctx context.Context, id, resultPath string, reused bool) {
	r.transition(ctx, id, func(job *entity.Job) {
		job.Status = entity.JobStatusCompleted
		job.ResultPath = resultPath
		job.Reused = reused
		job.Progress = 100
		job.FinishedAt = time.Now()
	})
	r.metrics.RecordJobCompleted(reused)
}

func (r *memRegistry) MarkFailed(ctx context.Context, id string, kind errs.Kind, message string) {
	r.transition(ctx, id, func(job *entity.Job) {
		job.Status = entity.JobStatusFailed
		job.ErrorKind = kind
		job.ErrorMessage = message
		job.FinishedAt = time.Now()
	})
	r.metrics.RecordJobFailed(string(kind))
}

func (r *memRegistry) MarkCancelled(ctx context.Context, id string) {
	r.transition(ctx, id, func(job *entity.Job) {
		job.Status = entity.JobStatusCancelled
		job.ErrorKind = errs.KindCancelled
		job.FinishedAt = time.Now()
	})
	r.metrics.RecordJobFailed(string(errs.KindCancelled))
}

func (r *memRegistry) SetProgress(ctx context.Context, id string, progress int) {
	r.transition(ctx, id, func(job *entity.Job) {
		job.Progress = progress
	})
}

// transition applies fn to the stored job unless it is already
// terminal. Terminal states never transition further.
func (r *memRegistry) transition(ctx context.Context, id string, fn func(*entity.Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		r.log.ErrorContext(ctx, "transition: job not found", slog.String("job_id", id))

		return
	}

	if job.Status.IsTerminal() {
		r.log.WarnContext(ctx, "transition on terminal job ignored", "job", job)

		return
	}

	fn(&job)
	job.UpdatedAt = time.Now()
	r.jobs[id] = job

	r.log.DebugContext(ctx, "job status updated", "job", job)
}

func (r *memRegistry) Cancel(ctx context.Context, id string) bool {
	r.mu.RLock()
	job, ok := r.jobs[id]
	r.mu.RUnlock()

	if !ok || job.Status.IsTerminal() {
		return false
	}

	r.cancelMu.RLock()
	cancel := r.cancelFuncs[id]
	r.cancelMu.RUnlock()

	if cancel != nil {
		// Running job: the owning worker observes cancellation at its
		// next suspension point and marks the record itself.
		cancel()
	} else {
		// Still pending: no worker owns it yet, mark directly.
		r.MarkCancelled(ctx, id)
	}

	r.log.InfoContext(ctx, "job cancellation requested", slog.String("job_id", id))

	return true
}

func (r *memRegistry) RegisterCancelFunc(id string, cancel context.CancelFunc) {
	r.cancelMu.Lock()
	defer r.cancelMu.Unlock()

	r.cancelFuncs[id] = cancel
}

func (r *memRegistry) UnregisterCancelFunc(id string) {
	r.cancelMu.Lock()
	defer r.cancelMu.Unlock()

	delete(r.cancelFuncs, id)
}
