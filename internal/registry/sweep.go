package registry

import (
	"context"
	"log/slog"
	"time"
)

func (r *memRegistry) Sweep(ctx context.Context) {
	interval := r.cfg.Job.SweepInterval
	log := r.log.With(slog.String("action", "sweep_expired_jobs"), slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.performSweep(ctx)
		case <-ctx.Done():
			log.Info("job sweep stopped")

			return
		}
	}
}

func (r *memRegistry) performSweep(ctx context.Context) {
	now := time.Now()
	removed := 0

	r.mu.Lock()
	for id, job := range r.jobs {
		if !job.ExpiresAt.Before(now) {
			continue
		}

		// An expired record that is still running is not killed by the
		// sweep; it is dropped on a later pass once terminal.
		if !job.Status.IsTerminal() {
			continue
		}

		delete(r.jobs, id)
		removed++
	}
	r.mu.Unlock()

	if removed > 0 {
		r.metrics.RecordCleanup(removed, 0)
		r.log.InfoContext(ctx, "expired jobs swept", slog.Int("count", removed))
	}
}
