package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

func (s *fileStorage) CleanupExpiredFiles(ctx context.Context) {
	interval := s.cfg.Job.SweepInterval
	log := s.log.With(slog.String("action", "cleanup_expired_files"), slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performCleanup(ctx)
		case <-ctx.Done():
			log.Info("cleanup expired files stopped")

			return
		}
	}
}

func (s *fileStorage) performCleanup(ctx context.Context) {
	log := s.log
	cutoff := time.Now().Add(-s.cfg.Job.Retention)

	deleted := 0

	err := filepath.WalkDir(s.cfg.Dir.Downloads, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		if info.ModTime().After(cutoff) {
			return nil
		}

		if err := os.Remove(path); err != nil {
			log.ErrorContext(ctx, "failed to delete expired file", slog.String("path", path), slog.Any("error", err))

			return nil
		}

		deleted++

		log.DebugContext(ctx, "expired file deleted", slog.String("path", path))

		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		log.ErrorContext(ctx, "walk downloads dir", slog.Any("error", err))
	}

	if deleted > 0 {
		s.metrics.RecordCleanup(0, deleted)
		log.InfoContext(ctx, "expired files removed", slog.Int("count", deleted))
	}
}
