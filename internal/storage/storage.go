// Package storage implements the file-storage collaborator: streaming
// writes to disk, existence checks, deletes and expired-file cleanup.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"vidgate/internal/config"
	"vidgate/internal/errs"
	"vidgate/internal/observability"
)

// Storer defines the interface for artifact storage operations.
type Storer interface {
	// WriteStream copies r to path, creating parent directories. On any
	// error the partial file is removed. Cancellation is observed
	// between chunks.
	WriteStream(ctx context.Context, path string, r io.Reader) (int64, error)

	Exists(path string) bool
	Delete(path string) error

	// CleanupExpiredFiles periodically removes artifacts older than the
	// job retention window. Runs until ctx is done.
	CleanupExpiredFiles(ctx context.Context)
}

type fileStorage struct {
	log     *slog.Logger
	cfg     *config.Config
	metrics *observability.Metrics
}

// New creates a filesystem-backed storer rooted at cfg.Dir.Downloads.
func New(log *slog.Logger, cfg *config.Config, metrics *observability.Metrics) Storer {
	return &fileStorage{
		log:     log.With(slog.String("package", "storage")),
		cfg:     cfg,
		metrics: metrics,
	}
}

func (s *fileStorage) WriteStream(ctx context.Context, path string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("%w: mkdir: %w", errs.ErrStorage, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("%w: create: %w", errs.ErrStorage, err)
	}

	n, err := io.Copy(f, &ctxReader{ctx: ctx, r: r})

	closeErr := f.Close()
	if err == nil && closeErr != nil {
		err = fmt.Errorf("%w: close: %w", errs.ErrStorage, closeErr)
	}

	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			s.log.Error("remove partial file", slog.String("path", path), slog.Any("error", rmErr))
		}

		return n, err
	}

	s.metrics.RecordBytesStored(n)

	return n, nil
}

func (s *fileStorage) Exists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}

func (s *fileStorage) Delete(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove: %w", errs.ErrStorage, err)
	}

	return nil
}

// ctxReader makes io.Copy observe cancellation between chunk reads.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}
