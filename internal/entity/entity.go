// Package entity defines the core entities used in the application.
package entity

import (
	"log/slog"
	"time"

	"vidgate/internal/errs"
)

// JobStatus represents the status of a download job.
type JobStatus string

const (
	// JobStatusPending indicates that the job is accepted and queued.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates that the job is being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates that the job finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates that the job encountered an error.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates that the job was cancelled by the user.
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job represents one tracked download request and its lifecycle.
type Job struct {
	ID           string    `json:"id"`
	ResourceKey  string    `json:"resourceKey"`
	URL          string    `json:"url"`
	Quality      string    `json:"quality"`
	Format       string    `json:"format"`
	Filename     string    `json:"filename,omitempty"`
	OwnerSession string    `json:"ownerSession"`
	Status       JobStatus `json:"status"`
	Reused       bool      `json:"reused"`
	Progress     int       `json:"progress"`
	ResultPath   string    `json:"resultPath,omitempty"`
	ErrorKind    errs.Kind `json:"errorKind,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	FinishedAt   time.Time `json:"finishedAt,omitzero"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (j Job) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", j.ID),
		slog.String("resource_key", j.ResourceKey),
		slog.String("url", j.URL),
		slog.String("quality", j.Quality),
		slog.String("format", j.Format),
		slog.String("status", string(j.Status)),
		slog.Bool("reused", j.Reused),
		slog.Int("progress", j.Progress),
		slog.String("error_kind", string(j.ErrorKind)),
	)
}

// MediaInfo is the result of resolving a URL through the extraction engine.
type MediaInfo struct {
	DirectURL       string `json:"directUrl"`
	Title           string `json:"title"`
	Author          string `json:"author,omitempty"`
	DurationSeconds int    `json:"durationSeconds"`
	ContentType     string `json:"contentType,omitempty"`
	ContentLength   int64  `json:"contentLength,omitempty"`
	ThumbnailURL    string `json:"thumbnailUrl,omitempty"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
// The direct URL is omitted on purpose, it usually carries signed tokens.
func (m MediaInfo) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("title", m.Title),
		slog.String("author", m.Author),
		slog.Int("duration_seconds", m.DurationSeconds),
		slog.String("content_type", m.ContentType),
		slog.Int64("content_length", m.ContentLength),
	)
}

// StreamSession describes one proxied stream. It lives only for the
// duration of a single request and is never shared across requests.
type StreamSession struct {
	Platform      string    `json:"platform"`
	VideoID       string    `json:"videoId"`
	Quality       string    `json:"quality"`
	StartedAt     time.Time `json:"startedAt"`
	BytesStreamed int64     `json:"bytesStreamed"`
	Attempt       int       `json:"attempt"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (s StreamSession) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("platform", s.Platform),
		slog.String("video_id", s.VideoID),
		slog.String("quality", s.Quality),
		slog.Int64("bytes_streamed", s.BytesStreamed),
		slog.Int("attempt", s.Attempt),
		slog.Duration("elapsed", time.Since(s.StartedAt)),
	)
}
