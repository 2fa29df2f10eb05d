// Package extractor defines the extraction-engine interface consumed
// by the coordinator and stream proxy, and its implementations.
package extractor

import (
	"context"

	"vidgate/internal/entity"
)

// Client resolves a page URL to a direct media URL plus metadata.
// Implementations may block on network or CPU; callers dispatch them
// from bounded worker pools.
type Client interface {
	// Resolve returns media info for url. quality and format are opaque
	// selector strings produced by the platform adapter.
	Resolve(ctx context.Context, url, quality, format string) (*entity.MediaInfo, error)
}
