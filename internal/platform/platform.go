// Package platform consolidates platform-specific policy behind a
// single strategy interface: auth detection, quality fallback, geo
// handling and error classification. The adapter is chosen once per
// resource by URL host instead of string comparisons scattered across
// the coordinator.
package platform

import (
	"context"

	"vidgate/internal/consts"
	"vidgate/internal/errs"
	"vidgate/pkg/urls"
)

// Adapter is the pluggable per-platform policy.
type Adapter interface {
	// Name returns the platform identifier.
	Name() string

	// WatchURL builds the canonical page URL for a bare video ID.
	WatchURL(videoID string) string

	// RequiresAuth reports whether a recent probe concluded that url
	// needs credentials.
	RequiresAuth(ctx context.Context, url string) bool

	// NoteAuthRequired remembers for a short while that url needs
	// credentials, to short-circuit repeated doomed attempts.
	NoteAuthRequired(ctx context.Context, url string)

	// FormatSelector converts a caller quality preference into the
	// opaque selector string the extraction engine understands.
	FormatSelector(quality string) string

	// FallbackQuality returns the next lower quality to try, or
	// ok=false when the ladder is exhausted.
	FallbackQuality(quality string) (next string, ok bool)

	// ClassifyError maps a raw extraction error onto the error taxonomy.
	ClassifyError(err error) errs.Kind
}

// Classify picks the adapter for a URL by host. Unknown hosts get the
// generic adapter.
func Classify(adapters []Adapter, rawURL string) Adapter {
	host := urls.Host(rawURL)

	for _, a := range adapters {
		if m, ok := a.(hostMatcher); ok && m.MatchesHost(host) {
			return a
		}
	}

	return NewGeneric()
}

// ByName returns the adapter with the given platform name, or the
// generic adapter when none matches.
func ByName(adapters []Adapter, name string) Adapter {
	for _, a := range adapters {
		if a.Name() == name {
			return a
		}
	}

	return NewGeneric()
}

type hostMatcher interface {
	MatchesHost(host string) bool
}

// Generic is the default adapter: no auth probing, no fallback ladder,
// taxonomy classification straight from errs.
type Generic struct{}

// NewGeneric creates the fallback adapter.
func NewGeneric() *Generic {
	return &Generic{}
}

func (g *Generic) Name() string { return consts.PlatformGeneric }

// WatchURL treats the video ID as an already-complete URL.
func (g *Generic) WatchURL(videoID string) string { return videoID }

func (g *Generic) RequiresAuth(context.Context, string) bool { return false }

func (g *Generic) NoteAuthRequired(context.Context, string) {}

func (g *Generic) FormatSelector(quality string) string { return quality }

func (g *Generic) FallbackQuality(string) (string, bool) { return "", false }

func (g *Generic) ClassifyError(err error) errs.Kind { return errs.KindOf(err) }
