// Package request defines and validates API request bodies.
package request

import (
	"vidgate/internal/errs"
	"vidgate/pkg/urls"
)

// Submit is the body of a download submission.
type Submit struct {
	URL      string `json:"url"`
	Quality  string `json:"quality"`  // e.g. "best", "1080p", "720p"
	Format   string `json:"format"`   // container hint, e.g. "mp4", "webm"
	Filename string `json:"filename"` // optional base name for the artifact
}

func (s *Submit) Validate() error {
	if !urls.IsURLValid(s.URL) {
		return errs.ErrInvalidURL
	}

	return nil
}
