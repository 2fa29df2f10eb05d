// Package errs defines common error variables and the error-kind
// taxonomy used across the application.
package errs

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Kind classifies an error for retry and reporting decisions.
type Kind string

const (
	// KindExtraction indicates the extraction engine could not resolve a URL.
	KindExtraction Kind = "extraction_failure"
	// KindAuthRequired indicates extraction failed because credentials are needed.
	KindAuthRequired Kind = "auth_required"
	// KindGeoRestricted indicates the content is blocked in the current region.
	KindGeoRestricted Kind = "geo_restricted"
	// KindTransient indicates a retryable network failure.
	KindTransient Kind = "transient_network"
	// KindPermanent indicates a request failure that retrying cannot fix.
	KindPermanent Kind = "permanent_request"
	// KindStorage indicates a filesystem or storage-backend failure.
	KindStorage Kind = "storage"
	// KindConcurrencyLimit indicates the per-video stream slots are saturated.
	KindConcurrencyLimit Kind = "concurrency_limit"
	// KindCancelled indicates the operation was cancelled by the caller.
	KindCancelled Kind = "cancelled"
)

// Retryable reports whether an error of this kind may be retried with backoff.
func (k Kind) Retryable() bool {
	return k == KindTransient
}

// Service errors.
var (
	// ErrServiceClosed indicates that the coordinator is closed and cannot accept new jobs.
	ErrServiceClosed = errors.New("service is closed")
	// ErrQueueFull indicates that the job queue is full.
	ErrQueueFull = errors.New("job queue is full")
	// ErrInvalidRequestBody indicates that the request body is invalid or cannot be parsed.
	ErrInvalidRequestBody = errors.New("invalid request body")
	// ErrInvalidURL indicates that the URL field in the request is invalid.
	ErrInvalidURL = errors.New("invalid url field")
)

// Job and registry errors.
var (
	// ErrJobNotFound indicates that the job is not found in the registry.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobTerminal indicates that the job already reached a terminal status.
	ErrJobTerminal = errors.New("job is in terminal status")
	// ErrNoJobs indicates that there are no jobs for the session.
	ErrNoJobs = errors.New("no jobs")
)

// Extraction and transfer errors.
var (
	// ErrExtractionFailed indicates that no extraction strategy produced a result.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrAuthRequired indicates that the resource needs credentials.
	ErrAuthRequired = errors.New("authentication required")
	// ErrGeoRestricted indicates that the resource is blocked in this region.
	ErrGeoRestricted = errors.New("geo restricted")
	// ErrRetriesExhausted indicates that the bounded retry budget ran out.
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrStorage indicates a storage collaborator failure.
	ErrStorage = errors.New("storage failure")
	// ErrConcurrencyLimit indicates that the per-video stream slots are saturated.
	ErrConcurrencyLimit = errors.New("too many concurrent streams for this video")
	// ErrTruncatedBody indicates the upstream closed the body before content-length.
	ErrTruncatedBody = errors.New("truncated response body")
)

// KindOf classifies err into a Kind. Package sentinels are checked
// first, then context and network failure shapes. Unrecognized errors
// classify as KindExtraction, which is never retried.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthRequired):
		return KindAuthRequired
	case errors.Is(err, ErrGeoRestricted):
		return KindGeoRestricted
	case errors.Is(err, ErrConcurrencyLimit):
		return KindConcurrencyLimit
	case errors.Is(err, ErrStorage):
		return KindStorage
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case isTransient(err):
		return KindTransient
	default:
		return KindExtraction
	}
}

// KindOfStatus classifies an upstream HTTP status code. Success codes
// return the empty Kind.
func KindOfStatus(code int) Kind {
	switch {
	case code == http.StatusOK || code == http.StatusPartialContent:
		return ""
	case code == http.StatusUnauthorized:
		return KindAuthRequired
	case code == http.StatusUnavailableForLegalReasons:
		return KindGeoRestricted
	case code >= 400 && code < 500:
		return KindPermanent
	case code >= 500:
		return KindTransient
	default:
		return KindPermanent
	}
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, ErrTruncatedBody) {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// net/http wraps some transport failures without typed errors.
	msg := err.Error()

	return strings.Contains(msg, "connection reset") || strings.Contains(msg, "unexpected EOF")
}
