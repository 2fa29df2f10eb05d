package errs_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"syscall"
	"testing"

	"vidgate/internal/errs"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "auth sentinel", err: fmt.Errorf("resolve: %w", errs.ErrAuthRequired), want: errs.KindAuthRequired},
		{name: "geo sentinel", err: errs.ErrGeoRestricted, want: errs.KindGeoRestricted},
		{name: "concurrency sentinel", err: errs.ErrConcurrencyLimit, want: errs.KindConcurrencyLimit},
		{name: "storage sentinel", err: fmt.Errorf("%w: disk full", errs.ErrStorage), want: errs.KindStorage},
		{name: "context cancelled", err: context.Canceled, want: errs.KindCancelled},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: errs.KindTransient},
		{name: "connection reset", err: fmt.Errorf("read: %w", syscall.ECONNRESET), want: errs.KindTransient},
		{name: "unexpected eof", err: io.ErrUnexpectedEOF, want: errs.KindTransient},
		{name: "truncated body", err: errs.ErrTruncatedBody, want: errs.KindTransient},
		{name: "unknown", err: errors.New("mystery"), want: errs.KindExtraction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errs.KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestKindOfStatus(t *testing.T) {
	tests := []struct {
		code int
		want errs.Kind
	}{
		{code: http.StatusOK, want: ""},
		{code: http.StatusPartialContent, want: ""},
		{code: http.StatusUnauthorized, want: errs.KindAuthRequired},
		{code: http.StatusUnavailableForLegalReasons, want: errs.KindGeoRestricted},
		{code: http.StatusNotFound, want: errs.KindPermanent},
		{code: http.StatusTooManyRequests, want: errs.KindPermanent},
		{code: http.StatusInternalServerError, want: errs.KindTransient},
		{code: http.StatusBadGateway, want: errs.KindTransient},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			if got := errs.KindOfStatus(tt.code); got != tt.want {
				t.Errorf("KindOfStatus(%d) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	if !errs.KindTransient.Retryable() {
		t.Error("expected transient to be retryable")
	}

	for _, k := range []errs.Kind{
		errs.KindExtraction, errs.KindAuthRequired, errs.KindGeoRestricted,
		errs.KindPermanent, errs.KindStorage, errs.KindConcurrencyLimit, errs.KindCancelled,
	} {
		if k.Retryable() {
			t.Errorf("expected %q not retryable", k)
		}
	}
}
