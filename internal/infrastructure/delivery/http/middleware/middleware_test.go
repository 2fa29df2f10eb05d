package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"vidgate/internal/consts"
	"vidgate/internal/infrastructure/delivery/http/middleware"
)

func TestRecoverer(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantPanic  any
		wantStatus int
	}{
		{
			name: "no panic",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "string panic becomes 500",
			handler: func(_ http.ResponseWriter, _ *http.Request) {
				panic("test panic")
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "http.ErrAbortHandler re-panics",
			handler: func(_ http.ResponseWriter, _ *http.Request) {
				panic(http.ErrAbortHandler)
			},
			wantPanic: http.ErrAbortHandler,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := middleware.Recoverer(tt.handler)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()

			if tt.wantPanic != nil {
				defer func() {
					if got := recover(); got != tt.wantPanic {
						t.Errorf("expected re-panic with %v, got %v", tt.wantPanic, got)
					}
				}()
			}

			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	t.Run("generates when absent", func(t *testing.T) {
		var gotCtx string

		h := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			gotCtx, _ = r.Context().Value(middleware.RequestIDKey).(string)
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		header := rec.Header().Get(middleware.HeaderXRequestID)
		if header == "" || header != gotCtx {
			t.Errorf("expected generated request id in header and context, got %q / %q", header, gotCtx)
		}

		if _, err := uuid.Parse(header); err != nil {
			t.Errorf("expected uuid request id, got %q", header)
		}
	})

	t.Run("preserves caller id", func(t *testing.T) {
		h := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.HeaderXRequestID, "caller-id")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get(middleware.HeaderXRequestID); got != "caller-id" {
			t.Errorf("expected caller-id preserved, got %q", got)
		}
	})
}

func TestSessionID(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "explicit session", header: "user-42", want: "user-42"},
		{name: "anonymous fallback", header: "", want: consts.DefaultSessionID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string

			h := middleware.SessionID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got = middleware.SessionFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(middleware.HeaderXSessionID, tt.header)
			}

			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("expected session %q, got %q", tt.want, got)
			}
		})
	}
}
