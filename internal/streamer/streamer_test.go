package streamer_test

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"vidgate/internal/config"
	"vidgate/internal/entity"
	"vidgate/internal/errs"
	"vidgate/internal/extractor"
	"vidgate/internal/platform"
	"vidgate/internal/streamer"
)

func newTestProxy(t *testing.T, directURL string, script ...extractor.Outcome) *streamer.Proxy {
	t.Helper()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg := &config.Config{Stream: config.Stream{
		SlotsPerVideo:  1,
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
		ChunkSize:      1024,
		ConnectTimeout: time.Second,
		ReadTimeout:    5 * time.Second,
		TotalTimeout:   30 * time.Second,
	}}

	if len(script) == 0 {
		script = []extractor.Outcome{{
			Info: &entity.MediaInfo{DirectURL: directURL, Title: "clip"},
		}}
	}

	adapters := []platform.Adapter{
		platform.NewYouTube(log, time.Minute, 16),
		platform.NewGeneric(),
	}

	return streamer.New(log, cfg, extractor.NewMock(script...), adapters, nil, nil)
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func TestStreamResolvedCallbackBeforeFirstByte(t *testing.T) {
	payload := strings.Repeat("mediabyte", 256)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "clip.mp4", time.Now(), strings.NewReader(payload))
	}))
	defer upstream.Close()

	p := newTestProxy(t, upstream.URL, extractor.Outcome{
		Info: &entity.MediaInfo{DirectURL: upstream.URL, Title: "clip", ContentType: "video/mp4"},
	})

	var resolved *entity.MediaInfo

	var buf bytes.Buffer

	_, err := p.Stream(t.Context(), streamer.Request{
		Platform:   "generic",
		VideoID:    upstream.URL,
		OnResolved: func(info *entity.MediaInfo) { resolved = info },
	}, writerFunc(func(b []byte) (int, error) {
		if resolved == nil {
			t.Error("body bytes written before the resolved-info callback")
		}

		return buf.Write(b)
	}))
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	if resolved == nil || resolved.ContentType != "video/mp4" {
		t.Errorf("expected resolved media info with content type, got %+v", resolved)
	}

	if buf.String() != payload {
		t.Errorf("relayed bytes differ from payload (%d vs %d bytes)", buf.Len(), len(payload))
	}
}

func TestStreamRelaysBytes(t *testing.T) {
	payload := strings.Repeat("abcdefgh", 512)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "clip.mp4", time.Now(), strings.NewReader(payload))
	}))
	defer upstream.Close()

	p := newTestProxy(t, upstream.URL)

	var buf bytes.Buffer

	session, err := p.Stream(t.Context(), streamer.Request{Platform: "generic", VideoID: upstream.URL}, &buf)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	if buf.String() != payload {
		t.Errorf("relayed bytes differ from payload (%d vs %d bytes)", buf.Len(), len(payload))
	}

	if session.BytesStreamed != int64(len(payload)) {
		t.Errorf("expected %d bytes streamed, got %d", len(payload), session.BytesStreamed)
	}

	if session.Attempt != 1 {
		t.Errorf("expected single attempt, got %d", session.Attempt)
	}

	if p.SlotEntries() != 0 {
		t.Errorf("expected slot table cleaned up, got %d entries", p.SlotEntries())
	}
}

func TestStreamGaplessRetry(t *testing.T) {
	payload := strings.Repeat("0123456789", 400)
	half := len(payload) / 2

	tests := []struct {
		name         string
		honorsRange  bool
		wantRequests int32
	}{
		{name: "upstream honors range", honorsRange: true, wantRequests: 2},
		{name: "upstream ignores range", honorsRange: false, wantRequests: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests atomic.Int32

			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := requests.Add(1)

				if n == 1 {
					// Declare the full length but send only half, so the
					// client observes a truncated body.
					w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
					w.WriteHeader(http.StatusOK)
					w.Write([]byte(payload[:half]))

					return
				}

				if tt.honorsRange {
					wantRange := fmt.Sprintf("bytes=%d-", half)
					if got := r.Header.Get("Range"); got != wantRange {
						t.Errorf("expected Range %q, got %q", wantRange, got)
					}

					rest := payload[half:]
					w.Header().Set("Content-Range",
						fmt.Sprintf("bytes %d-%d/%d", half, len(payload)-1, len(payload)))
					w.Header().Set("Content-Length", strconv.Itoa(len(rest)))
					w.WriteHeader(http.StatusPartialContent)
					w.Write([]byte(rest))

					return
				}

				// Full body from byte zero despite the Range header.
				w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(payload))
			}))
			defer upstream.Close()

			p := newTestProxy(t, upstream.URL)

			var buf bytes.Buffer

			session, err := p.Stream(t.Context(), streamer.Request{Platform: "generic", VideoID: upstream.URL}, &buf)
			if err != nil {
				t.Fatalf("stream: %v", err)
			}

			if buf.String() != payload {
				t.Errorf("caller observed a gap: got %d bytes, want %d", buf.Len(), len(payload))
			}

			if session.Attempt != 2 {
				t.Errorf("expected 2 attempts, got %d", session.Attempt)
			}

			if got := requests.Load(); got != tt.wantRequests {
				t.Errorf("expected %d upstream requests, got %d", tt.wantRequests, got)
			}
		})
	}
}

func TestStreamRetriesExhausted(t *testing.T) {
	payload := strings.Repeat("x", 1000)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Every response is truncated.
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(payload[:10]))
	}))
	defer upstream.Close()

	p := newTestProxy(t, upstream.URL)

	var buf bytes.Buffer

	session, err := p.Stream(t.Context(), streamer.Request{Platform: "generic", VideoID: upstream.URL}, &buf)
	if !errors.Is(err, errs.ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}

	// MaxRetries=2 means one initial attempt plus two retries.
	if session.Attempt != 3 {
		t.Errorf("expected 3 attempts, got %d", session.Attempt)
	}
}

func TestStreamPermanentStatusNoRetry(t *testing.T) {
	var requests atomic.Int32

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	p := newTestProxy(t, upstream.URL)

	var buf bytes.Buffer

	session, err := p.Stream(t.Context(), streamer.Request{Platform: "generic", VideoID: upstream.URL}, &buf)
	if err == nil {
		t.Fatal("expected error for 404 upstream")
	}

	if session.Attempt != 1 || requests.Load() != 1 {
		t.Errorf("expected single attempt for permanent failure, got attempt=%d requests=%d",
			session.Attempt, requests.Load())
	}
}

func TestStreamConcurrencyCap(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		entered <- struct{}{}
		<-release
		w.Write([]byte("done"))
	}))
	defer upstream.Close()

	p := newTestProxy(t, upstream.URL)

	req := streamer.Request{Platform: "generic", VideoID: upstream.URL}

	firstDone := make(chan error, 1)

	go func() {
		var buf bytes.Buffer
		_, err := p.Stream(t.Context(), req, &buf)
		firstDone <- err
	}()

	<-entered

	// The single slot for this video is taken; a second caller is
	// rejected immediately instead of queueing.
	var buf bytes.Buffer

	_, err := p.Stream(t.Context(), req, &buf)
	if !errors.Is(err, errs.ErrConcurrencyLimit) {
		t.Errorf("expected ErrConcurrencyLimit, got %v", err)
	}

	close(release)

	if err := <-firstDone; err != nil {
		t.Errorf("first stream failed: %v", err)
	}

	if p.SlotEntries() != 0 {
		t.Errorf("expected slot table cleaned up, got %d entries", p.SlotEntries())
	}
}

func TestStreamAuthClassification(t *testing.T) {
	p := newTestProxy(t, "", extractor.Outcome{Err: errors.New("login required to view this video")})

	var buf bytes.Buffer

	_, err := p.Stream(t.Context(), streamer.Request{Platform: "youtube", VideoID: "abc"}, &buf)
	if !errors.Is(err, errs.ErrAuthRequired) {
		t.Errorf("expected ErrAuthRequired, got %v", err)
	}
}
