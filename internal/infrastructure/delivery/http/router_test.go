package httprouter_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"vidgate/internal/config"
	"vidgate/internal/entity"
	"vidgate/internal/extractor"
	httprouter "vidgate/internal/infrastructure/delivery/http"
	"vidgate/internal/platform"
	"vidgate/internal/streamer"
)

func TestStreamResponseHeaders(t *testing.T) {
	payload := strings.Repeat("mediabyte", 256)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "clip.mp4", time.Now(), strings.NewReader(payload))
	}))
	defer upstream.Close()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg := &config.Config{Stream: config.Stream{
		SlotsPerVideo:  2,
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
		ChunkSize:      1024,
		ConnectTimeout: time.Second,
		ReadTimeout:    5 * time.Second,
		TotalTimeout:   30 * time.Second,
	}}

	extract := extractor.NewMock(extractor.Outcome{
		Info: &entity.MediaInfo{DirectURL: upstream.URL, Title: "clip", ContentType: "video/mp4"},
	})
	streams := streamer.New(log, cfg, extract, []platform.Adapter{platform.NewGeneric()}, nil, nil)

	router := httprouter.New(log, nil, streams, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stream/generic/v123", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	if got := rec.Header().Get("Content-Type"); got != "video/mp4" {
		t.Errorf("expected resolved content type, got %q", got)
	}

	if got := rec.Header().Get("Accept-Ranges"); got != "none" {
		t.Errorf("expected Accept-Ranges none, got %q", got)
	}

	body, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	if string(body) != payload {
		t.Errorf("relayed bytes differ from payload (%d vs %d bytes)", len(body), len(payload))
	}
}
