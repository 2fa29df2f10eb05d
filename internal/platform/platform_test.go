package platform_test

import (
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"vidgate/internal/consts"
	"vidgate/internal/errs"
	"vidgate/internal/platform"
)

func newAdapters() []platform.Adapter {
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	return []platform.Adapter{
		platform.NewYouTube(log, 10*time.Minute, 16),
		platform.NewGeneric(),
	}
}

func TestClassify(t *testing.T) {
	adapters := newAdapters()

	tests := []struct {
		name string
		url  string
		want string
	}{
		{name: "youtube long url", url: "https://www.youtube.com/watch?v=abc", want: consts.PlatformYouTube},
		{name: "youtube short url", url: "https://youtu.be/abc", want: consts.PlatformYouTube},
		{name: "youtube mobile url", url: "https://m.youtube.com/watch?v=abc", want: consts.PlatformYouTube},
		{name: "unknown host", url: "https://example.com/video.mp4", want: consts.PlatformGeneric},
		{name: "unparseable", url: "::::", want: consts.PlatformGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := platform.Classify(adapters, tt.url).Name(); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestByName(t *testing.T) {
	adapters := newAdapters()

	if got := platform.ByName(adapters, consts.PlatformYouTube).Name(); got != consts.PlatformYouTube {
		t.Errorf("ByName(youtube) = %q", got)
	}

	if got := platform.ByName(adapters, "unknown").Name(); got != consts.PlatformGeneric {
		t.Errorf("ByName(unknown) = %q, want generic", got)
	}
}

func TestYouTubeFallbackLadder(t *testing.T) {
	yt := platform.NewYouTube(slog.New(slog.NewTextHandler(os.Stdout, nil)), time.Minute, 16)

	want := []string{"1080p", "720p", "480p", "360p", "worst"}

	quality := "best"
	for _, expected := range want {
		next, ok := yt.FallbackQuality(quality)
		if !ok {
			t.Fatalf("ladder ended early at %q", quality)
		}
		if next != expected {
			t.Errorf("FallbackQuality(%q) = %q, want %q", quality, next, expected)
		}
		quality = next
	}

	if _, ok := yt.FallbackQuality("worst"); ok {
		t.Error("expected ladder to end at worst")
	}
}

func TestYouTubeAuthProbe(t *testing.T) {
	ctx := t.Context()
	yt := platform.NewYouTube(slog.New(slog.NewTextHandler(os.Stdout, nil)), time.Minute, 16)

	url := "https://www.youtube.com/watch?v=private"

	if yt.RequiresAuth(ctx, url) {
		t.Error("expected no auth requirement before probe")
	}

	yt.NoteAuthRequired(ctx, url)

	if !yt.RequiresAuth(ctx, url) {
		t.Error("expected auth requirement after probe")
	}

	if yt.RequiresAuth(ctx, "https://www.youtube.com/watch?v=other") {
		t.Error("expected probe to apply per url")
	}
}

func TestYouTubeClassifyError(t *testing.T) {
	yt := platform.NewYouTube(slog.New(slog.NewTextHandler(os.Stdout, nil)), time.Minute, 16)

	tests := []struct {
		name string
		err  error
		want errs.Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "login required", err: errors.New("login required to view this video"), want: errs.KindAuthRequired},
		{name: "private video", err: errors.New("this is a private video"), want: errs.KindAuthRequired},
		{name: "geo blocked", err: errors.New("the uploader has not made this video available in your country"), want: errs.KindGeoRestricted},
		{name: "video gone", err: errors.New("video unavailable"), want: errs.KindPermanent},
		{name: "unknown", err: errors.New("something odd"), want: errs.KindExtraction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := yt.ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestGenericAdapter(t *testing.T) {
	g := platform.NewGeneric()

	if got := g.WatchURL("https://example.com/v.mp4"); got != "https://example.com/v.mp4" {
		t.Errorf("WatchURL changed the url: %q", got)
	}

	if _, ok := g.FallbackQuality("1080p"); ok {
		t.Error("expected no fallback ladder")
	}

	if g.RequiresAuth(t.Context(), "https://example.com") {
		t.Error("expected no auth probing")
	}
}
