package platform

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"vidgate/internal/consts"
	"vidgate/internal/errs"
)

// youtubeHosts are the hosts served by the YouTube adapter.
var youtubeHosts = []string{"youtube.com", "www.youtube.com", "m.youtube.com", "youtu.be"}

// qualityLadder is the progressive degradation order used when
// extraction keeps failing for the requested quality.
var qualityLadder = map[string]string{
	"best":  "1080p",
	"1080p": "720p",
	"720p":  "480p",
	"480p":  "360p",
	"360p":  "worst",
}

// YouTube implements platform policy for YouTube: quality degradation
// on repeated failure, geo-bypass flagging and auth-requirement
// detection with a short-lived negative cache.
type YouTube struct {
	log *slog.Logger

	// authProbes remembers resources that recently failed with an
	// auth-shaped error so they are not re-probed on every submission.
	authProbes *expirable.LRU[string, time.Time]
}

// NewYouTube creates the YouTube adapter. probeTTL bounds how long an
// auth verdict is remembered; probeSize bounds the negative cache.
func NewYouTube(log *slog.Logger, probeTTL time.Duration, probeSize int) *YouTube {
	return &YouTube{
		log:        log.With(slog.String("package", "platform"), slog.String("platform", consts.PlatformYouTube)),
		authProbes: expirable.NewLRU[string, time.Time](probeSize, nil, probeTTL),
	}
}

func (y *YouTube) Name() string { return consts.PlatformYouTube }

func (y *YouTube) MatchesHost(host string) bool {
	for _, h := range youtubeHosts {
		if host == h {
			return true
		}
	}

	return false
}

func (y *YouTube) WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

func (y *YouTube) RequiresAuth(_ context.Context, url string) bool {
	_, ok := y.authProbes.Get(url)

	return ok
}

func (y *YouTube) NoteAuthRequired(ctx context.Context, url string) {
	y.authProbes.Add(url, time.Now())
	y.log.DebugContext(ctx, "auth requirement cached", slog.String("url", url))
}

// FormatSelector passes quality labels straight through; the youtube
// extraction engine selects formats by label.
func (y *YouTube) FormatSelector(quality string) string {
	if quality == "" {
		return "best"
	}

	return quality
}

func (y *YouTube) FallbackQuality(quality string) (string, bool) {
	next, ok := qualityLadder[quality]

	return next, ok
}

// ClassifyError recognizes the auth and geo failure shapes the engine
// reports as plain text before falling back to the shared taxonomy.
func (y *YouTube) ClassifyError(err error) errs.Kind {
	if err == nil {
		return ""
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "login required"),
		strings.Contains(msg, "sign in"),
		strings.Contains(msg, "private video"),
		strings.Contains(msg, "age restricted"):
		return errs.KindAuthRequired
	case strings.Contains(msg, "not available in your country"),
		strings.Contains(msg, "geo"):
		return errs.KindGeoRestricted
	case strings.Contains(msg, "video unavailable"),
		strings.Contains(msg, "not found"),
		strings.Contains(msg, "invalid characters"):
		return errs.KindPermanent
	default:
		return errs.KindOf(err)
	}
}
