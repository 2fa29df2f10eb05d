package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kkdai/youtube/v2"

	"vidgate/internal/entity"
)

// YouTube resolves watch URLs through the youtube client library.
type YouTube struct {
	log    *slog.Logger
	client *youtube.Client
}

// NewYouTube creates a YouTube extraction client.
func NewYouTube(log *slog.Logger) *YouTube {
	return &YouTube{
		log:    log.With(slog.String("package", "extractor"), slog.String("engine", "youtube")),
		client: &youtube.Client{},
	}
}

func (y *YouTube) Resolve(ctx context.Context, url, quality, format string) (*entity.MediaInfo, error) {
	video, err := y.client.GetVideoContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}

	f, err := pickFormat(video.Formats, quality, format)
	if err != nil {
		return nil, err
	}

	streamURL, err := y.client.GetStreamURLContext(ctx, video, f)
	if err != nil {
		return nil, fmt.Errorf("get stream url: %w", err)
	}

	info := &entity.MediaInfo{
		DirectURL:       streamURL,
		Title:           video.Title,
		Author:          video.Author,
		DurationSeconds: int(video.Duration.Seconds()),
		ContentType:     f.MimeType,
		ContentLength:   f.ContentLength,
	}

	if len(video.Thumbnails) > 0 {
		info.ThumbnailURL = video.Thumbnails[0].URL
	}

	y.log.DebugContext(ctx, "resolved", "media", *info)

	return info, nil
}

// pickFormat selects a combined audio+video format matching the quality
// label and format hint, falling back to the best available.
func pickFormat(formats youtube.FormatList, quality, format string) (*youtube.Format, error) {
	candidates := formats.WithAudioChannels()

	if format != "" {
		filtered := make(youtube.FormatList, 0, len(candidates))
		for _, f := range candidates {
			if strings.Contains(f.MimeType, format) {
				filtered = append(filtered, f)
			}
		}

		if len(filtered) > 0 {
			candidates = filtered
		}
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("no playable formats")
	}

	if quality != "" && quality != "best" && quality != "worst" {
		if f := candidates.FindByQuality(quality); f != nil {
			return f, nil
		}

		return nil, fmt.Errorf("no format with quality %q", quality)
	}

	candidates.Sort()

	if quality == "worst" {
		return &candidates[len(candidates)-1], nil
	}

	return &candidates[0], nil
}
