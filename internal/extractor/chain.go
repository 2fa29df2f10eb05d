package extractor

import (
	"context"
	"fmt"
	"log/slog"

	"vidgate/internal/entity"
	"vidgate/internal/errs"
)

// Chain tries an ordered list of extraction strategies; the first
// accepted result wins. A result is accepted when it carries a direct
// URL and a non-sentinel title.
type Chain struct {
	log     *slog.Logger
	clients []Client
}

// NewChain builds an extraction chain over the given strategies.
func NewChain(log *slog.Logger, clients ...Client) *Chain {
	return &Chain{
		log:     log.With(slog.String("package", "extractor")),
		clients: clients,
	}
}

func (c *Chain) Resolve(ctx context.Context, url, quality, format string) (*entity.MediaInfo, error) {
	var lastErr error

	for i, client := range c.clients {
		info, err := client.Resolve(ctx, url, quality, format)
		if err != nil {
			lastErr = err
			c.log.DebugContext(ctx, "extraction strategy failed",
				slog.Int("strategy", i), slog.Any("error", err))

			if ctx.Err() != nil {
				return nil, err
			}

			continue
		}

		if !accepted(info) {
			c.log.DebugContext(ctx, "extraction strategy returned sentinel result", slog.Int("strategy", i))

			continue
		}

		return info, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}

	return nil, fmt.Errorf("%w: no strategy produced a result", errs.ErrExtractionFailed)
}

func accepted(info *entity.MediaInfo) bool {
	return info != nil && info.DirectURL != "" && info.Title != ""
}
