package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"vidgate/internal/config"
	"vidgate/internal/errs"
	"vidgate/internal/proxymgr"
)

// transferFn opens the media body behind a resolved direct URL and
// reports its expected length. Tests substitute it to avoid network.
type transferFn func(ctx context.Context, directURL string) (io.ReadCloser, int64, error)

// statusError carries an upstream HTTP status through the error chain
// so retry decisions can classify it later.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("upstream status %d", e.code)
}

// transferKind classifies a transfer error, honoring upstream status
// codes before the generic taxonomy.
func transferKind(err error) errs.Kind {
	var se *statusError
	if errors.As(err, &se) {
		return errs.KindOfStatus(se.code)
	}

	return errs.KindOf(err)
}

// newHTTPTransfer builds the production transfer function: an HTTP
// client with connect and header timeouts from config, routed through
// the proxy rotation when one is configured.
func newHTTPTransfer(cfg *config.Config, proxyMgr *proxymgr.Manager) transferFn {
	client := &http.Client{
		Transport: &http.Transport{
			Proxy: proxyMgr.ProxyFunc(),
			DialContext: (&net.Dialer{
				Timeout: cfg.Stream.ConnectTimeout,
			}).DialContext,
			ResponseHeaderTimeout: cfg.Stream.ReadTimeout,
			DisableCompression:    true,
		},
	}

	return func(ctx context.Context, directURL string) (io.ReadCloser, int64, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, directURL, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, 0, fmt.Errorf("fetch media: %w", err)
		}

		if kind := errs.KindOfStatus(resp.StatusCode); kind != "" {
			resp.Body.Close()

			return nil, 0, fmt.Errorf("fetch media: %w", &statusError{code: resp.StatusCode})
		}

		return resp.Body, resp.ContentLength, nil
	}
}
