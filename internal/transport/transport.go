package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/victornm/moviequiz/internal/errors"
	"github.com/victornm/moviequiz/internal/telemetry"
)

const maxBodySize = 32 << 20

// Fetcher is the raw transport primitive: fetch a URL and return the body.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, rawURL string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	return f(ctx, rawURL)
}

type Config struct {
	Timeout time.Duration
	// Client overrides the default http.Client, mainly for tests.
	Client *http.Client
}

// HTTPFetcher implements Fetcher over HTTP.
type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher(c Config) *HTTPFetcher {
	if c.Client != nil {
		return &HTTPFetcher{client: c.Client}
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
				MaxIdleConnsPerHost:   4,
			},
		},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	host := hostOf(rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("build request for %s", host),
			errors.WithCause(err))
	}
	req.Header.Set("Accept", "application/json, image/*;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		telemetry.UpstreamRequests.WithLabelValues(host, "error").Inc()
		return nil, errors.Transport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		telemetry.UpstreamRequests.WithLabelValues(host, "status_"+strconv.Itoa(resp.StatusCode)).Inc()
		slog.WarnContext(ctx, "transport: unexpected status",
			"host", host,
			"status", resp.StatusCode,
		)
		return nil, errors.New(errors.CodeTransport,
			errors.WithMessagef("%s returned status %d", host, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		telemetry.UpstreamRequests.WithLabelValues(host, "error").Inc()
		return nil, errors.Transport(fmt.Errorf("read body: %w", err))
	}

	telemetry.UpstreamRequests.WithLabelValues(host, "ok").Inc()
	return body, nil
}

// hostOf keeps metric labels bounded; API keys live in paths and queries.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
