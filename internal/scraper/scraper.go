// Path: internal/scraper/scraper.go
package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"viral-scout/internal/config"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// emptyObject is what a degraded request returns.
var emptyObject = json.RawMessage(`{}`)

// errThrottled marks an attempt that may be retried after a backoff.
var errThrottled = errors.New("throttled")

// Fetcher issues rate-limited GET requests against the search API.
// A Fetcher owns one transport; create it at the start of a run and Close
// it at the end so pooled connections are released.
type Fetcher struct {
	baseURL   string
	transport *http.Transport
	client    *http.Client
	limiter   *rate.Limiter
	conns     *semaphore.Weighted
	timeout   time.Duration
	retries   int
	backoff   time.Duration
	logger    *zap.Logger

	// wait blocks between attempts; replaced in tests.
	wait func(ctx context.Context, d time.Duration) error
}

// NewFetcher creates and configures a new Fetcher.
func NewFetcher(cfg config.FetcherConfig, logger *zap.Logger) *Fetcher {
	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 20
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.BurstLimit
	if burst <= 0 {
		burst = maxConns
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxConnsPerHost = maxConns
	transport.MaxIdleConnsPerHost = maxConns

	return &Fetcher{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		transport: transport,
		client:    &http.Client{Transport: transport},
		limiter:   rate.NewLimiter(limit, burst),
		conns:     semaphore.NewWeighted(int64(maxConns)),
		timeout:   cfg.Timeout(),
		retries:   retries,
		backoff:   cfg.Backoff(),
		logger:    logger,
		wait:      sleep,
	}
}

// Close releases the pooled connections held by the fetcher.
func (f *Fetcher) Close() {
	f.transport.CloseIdleConnections()
}

// Fetch GETs endpoint (relative to the base URL) with params and returns the
// JSON body. Throttling (403/429), 5xx and timeouts are retried with a
// linear backoff; any other failure, or an exhausted retry budget, yields an
// empty JSON object. Fetch never returns an error.
func (f *Fetcher) Fetch(ctx context.Context, endpoint string, params url.Values) json.RawMessage {
	target := f.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			if err := f.wait(ctx, f.backoff*time.Duration(attempt)); err != nil {
				lastErr = err
				break
			}
		}

		body, err := f.attempt(ctx, target)
		if err == nil {
			return body
		}
		lastErr = err
		if !errors.Is(err, errThrottled) {
			break
		}
	}

	f.logger.Warn("request degraded to empty result",
		zap.String("endpoint", endpoint),
		zap.Error(lastErr),
	)
	return emptyObject
}

// attempt performs a single request under the connection ceiling.
func (f *Fetcher) attempt(ctx context.Context, target string) (json.RawMessage, error) {
	if err := f.conns.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer f.conns.Release(1)

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: request timed out", errThrottled)
		}
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: response timed out", errThrottled)
		}
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		if !json.Valid(body) {
			return nil, errors.New("response body is not valid JSON")
		}
		return body, nil
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: status code %d", errThrottled, resp.StatusCode)
	default:
		return nil, fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, snippet(body))
	}
}

func snippet(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
