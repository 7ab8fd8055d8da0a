// Package fetch turns a source URL and config into normalized content items.
// Three strategies (feed, api, scrape) share one interface; the Client wraps
// every strategy call with per-key rate limiting, bounded retries and a
// per-attempt timeout.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/newsflow-io/newsflow/internal/model"
)

// DefaultAttemptTimeout bounds a single fetch attempt independent of the
// retry budget.
const DefaultAttemptTimeout = 15 * time.Second

// Fetcher is one fetch strategy.
type Fetcher interface {
	Type() model.SourceType
	Fetch(ctx context.Context, src model.Source) ([]model.NormalizedContent, error)
}

// Options configure the fetch client.
type Options struct {
	HTTPClient     *http.Client
	Limiter        Limiter
	AttemptTimeout time.Duration
}

// Client dispatches sources to the registered strategy and enforces the
// admission and retry policy around it.
type Client struct {
	fetchers       map[model.SourceType]Fetcher
	limiter        Limiter
	attemptTimeout time.Duration
}

// NewClient registers the three standard strategies over a shared HTTP client.
func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultAttemptTimeout}
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = NewWindowLimiter(DefaultLimit)
	}
	timeout := opts.AttemptTimeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	c := &Client{
		fetchers:       make(map[model.SourceType]Fetcher),
		limiter:        limiter,
		attemptTimeout: timeout,
	}
	c.Register(NewFeedFetcher(hc))
	c.Register(NewAPIFetcher(hc))
	c.Register(NewScrapeFetcher(hc))
	return c
}

// Register adds or replaces the strategy for its source type.
func (c *Client) Register(f Fetcher) {
	c.fetchers[f.Type()] = f
}

// RateKey derives the limiter key for a source: the explicit key when
// configured, else the URL hostname, else the raw URL.
func RateKey(src model.Source) string {
	if src.Config.RateKey != "" {
		return src.Config.RateKey
	}
	if u, err := url.Parse(src.URL); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return src.URL
}

// Fetch runs the source's strategy through the rate limiter and retry
// executor. A denied admission surfaces as a retryable rate_limit error, so
// the backoff doubles as the wait for the next window.
func (c *Client) Fetch(ctx context.Context, src model.Source) ([]model.NormalizedContent, error) {
	fetcher, ok := c.fetchers[src.Type]
	if !ok {
		return nil, NewError(ErrUnknown, fmt.Errorf("no fetcher registered for source type %q", src.Type))
	}

	key := RateKey(src)
	perMinute := src.Config.RateLimit.RequestsPerMinute

	var items []model.NormalizedContent
	err := ExecuteWithRetry(ctx, src.Config.Retry, func(ctx context.Context) error {
		allowed, err := c.allow(ctx, key, perMinute)
		if err != nil {
			return NewError(ErrUnknown, err)
		}
		if !allowed {
			rateLimitedTotal.WithLabelValues(key).Inc()
			return NewError(ErrRateLimit, fmt.Errorf("rate limit exceeded for %s", key))
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
		defer cancel()

		got, err := fetcher.Fetch(attemptCtx, src)
		if err != nil {
			return err
		}
		items = got
		return nil
	})

	if err != nil {
		fetchTotal.WithLabelValues(string(src.Type), "error").Inc()
		fetchErrors.WithLabelValues(string(Classify(err))).Inc()
		return nil, err
	}
	fetchTotal.WithLabelValues(string(src.Type), "ok").Inc()
	return items, nil
}

func (c *Client) allow(ctx context.Context, key string, perMinute int) (bool, error) {
	if wl, ok := c.limiter.(*WindowLimiter); ok {
		return wl.AllowN(ctx, key, perMinute)
	}
	return c.limiter.Allow(ctx, key)
}

// doRequest issues req and categorizes non-2xx responses. Shared by the API
// and scrape strategies.
func doRequest(hc *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return nil, NewError(Classify(err), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, StatusError(resp.StatusCode, resp.Status)
	}
	return resp, nil
}
