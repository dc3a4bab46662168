// Package fetch implements the resilient HTTP executor used for all
// provider traffic: retried, fallback-host, cache-degrading requests
// against upstreams with inconsistent uptime and DNS behavior.
package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/XavierBriggs/Argus/internal/cache"
)

const (
	defaultMaxAttempts    = 3
	defaultBackoffBase    = 200 * time.Millisecond
	defaultRequestTimeout = 8 * time.Second
	defaultCacheTTL       = 60 * time.Second
)

// Request describes one upstream call. Header and Timeout are optional.
type Request struct {
	URL     string
	Method  string
	Header  http.Header
	Timeout time.Duration
}

// FetchFailure is returned when every host/attempt combination failed and
// no cached value exists for the request's key. It aggregates the
// individual attempt errors.
type FetchFailure struct {
	URL      string
	Attempts int
	Err      error
}

func (f *FetchFailure) Error() string {
	return fmt.Sprintf("all %d fetch attempts for %s failed: %v", f.Attempts, f.URL, f.Err)
}

func (f *FetchFailure) Unwrap() error {
	return f.Err
}

// Config tunes the executor's retry and fallback behavior.
type Config struct {
	// MaxAttempts is the total attempts per host (first try + retries).
	MaxAttempts int
	// BackoffBase is the base delay for jittered exponential backoff.
	BackoffBase time.Duration
	// DefaultTimeout applies to requests that carry no explicit timeout.
	DefaultTimeout time.Duration
	// DefaultCacheTTL applies when Execute is called with ttl <= 0.
	DefaultCacheTTL time.Duration
	// FallbackHosts maps a known-flaky host to an ordered list of
	// alternates tried after the primary.
	FallbackHosts map[string][]string
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = defaultBackoffBase
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = defaultRequestTimeout
	}
	if c.DefaultCacheTTL <= 0 {
		c.DefaultCacheTTL = defaultCacheTTL
	}
	return c
}

// Executor performs resilient HTTP requests. Success is all-or-nothing per
// attempt: a 2xx response with a non-empty body. Anything else (transport
// error, timeout, non-2xx, empty body) is a failed attempt subject to the
// same retry policy. Payload shape is the caller's concern.
type Executor struct {
	config     Config
	httpClient *http.Client
	store      *cache.Store[[]byte]
	logger     *logrus.Logger
}

// NewExecutor creates an executor backed by the given cache store.
func NewExecutor(config Config, store *cache.Store[[]byte], logger *logrus.Logger) *Executor {
	return &Executor{
		config:     config.withDefaults(),
		httpClient: &http.Client{},
		store:      store,
		logger:     logger,
	}
}

// Execute runs the request against the primary host and its configured
// fallbacks, retrying each with jittered exponential backoff. A fresh
// cached success for the key short-circuits without a network call. When
// everything fails, a stale cache entry (regardless of TTL) is returned in
// degraded mode; only a total cache-less failure yields a *FetchFailure.
func (e *Executor) Execute(ctx context.Context, req Request, cacheKey string, ttl time.Duration) ([]byte, error) {
	if cacheKey == "" {
		cacheKey = req.URL
	}
	if ttl <= 0 {
		ttl = e.config.DefaultCacheTTL
	}

	if entry, fresh, ok := e.store.Get(cacheKey); ok && fresh {
		return entry.Value, nil
	}

	candidates := e.candidateURLs(req.URL)

	var attemptErrs *multierror.Error
	attempts := 0

	for _, candidate := range candidates {
		for attempt := 0; attempt < e.config.MaxAttempts; attempt++ {
			if attempt > 0 {
				if err := e.backoff(ctx, attempt); err != nil {
					attemptErrs = multierror.Append(attemptErrs, err)
					return e.degrade(cacheKey, req.URL, attempts, attemptErrs)
				}
			}
			attempts++

			body, err := e.doRequest(ctx, req, candidate)
			if err == nil {
				e.store.Set(cacheKey, body, ttl)
				return body, nil
			}

			attemptErrs = multierror.Append(attemptErrs,
				fmt.Errorf("%s attempt %d: %w", candidate, attempt+1, err))

			e.logger.WithFields(logrus.Fields{
				"url":     candidate,
				"attempt": attempt + 1,
			}).Debug("fetch attempt failed")
		}
	}

	return e.degrade(cacheKey, req.URL, attempts, attemptErrs)
}

// degrade serves the stale cache entry if one exists, otherwise fails.
func (e *Executor) degrade(cacheKey, requestURL string, attempts int, attemptErrs *multierror.Error) ([]byte, error) {
	if entry, ok := e.store.GetStale(cacheKey); ok {
		e.logger.WithFields(logrus.Fields{
			"url":       requestURL,
			"cache_key": cacheKey,
			"cached_at": entry.Timestamp,
			"attempts":  attempts,
		}).Warn("all hosts failed, serving stale cached response")
		return entry.Value, nil
	}

	return nil, &FetchFailure{
		URL:      requestURL,
		Attempts: attempts,
		Err:      attemptErrs.ErrorOrNil(),
	}
}

// candidateURLs returns the request URL followed by the same URL rewritten
// onto each configured fallback host, primary first.
func (e *Executor) candidateURLs(rawURL string) []string {
	urls := []string{rawURL}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return urls
	}

	for _, host := range e.config.FallbackHosts[parsed.Host] {
		alt := *parsed
		alt.Host = host
		urls = append(urls, alt.String())
	}
	return urls
}

// backoff sleeps base * 2^attempt * (0.5 + rand*0.5), honoring ctx.
func (e *Executor) backoff(ctx context.Context, attempt int) error {
	jitter := 0.5 + rand.Float64()*0.5
	delay := time.Duration(float64(e.config.BackoffBase) * float64(int(1)<<uint(attempt)) * jitter)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// doRequest performs a single attempt against one candidate URL.
func (e *Executor) doRequest(ctx context.Context, req Request, candidateURL string) ([]byte, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.config.DefaultTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, method, candidateURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	return body, nil
}
