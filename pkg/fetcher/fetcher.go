// Package fetcher retrieves one page of CVE records from the NVD API with
// bounded retry, rate-limit aware backoff, and payload validation.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ssn-data/nvd-etl-connector/pkg/cache"
)

// Prometheus metrics for fetch operations.
var (
	fetchAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nvd_fetch_attempts_total",
		Help: "Total fetch attempts by outcome",
	}, []string{"outcome"})

	fetchBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nvd_fetch_backoff_seconds",
		Help:    "Backoff duration between fetch attempts by error kind",
		Buckets: []float64{1, 2, 5, 10, 30, 60},
	}, []string{"error_kind"})

	fetchExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nvd_fetch_exhausted_total",
		Help: "Total fetch invocations that exhausted all attempts",
	})

	fetchRecords = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nvd_fetch_records",
		Help:    "Records returned per successful fetch",
		Buckets: []float64{0, 10, 50, 100, 500, 2000},
	})
)

// Record is one vulnerability entry as returned by the API. The schema is not
// validated; records pass through to storage as-is.
type Record = map[string]any

const (
	// DefaultUserAgent identifies the connector to the API.
	DefaultUserAgent = "SSN-ETL-Connector/1.0"

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 60 * time.Second

	// DefaultPageSize is the resultsPerPage value sent to the API.
	DefaultPageSize = 100

	// DefaultMaxAttempts bounds the retry loop.
	DefaultMaxAttempts = 3
)

// Config holds the fetcher configuration.
type Config struct {
	// BaseURL is the NVD CVE endpoint (REQUIRED).
	BaseURL string

	// APIKey is sent as the apiKey header when non-empty.
	APIKey string

	// PageSize is the resultsPerPage query parameter.
	PageSize int

	// MaxAttempts bounds the retry loop (including the first attempt).
	MaxAttempts int

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// UserAgent overrides the default User-Agent header.
	UserAgent string

	// Cache is an optional response cache. When set, a fresh cached payload
	// is served without touching the network.
	Cache *cache.Manager
}

// Fetcher retrieves vulnerability records from the NVD API.
type Fetcher struct {
	httpClient *http.Client
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// New creates a fetcher, applying defaults for unset optional fields.
func New(cfg Config) (*Fetcher, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache:  cfg.Cache,
		config: cfg,
		logger: log.With().Str("component", "fetcher").Logger(),
		sleep:  sleepContext,
	}, nil
}

// Fetch retrieves one page of records. It retries on transport failures, rate
// limiting, bad statuses, undecodable bodies, and missing fields, and returns
// ErrRetriesExhausted once the attempt budget is spent. A present-but-empty
// vulnerabilities field is a successful empty result.
func (f *Fetcher) Fetch(ctx context.Context) ([]Record, error) {
	if records, ok := f.fromCache(ctx); ok {
		return records, nil
	}

	var lastErr error
	for attempt := 1; attempt <= f.config.MaxAttempts; attempt++ {
		records, fail := f.attempt(ctx, attempt)
		if fail == nil {
			f.observeSuccess(records, attempt)
			return records, nil
		}

		f.logFailure(fail, attempt)
		fetchAttemptsTotal.WithLabelValues(string(fail.Kind)).Inc()
		lastErr = &APIError{
			StatusCode: fail.Status,
			Kind:       fail.Kind,
			Excerpt:    fail.Excerpt,
			Err:        fail.Err,
		}

		wait := backoffFor(fail, attempt)
		fetchBackoffSeconds.WithLabelValues(string(fail.Kind)).Observe(wait.Seconds())
		if err := f.sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}
	}

	fetchExhaustedTotal.Inc()
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, f.config.MaxAttempts, lastErr)
}

// attempt issues one GET request and classifies the outcome.
func (f *Fetcher) attempt(ctx context.Context, attempt int) ([]Record, *attemptFailure) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.config.BaseURL, nil)
	if err != nil {
		return nil, &attemptFailure{Kind: KindTransport, Err: err}
	}

	req.Header.Set("User-Agent", f.config.UserAgent)
	if f.config.APIKey != "" {
		req.Header.Set("apiKey", f.config.APIKey)
	}

	q := req.URL.Query()
	q.Set("resultsPerPage", strconv.Itoa(f.config.PageSize))
	req.URL.RawQuery = q.Encode()

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &attemptFailure{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		fail := &attemptFailure{Kind: KindRateLimited, Status: resp.StatusCode}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs >= 0 {
				fail.RetryAfter = time.Duration(secs) * time.Second
				fail.HasRetryAfter = true
			}
		}
		return nil, fail
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &attemptFailure{Kind: KindTransport, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &attemptFailure{
			Kind:    KindBadStatus,
			Status:  resp.StatusCode,
			Excerpt: excerpt(body),
		}
	}

	records, fail := decodePayload(body)
	if fail != nil {
		return nil, fail
	}

	f.storeCache(ctx, body)
	return records, nil
}

// decodePayload extracts the vulnerabilities field from a response body.
// A missing or null field is distinct from a present-but-empty array.
func decodePayload(body []byte) ([]Record, *attemptFailure) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &attemptFailure{Kind: KindBadPayload, Err: err}
	}

	raw, ok := payload["vulnerabilities"]
	if !ok || bytes.Equal(raw, []byte("null")) {
		return nil, &attemptFailure{Kind: KindMissingField}
	}

	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, &attemptFailure{Kind: KindBadPayload, Err: err}
	}
	return records, nil
}

func (f *Fetcher) observeSuccess(records []Record, attempt int) {
	fetchAttemptsTotal.WithLabelValues("success").Inc()
	fetchRecords.Observe(float64(len(records)))

	if len(records) == 0 {
		f.logger.Warn().Msg("No vulnerabilities found in API response")
		return
	}
	if attempt > 1 {
		f.logger.Info().
			Int("attempt", attempt).
			Int("records", len(records)).
			Msg("Fetch succeeded after retry")
	}
}

func (f *Fetcher) logFailure(fail *attemptFailure, attempt int) {
	switch fail.Kind {
	case KindTransport:
		f.logger.Error().
			Err(fail.Err).
			Int("attempt", attempt).
			Msg("API connectivity issue")
	case KindRateLimited:
		f.logger.Warn().
			Int("attempt", attempt).
			Dur("wait", backoffFor(fail, attempt)).
			Msg("Rate limited, backing off before retry")
	case KindBadStatus:
		f.logger.Error().
			Int("attempt", attempt).
			Int("status", fail.Status).
			Str("body", fail.Excerpt).
			Msg("Unexpected API response status")
	case KindBadPayload:
		f.logger.Error().
			Err(fail.Err).
			Int("attempt", attempt).
			Msg("Invalid JSON response")
	case KindMissingField:
		f.logger.Error().
			Int("attempt", attempt).
			Msg("Missing 'vulnerabilities' field in API response")
	}
}

// fromCache serves a fresh cached payload, if any. Corrupt entries fall
// through to the network path.
func (f *Fetcher) fromCache(ctx context.Context) ([]Record, bool) {
	if f.cache == nil {
		return nil, false
	}

	body, err := f.cache.Get(ctx, f.cacheKey())
	if err != nil {
		if err != cache.ErrCacheMiss {
			f.logger.Warn().Err(err).Msg("Cache get error")
		}
		return nil, false
	}

	records, fail := decodePayload(body)
	if fail != nil {
		f.logger.Warn().Str("error_kind", string(fail.Kind)).Msg("Discarding invalid cached payload")
		return nil, false
	}

	f.logger.Debug().Int("records", len(records)).Msg("Serving records from cache")
	return records, true
}

func (f *Fetcher) storeCache(ctx context.Context, body []byte) {
	if f.cache == nil {
		return
	}
	if err := f.cache.Set(ctx, f.cacheKey(), body); err != nil {
		f.logger.Warn().Err(err).Msg("Failed to cache response")
	}
}

func (f *Fetcher) cacheKey() cache.Key {
	return cache.Key{
		Endpoint: f.config.BaseURL,
		PageSize: f.config.PageSize,
	}
}

// excerpt truncates a response body for diagnostics.
func excerpt(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (f *Fetcher) SetHTTPClient(client *http.Client) {
	f.httpClient = client
}

// SetSleep replaces the backoff sleep function (for testing).
func (f *Fetcher) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	f.sleep = sleep
}
