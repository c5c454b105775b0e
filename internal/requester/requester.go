// Package requester fetches configuration snapshots over HTTP with a
// bounded retry budget. The retry budget is meant for first-load only;
// periodic refresh relies on the poller's own backoff instead.
package requester

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/labara-io/labara-go/internal/domain"
	"github.com/labara-io/labara-go/internal/telemetry"
)

const (
	configPath = "/flag-config/v1/config"

	// baseBackoff is the wait before the second attempt; it doubles on
	// every further attempt.
	baseBackoff = 100 * time.Millisecond
)

// DefaultMaxRetries performs a single attempt with no retry.
const DefaultMaxRetries = 1

// Config holds requester configuration.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
	Logger     logrus.FieldLogger
	Telemetry  telemetry.Provider
}

// Requester fetches and decodes configuration snapshots.
type Requester struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	logger     logrus.FieldLogger
	telemetry  telemetry.Provider
}

// New creates a requester.
func New(cfg Config) *Requester {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	var tel telemetry.Provider = cfg.Telemetry
	if tel == nil {
		tel = telemetry.NewNoop()
	}

	return &Requester{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		maxRetries: maxRetries,
		logger:     logger,
		telemetry:  tel,
	}
}

// FetchConfiguration retrieves one configuration snapshot, retrying up to
// the configured budget with exponential backoff (100ms, 200ms, ...).
func (r *Requester) FetchConfiguration(ctx context.Context) (*domain.Configuration, error) {
	ctx, endSpan := r.telemetry.StartFetchSpan(ctx)
	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		cfg, err := r.fetchOnce(ctx)
		if err == nil {
			r.telemetry.RecordFetch(ctx, true, time.Since(start))
			endSpan(nil)
			return cfg, nil
		}

		lastErr = err
		r.logger.WithError(err).WithField("attempt", attempt).
			Debug("configuration fetch attempt failed")

		if attempt < r.maxRetries {
			backoff := baseBackoff << (attempt - 1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				r.telemetry.RecordFetch(ctx, false, time.Since(start))
				endSpan(ctx.Err())
				return nil, ctx.Err()
			}
		}
	}

	r.telemetry.RecordFetch(ctx, false, time.Since(start))
	endSpan(lastErr)
	return nil, domain.NewConfigurationError(
		fmt.Sprintf("fetch failed after %d attempt(s)", r.maxRetries), lastErr)
}

func (r *Requester) fetchOnce(ctx context.Context) (*domain.Configuration, error) {
	url := r.baseURL + configPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", r.apiKey))
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	return ParseConfiguration(body)
}

// HTTPError represents a non-2xx configuration response.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}
