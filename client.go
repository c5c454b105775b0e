// Package labara is a client-side feature-flag and experiment-assignment
// engine. Given a cached configuration of flags, targeting rules and
// traffic allocations, it deterministically decides which variation a
// subject receives and explains the decision. The same configuration and
// subject always produce the identical result, across every client
// implementation of the protocol.
package labara

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/labara-io/labara-go/internal/domain"
	"github.com/labara-io/labara-go/internal/evaluator"
	"github.com/labara-io/labara-go/internal/poller"
	"github.com/labara-io/labara-go/internal/requester"
	"github.com/labara-io/labara-go/internal/store"
	"github.com/labara-io/labara-go/internal/telemetry"
)

// Client is the main entry point for Labara. Evaluation calls are pure
// reads against the current configuration snapshot and are safe to run
// from any goroutine; a background poller keeps the snapshot fresh.
type Client struct {
	store        *store.Store
	source       store.FlagSource
	cachedSource *store.CachedSource
	evaluator    *evaluator.Evaluator
	requester    *requester.Requester
	poller       *poller.Poller

	logger           logrus.FieldLogger
	telemetry        telemetry.Provider
	assignmentLogger AssignmentLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	lastFetchErr error
}

// New creates a new Labara client with the given options.
//
// Example:
//
//	client, err := labara.New(
//	    labara.WithBaseURL("https://config.example.com"),
//	    labara.WithAPIKey("sdk-key"),
//	    labara.WithPollInterval(5 * time.Minute),
//	)
func New(opts ...Option) (*Client, error) {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.baseURL == "" && (cfg.bootstrap == nil || cfg.pollingEnabled) {
		return nil, fmt.Errorf("base URL is required unless polling is disabled and a bootstrap configuration is provided")
	}

	logger := cfg.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	var tel telemetry.Provider = telemetry.NewNoop()
	if cfg.telemetryEnabled {
		otelProvider, err := telemetry.NewOTel()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		tel = otelProvider
	}

	c := &Client{
		store:            store.New(),
		evaluator:        evaluator.New(),
		logger:           logger,
		telemetry:        tel,
		assignmentLogger: cfg.assignmentLogger,
	}
	c.source = c.store

	if cfg.memoizedFlags {
		cached, err := store.NewCachedSource(c.store, cfg.maxCachedFlags)
		if err != nil {
			return nil, fmt.Errorf("failed to build flag memo: %w", err)
		}
		c.cachedSource = cached
		c.source = cached
	}

	if cfg.bootstrap != nil {
		bootCfg, err := requester.ParseConfiguration(cfg.bootstrap)
		if err != nil {
			return nil, fmt.Errorf("invalid bootstrap configuration: %w", err)
		}
		c.store.Set(bootCfg)
	}

	if cfg.baseURL != "" {
		c.requester = requester.New(requester.Config{
			BaseURL:    cfg.baseURL,
			APIKey:     cfg.apiKey,
			Timeout:    cfg.requestTimeout,
			MaxRetries: cfg.fetchRetries,
			HTTPClient: cfg.httpClient,
			Logger:     logger,
			Telemetry:  tel,
		})
	}

	if cfg.pollingEnabled && c.requester != nil {
		pollerOpts := []poller.Option{
			poller.WithInterval(cfg.pollInterval),
			poller.WithMaxFailedPolls(cfg.maxFailedPolls),
			poller.WithLogger(logger),
		}
		if cfg.pollJitter >= 0 {
			pollerOpts = append(pollerOpts, poller.WithJitter(cfg.pollJitter))
		}
		c.poller = poller.New(c.refreshOnce, pollerOpts...)
	}

	return c, nil
}

// Start loads the initial configuration and begins background polling.
// When the initial fetch fails and no bootstrap snapshot is available,
// Start returns the fetch error; polling continues regardless, governed by
// the poller's backoff and failure ceiling.
func (c *Client) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	if c.poller != nil {
		c.poller.Start()
	} else if c.requester != nil && !c.store.Initialized() {
		if err := c.Refresh(c.ctx); err != nil {
			return err
		}
	}

	if !c.store.Initialized() {
		if err := c.lastError(); err != nil {
			return err
		}
		return domain.NewConfigurationError("no configuration available after start", nil)
	}

	return nil
}

// Refresh fetches a configuration snapshot immediately, independent of the
// polling schedule. A manual refresh racing the poller is safe: both end
// in an atomic snapshot swap, last writer wins.
func (c *Client) Refresh(ctx context.Context) error {
	if c.requester == nil {
		return domain.NewConfigurationError("no endpoint configured", nil)
	}

	cfg, err := c.requester.FetchConfiguration(ctx)
	if err != nil {
		c.setLastError(err)
		return err
	}

	c.store.Set(cfg)
	c.setLastError(nil)
	return nil
}

// Stop cancels background polling. Evaluations keep serving the last
// installed snapshot. Stop is idempotent.
func (c *Client) Stop() {
	if c.poller != nil {
		c.poller.Stop()
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.cachedSource != nil {
		c.cachedSource.Close()
	}
}

// Initialized reports whether a non-empty configuration has ever been
// installed.
func (c *Client) Initialized() bool {
	return c.store.Initialized()
}

// Evaluate performs a full flag evaluation and returns detailed results,
// including per-allocation diagnostics. Unknown flags and non-matches are
// not errors; they come back as evaluation codes on the details.
func (c *Client) Evaluate(ctx context.Context, flagKey, subjectKey string, attrs Attributes) (*AssignmentDetails, error) {
	if flagKey == "" {
		return nil, fmt.Errorf("flag key cannot be empty")
	}
	if subjectKey == "" {
		return nil, fmt.Errorf("subject key cannot be empty")
	}

	cfg := c.store.Get()
	if cfg == nil {
		return nil, domain.NewConfigurationError("no configuration available", nil)
	}

	subjectAttrs := domain.SubjectAttributes(attrs)

	var result domain.FlagEvaluation
	if flag, ok := c.source.GetFlag(flagKey); ok {
		result = c.evaluator.Evaluate(flag, flagKey, subjectKey, subjectAttrs, cfg.Obfuscated)
	} else {
		result = c.evaluator.UnrecognizedFlag(flagKey, subjectKey, subjectAttrs)
	}

	c.telemetry.RecordEvaluation(ctx, flagKey, string(result.Code))
	c.logAssignment(result)

	return toDetails(result), nil
}

// BoolAssignment evaluates a boolean flag, falling back to defaultValue
// on any non-match, type mismatch or assignment error.
func (c *Client) BoolAssignment(ctx context.Context, flagKey, subjectKey string, attrs Attributes, defaultValue bool) bool {
	details := c.matchedDetails(ctx, flagKey, subjectKey, attrs, BooleanType)
	if details == nil {
		return defaultValue
	}
	if v, ok := details.Value.(bool); ok {
		return v
	}
	return defaultValue
}

// IntAssignment evaluates an integer flag, falling back to defaultValue
// on any non-match, type mismatch or assignment error.
func (c *Client) IntAssignment(ctx context.Context, flagKey, subjectKey string, attrs Attributes, defaultValue int64) int64 {
	details := c.matchedDetails(ctx, flagKey, subjectKey, attrs, IntegerType)
	if details == nil {
		return defaultValue
	}
	if v, ok := details.Value.(int64); ok {
		return v
	}
	return defaultValue
}

// NumericAssignment evaluates a numeric flag, falling back to defaultValue
// on any non-match, type mismatch or assignment error.
func (c *Client) NumericAssignment(ctx context.Context, flagKey, subjectKey string, attrs Attributes, defaultValue float64) float64 {
	details := c.matchedDetails(ctx, flagKey, subjectKey, attrs, NumericType)
	if details == nil {
		return defaultValue
	}
	if v, ok := details.Value.(float64); ok {
		return v
	}
	return defaultValue
}

// StringAssignment evaluates a string flag, falling back to defaultValue
// on any non-match, type mismatch or assignment error.
func (c *Client) StringAssignment(ctx context.Context, flagKey, subjectKey string, attrs Attributes, defaultValue string) string {
	details := c.matchedDetails(ctx, flagKey, subjectKey, attrs, StringType)
	if details == nil {
		return defaultValue
	}
	if v, ok := details.Value.(string); ok {
		return v
	}
	return defaultValue
}

// JSONAssignment evaluates a JSON flag and parses its serialized document,
// falling back to defaultValue on any non-match, type mismatch, assignment
// error or parse failure.
func (c *Client) JSONAssignment(ctx context.Context, flagKey, subjectKey string, attrs Attributes, defaultValue map[string]any) map[string]any {
	details := c.matchedDetails(ctx, flagKey, subjectKey, attrs, JSONType)
	if details == nil {
		return defaultValue
	}
	raw, ok := details.Value.(string)
	if !ok {
		return defaultValue
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return defaultValue
	}
	return parsed
}

// matchedDetails evaluates and keeps only matched results of the expected
// type; everything else folds into the caller's default.
func (c *Client) matchedDetails(ctx context.Context, flagKey, subjectKey string, attrs Attributes, expected VariationType) *AssignmentDetails {
	details, err := c.Evaluate(ctx, flagKey, subjectKey, attrs)
	if err != nil {
		c.logger.WithError(err).WithField("flag_key", flagKey).Debug("evaluation failed, serving default")
		return nil
	}
	if !details.Matched() {
		return nil
	}
	if details.VariationType != expected {
		c.logger.WithFields(logrus.Fields{
			"flag_key":  flagKey,
			"declared":  details.VariationType,
			"requested": expected,
		}).Warn("flag type mismatch, serving default")
		return nil
	}
	return details
}

func (c *Client) logAssignment(result domain.FlagEvaluation) {
	if c.assignmentLogger == nil || result.Code != domain.CodeMatch || !result.DoLog {
		return
	}

	variationKey := ""
	if result.Variation != nil {
		variationKey = result.Variation.Key
	}

	c.assignmentLogger(AssignmentEvent{
		FlagKey:           result.FlagKey,
		AllocationKey:     result.AllocationKey,
		VariationKey:      variationKey,
		SubjectKey:        result.SubjectKey,
		SubjectAttributes: Attributes(result.SubjectAttributes),
		ExtraLogging:      result.ExtraLogging,
		EntityID:          result.EntityID,
		Timestamp:         time.Now(),
	})
}

// refreshOnce is the poller callback: one fetch, one atomic snapshot swap.
func (c *Client) refreshOnce() error {
	pollID := uuid.NewString()
	logger := c.logger.WithField("poll_id", pollID)

	cfg, err := c.requester.FetchConfiguration(c.ctx)
	if err != nil {
		c.setLastError(err)
		c.telemetry.RecordPollFailure(c.ctx)
		logger.WithError(err).Warn("configuration refresh failed")
		return err
	}

	c.store.Set(cfg)
	c.setLastError(nil)
	logger.WithFields(logrus.Fields{
		"flags":      len(cfg.Flags),
		"created_at": cfg.CreatedAt,
		"obfuscated": cfg.Obfuscated,
	}).Debug("configuration refreshed")
	return nil
}

func (c *Client) setLastError(err error) {
	c.mu.Lock()
	c.lastFetchErr = err
	c.mu.Unlock()
}

func (c *Client) lastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFetchErr
}
