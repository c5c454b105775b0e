package labara

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Option configures a Labara client.
type Option func(*clientConfig) error

// clientConfig holds internal configuration.
type clientConfig struct {
	baseURL        string
	apiKey         string
	requestTimeout time.Duration
	fetchRetries   int

	pollInterval   time.Duration
	pollJitter     time.Duration
	maxFailedPolls int
	pollingEnabled bool

	memoizedFlags  bool
	maxCachedFlags int64

	bootstrap []byte

	logger           logrus.FieldLogger
	telemetryEnabled bool
	assignmentLogger AssignmentLogger
	httpClient       *http.Client
}

func defaultClientConfig() *clientConfig {
	return &clientConfig{
		requestTimeout: 10 * time.Second,
		fetchRetries:   1,
		pollInterval:   5 * time.Minute,
		pollJitter:     -1, // derived from interval when unset
		maxFailedPolls: 7,
		pollingEnabled: true,
		maxCachedFlags: 1024,
	}
}

// WithBaseURL sets the configuration server endpoint.
// This is required.
//
// Example: labara.WithBaseURL("https://config.example.com")
func WithBaseURL(baseURL string) Option {
	return func(c *clientConfig) error {
		if baseURL == "" {
			return fmt.Errorf("base URL cannot be empty")
		}
		c.baseURL = baseURL
		return nil
	}
}

// WithAPIKey sets the SDK key sent as a bearer token on fetches.
func WithAPIKey(apiKey string) Option {
	return func(c *clientConfig) error {
		c.apiKey = apiKey
		return nil
	}
}

// WithRequestTimeout sets the HTTP timeout for configuration fetches.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) error {
		if timeout <= 0 {
			return fmt.Errorf("request timeout must be positive")
		}
		c.requestTimeout = timeout
		return nil
	}
}

// WithHTTPClient substitutes the HTTP client used for fetches.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) error {
		if client == nil {
			return fmt.Errorf("http client cannot be nil")
		}
		c.httpClient = client
		return nil
	}
}

// WithFetchRetries sets the attempt budget for a single fetch operation.
// The default of 1 performs no retry; the budget is meant for first-load,
// periodic refresh relies on the poller's backoff instead.
func WithFetchRetries(maxRetries int) Option {
	return func(c *clientConfig) error {
		if maxRetries < 1 {
			return fmt.Errorf("fetch retries must be at least 1")
		}
		c.fetchRetries = maxRetries
		return nil
	}
}

// WithPollInterval sets how often the configuration is refreshed.
// Default: 5 minutes.
func WithPollInterval(interval time.Duration) Option {
	return func(c *clientConfig) error {
		if interval <= 0 {
			return fmt.Errorf("poll interval must be positive")
		}
		c.pollInterval = interval
		return nil
	}
}

// WithPollJitter sets the upper bound of the uniform random delay added to
// every scheduled poll. Default: a tenth of the poll interval.
func WithPollJitter(jitter time.Duration) Option {
	return func(c *clientConfig) error {
		if jitter < 0 {
			return fmt.Errorf("poll jitter cannot be negative")
		}
		c.pollJitter = jitter
		return nil
	}
}

// WithMaxFailedPolls sets how many consecutive poll failures are tolerated
// before polling stops permanently. Default: 7.
func WithMaxFailedPolls(max int) Option {
	return func(c *clientConfig) error {
		if max < 1 {
			return fmt.Errorf("max failed polls must be at least 1")
		}
		c.maxFailedPolls = max
		return nil
	}
}

// WithPollingDisabled turns off the background refresh loop. The client
// then serves the bootstrap configuration or whatever Refresh installed.
func WithPollingDisabled() Option {
	return func(c *clientConfig) error {
		c.pollingEnabled = false
		return nil
	}
}

// WithMemoizedFlags caches per-flag lookups in a ristretto-backed memo,
// bounded to maxFlags entries. Worth enabling for very large
// configurations on hot evaluation paths.
func WithMemoizedFlags(maxFlags int64) Option {
	return func(c *clientConfig) error {
		if maxFlags <= 0 {
			return fmt.Errorf("max cached flags must be positive")
		}
		c.memoizedFlags = true
		c.maxCachedFlags = maxFlags
		return nil
	}
}

// WithBootstrapConfiguration installs a previously obtained configuration
// payload before the first fetch so evaluations can start offline.
func WithBootstrapConfiguration(payload []byte) Option {
	return func(c *clientConfig) error {
		if len(payload) == 0 {
			return fmt.Errorf("bootstrap payload cannot be empty")
		}
		c.bootstrap = payload
		return nil
	}
}

// WithLogger sets the structured logger. Default: the logrus standard
// logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *clientConfig) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithTelemetry enables OpenTelemetry metrics and traces against the
// globally registered providers.
func WithTelemetry() Option {
	return func(c *clientConfig) error {
		c.telemetryEnabled = true
		return nil
	}
}

// WithAssignmentLogger registers the exposure-logging callback invoked for
// matched assignments whose allocation has DoLog set.
func WithAssignmentLogger(logger AssignmentLogger) Option {
	return func(c *clientConfig) error {
		if logger == nil {
			return fmt.Errorf("assignment logger cannot be nil")
		}
		c.assignmentLogger = logger
		return nil
	}
}
