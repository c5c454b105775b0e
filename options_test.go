package labara

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base URL")

	// Polling disabled alone is not enough; something must provide flags.
	_, err = New(WithPollingDisabled())
	assert.Error(t, err)
}

func TestOptionValidation(t *testing.T) {
	tests := []struct {
		name   string
		option Option
	}{
		{"empty base URL", WithBaseURL("")},
		{"zero request timeout", WithRequestTimeout(0)},
		{"negative request timeout", WithRequestTimeout(-time.Second)},
		{"nil http client", WithHTTPClient(nil)},
		{"zero fetch retries", WithFetchRetries(0)},
		{"zero poll interval", WithPollInterval(0)},
		{"negative poll jitter", WithPollJitter(-time.Second)},
		{"zero max failed polls", WithMaxFailedPolls(0)},
		{"zero cached flags", WithMemoizedFlags(0)},
		{"empty bootstrap", WithBootstrapConfiguration(nil)},
		{"nil logger", WithLogger(nil)},
		{"nil assignment logger", WithAssignmentLogger(nil)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(WithBaseURL("http://localhost:0"), tc.option)
			assert.Error(t, err)
		})
	}
}

func TestOptionsApply(t *testing.T) {
	cfg := defaultClientConfig()

	opts := []Option{
		WithBaseURL("https://config.example.com"),
		WithAPIKey("sdk-key"),
		WithRequestTimeout(3 * time.Second),
		WithFetchRetries(4),
		WithPollInterval(time.Minute),
		WithPollJitter(5 * time.Second),
		WithMaxFailedPolls(3),
		WithMemoizedFlags(256),
		WithLogger(logrus.New()),
		WithTelemetry(),
	}
	for _, opt := range opts {
		require.NoError(t, opt(cfg))
	}

	assert.Equal(t, "https://config.example.com", cfg.baseURL)
	assert.Equal(t, "sdk-key", cfg.apiKey)
	assert.Equal(t, 3*time.Second, cfg.requestTimeout)
	assert.Equal(t, 4, cfg.fetchRetries)
	assert.Equal(t, time.Minute, cfg.pollInterval)
	assert.Equal(t, 5*time.Second, cfg.pollJitter)
	assert.Equal(t, 3, cfg.maxFailedPolls)
	assert.True(t, cfg.memoizedFlags)
	assert.Equal(t, int64(256), cfg.maxCachedFlags)
	assert.NotNil(t, cfg.logger)
	assert.True(t, cfg.telemetryEnabled)
}

func TestDefaultClientConfig(t *testing.T) {
	cfg := defaultClientConfig()

	assert.Equal(t, 10*time.Second, cfg.requestTimeout)
	assert.Equal(t, 1, cfg.fetchRetries)
	assert.Equal(t, 5*time.Minute, cfg.pollInterval)
	assert.Equal(t, 7, cfg.maxFailedPolls)
	assert.True(t, cfg.pollingEnabled)
	assert.False(t, cfg.memoizedFlags)
}

func TestWithPollingDisabled(t *testing.T) {
	cfg := defaultClientConfig()
	require.NoError(t, WithPollingDisabled()(cfg))
	assert.False(t, cfg.pollingEnabled)
}
