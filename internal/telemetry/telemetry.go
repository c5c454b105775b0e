// Package telemetry reports evaluation and configuration-lifecycle
// metrics through OpenTelemetry. The evaluation path records one counter
// increment per call; the fetch path records spans and durations.
package telemetry

import (
	"context"
	"time"
)

// Provider is the telemetry surface the engine depends on.
type Provider interface {
	// RecordEvaluation counts one flag evaluation with its outcome code.
	RecordEvaluation(ctx context.Context, flagKey, code string)

	// RecordFetch records the outcome and duration of one configuration
	// fetch.
	RecordFetch(ctx context.Context, success bool, duration time.Duration)

	// RecordPollFailure counts one failed poll cycle.
	RecordPollFailure(ctx context.Context)

	// StartFetchSpan opens a trace span around a configuration fetch.
	// The returned func ends the span, recording err when non-nil.
	StartFetchSpan(ctx context.Context) (context.Context, func(err error))
}

// Noop discards everything. Used when telemetry is disabled.
type Noop struct{}

// NewNoop returns the disabled provider.
func NewNoop() Noop {
	return Noop{}
}

func (Noop) RecordEvaluation(context.Context, string, string) {}

func (Noop) RecordFetch(context.Context, bool, time.Duration) {}

func (Noop) RecordPollFailure(context.Context) {}
func (Noop) StartFetchSpan(ctx context.Context) (context.Context, func(error)) {
	return ctx, func(error) {}
}
