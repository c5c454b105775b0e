package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	meterName  = "labara"
	tracerName = "labara"
)

// OTelProvider implements Provider using OpenTelemetry.
type OTelProvider struct {
	tracer trace.Tracer
	meter  metric.Meter

	evaluations   metric.Int64Counter
	fetchDuration metric.Float64Histogram
	fetchSuccess  metric.Int64Counter
	fetchFailure  metric.Int64Counter
	pollFailures  metric.Int64Counter
}

// NewOTel creates a provider against the globally registered meter and
// tracer providers.
func NewOTel() (*OTelProvider, error) {
	p := &OTelProvider{
		tracer: otel.Tracer(tracerName),
		meter:  otel.Meter(meterName),
	}
	if err := p.initMetrics(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *OTelProvider) initMetrics() error {
	var err error

	p.evaluations, err = p.meter.Int64Counter(
		"labara.evaluations",
		metric.WithDescription("Number of flag evaluations"),
	)
	if err != nil {
		return err
	}

	p.fetchDuration, err = p.meter.Float64Histogram(
		"labara.fetch.duration",
		metric.WithDescription("Duration of configuration fetches"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	p.fetchSuccess, err = p.meter.Int64Counter(
		"labara.fetch.success",
		metric.WithDescription("Number of successful configuration fetches"),
	)
	if err != nil {
		return err
	}

	p.fetchFailure, err = p.meter.Int64Counter(
		"labara.fetch.failure",
		metric.WithDescription("Number of failed configuration fetches"),
	)
	if err != nil {
		return err
	}

	p.pollFailures, err = p.meter.Int64Counter(
		"labara.poll.failure",
		metric.WithDescription("Number of failed poll cycles"),
	)
	if err != nil {
		return err
	}

	return nil
}

// RecordEvaluation implements Provider.
func (p *OTelProvider) RecordEvaluation(ctx context.Context, flagKey, code string) {
	p.evaluations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flag.key", flagKey),
		attribute.String("evaluation.code", code),
	))
}

// RecordFetch implements Provider.
func (p *OTelProvider) RecordFetch(ctx context.Context, success bool, duration time.Duration) {
	p.fetchDuration.Record(ctx, float64(duration.Milliseconds()),
		metric.WithAttributes(attribute.Bool("success", success)))

	if success {
		p.fetchSuccess.Add(ctx, 1)
	} else {
		p.fetchFailure.Add(ctx, 1)
	}
}

// RecordPollFailure implements Provider.
func (p *OTelProvider) RecordPollFailure(ctx context.Context) {
	p.pollFailures.Add(ctx, 1)
}

// StartFetchSpan implements Provider.
func (p *OTelProvider) StartFetchSpan(ctx context.Context) (context.Context, func(error)) {
	ctx, span := p.tracer.Start(ctx, "labara.fetch_configuration")
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}
