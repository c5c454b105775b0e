package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNoop(t *testing.T) {
	p := NewNoop()
	ctx := context.Background()

	p.RecordEvaluation(ctx, "checkout-flow", "MATCH")
	p.RecordFetch(ctx, true, time.Millisecond)
	p.RecordPollFailure(ctx)

	spanCtx, end := p.StartFetchSpan(ctx)
	assert.Equal(t, ctx, spanCtx)
	end(nil)
	end(errors.New("boom"))
}

func TestOTelProvider_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(meterProvider)
	defer func() { _ = meterProvider.Shutdown(context.Background()) }()

	p, err := NewOTel()
	require.NoError(t, err)

	ctx := context.Background()
	p.RecordEvaluation(ctx, "checkout-flow", "MATCH")
	p.RecordEvaluation(ctx, "checkout-flow", "DEFAULT_ALLOCATION_NULL")
	p.RecordFetch(ctx, true, 42*time.Millisecond)
	p.RecordFetch(ctx, false, 100*time.Millisecond)
	p.RecordPollFailure(ctx)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	recorded := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			recorded[m.Name] = m
		}
	}

	require.Contains(t, recorded, "labara.evaluations")
	evals, ok := recorded["labara.evaluations"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, evals.DataPoints, 2)

	require.Contains(t, recorded, "labara.fetch.duration")
	require.Contains(t, recorded, "labara.fetch.success")
	require.Contains(t, recorded, "labara.fetch.failure")
	require.Contains(t, recorded, "labara.poll.failure")

	pollFailures, ok := recorded["labara.poll.failure"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, pollFailures.DataPoints, 1)
	assert.Equal(t, int64(1), pollFailures.DataPoints[0].Value)
}

func TestOTelProvider_FetchSpan(t *testing.T) {
	p, err := NewOTel()
	require.NoError(t, err)

	ctx, end := p.StartFetchSpan(context.Background())
	assert.NotNil(t, ctx)
	end(errors.New("boom"))
}
