package observability

import (
	"context"
	"fmt"

	"github.com/liminal-ai/liminal-chat/config"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/liminal-ai/liminal-chat"

// Metrics collects authentication metrics.
type Metrics interface {
	RecordVerification(ctx context.Context, endpoint, outcome string)
	RecordJWKSFetch(ctx context.Context, endpoint, outcome string)
	RecordTokenRefresh(ctx context.Context, grant, outcome string)
}

type otelMetrics struct {
	verifications metric.Int64Counter
	fetches       metric.Int64Counter
	refreshes     metric.Int64Counter
}

// NewMetrics registers the authentication counters on provider.
func NewMetrics(provider metric.MeterProvider) (Metrics, error) {
	meter := provider.Meter(meterName)

	verifications, err := meter.Int64Counter("auth.verifications",
		metric.WithDescription("Bearer token verification attempts by key set and outcome"))
	if err != nil {
		return nil, fmt.Errorf("create verifications counter: %w", err)
	}
	fetches, err := meter.Int64Counter("auth.jwks.fetches",
		metric.WithDescription("Remote JWKS fetches by endpoint and outcome"))
	if err != nil {
		return nil, fmt.Errorf("create jwks fetch counter: %w", err)
	}
	refreshes, err := meter.Int64Counter("auth.token.refreshes",
		metric.WithDescription("Client token grants by grant type and outcome"))
	if err != nil {
		return nil, fmt.Errorf("create refresh counter: %w", err)
	}

	return &otelMetrics{
		verifications: verifications,
		fetches:       fetches,
		refreshes:     refreshes,
	}, nil
}

// NopMetrics discards everything.
func NopMetrics() Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider())
	return m
}

func (m *otelMetrics) RecordVerification(ctx context.Context, endpoint, outcome string) {
	m.verifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("outcome", outcome),
	))
}

func (m *otelMetrics) RecordJWKSFetch(ctx context.Context, endpoint, outcome string) {
	m.fetches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("outcome", outcome),
	))
}

func (m *otelMetrics) RecordTokenRefresh(ctx context.Context, grant, outcome string) {
	m.refreshes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("grant", grant),
		attribute.String("outcome", outcome),
	))
}

// NewMeterProvider returns a stdout-exporting provider when metrics are
// enabled and a no-op provider otherwise. The returned function flushes and
// stops the provider.
func NewMeterProvider(cfg config.ObservabilityConfig) (metric.MeterProvider, func(context.Context) error, error) {
	if !cfg.MetricsEnabled {
		return noop.NewMeterProvider(), func(context.Context) error { return nil }, nil
	}

	exporter, err := stdoutmetric.New()
	if err != nil {
		return nil, nil, fmt.Errorf("create stdout metric exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	return provider, provider.Shutdown, nil
}
