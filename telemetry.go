package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	prometheusotel "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type telemetry struct {
	enabled bool
	logger  *slog.Logger

	registry       *prometheus.Registry
	metricsHandler http.Handler

	httpRequests    metric.Int64Counter
	httpErrors      metric.Int64Counter
	httpLatency     metric.Float64Histogram
	documents       metric.Int64Counter
	tokens          metric.Int64Counter
	analysisLatency metric.Float64Histogram

	profileGauge prometheus.Gauge
}

func newTelemetry(ctx context.Context, logger *slog.Logger, enabled bool) *telemetry {
	t := &telemetry{enabled: enabled, logger: logger}
	if !enabled {
		return t
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	exporter, err := prometheusotel.New(prometheusotel.WithRegisterer(registry))
	if err != nil {
		logger.Error("failed to initialize prometheus exporter", "error", err)
		t.enabled = false
		return t
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter("lexis")

	httpReq, _ := meter.Int64Counter("http_requests_total", metric.WithDescription("Total HTTP requests"))
	httpErr, _ := meter.Int64Counter("http_errors_total", metric.WithDescription("HTTP requests that returned an error status"))
	httpLatency, _ := meter.Float64Histogram("http_request_duration_ms", metric.WithDescription("Latency of HTTP requests in milliseconds"), metric.WithUnit("ms"))
	documents, _ := meter.Int64Counter("documents_analyzed_total", metric.WithDescription("Documents run through an analysis profile"))
	tokens, _ := meter.Int64Counter("tokens_emitted_total", metric.WithDescription("Tokens produced after filtering"))
	analysisLatency, _ := meter.Float64Histogram("analysis_latency_ms", metric.WithDescription("Latency of analyzing one document"), metric.WithUnit("ms"))

	profileGauge := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "lexis", Name: "profiles", Help: "Analysis profiles currently registered"})
	registry.MustRegister(profileGauge)

	t.registry = registry
	t.metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	t.httpRequests = httpReq
	t.httpErrors = httpErr
	t.httpLatency = httpLatency
	t.documents = documents
	t.tokens = tokens
	t.analysisLatency = analysisLatency
	t.profileGauge = profileGauge

	t.logger.Info("telemetry initialized", "prometheus", true)
	t.documents.Add(ctx, 0) // ensure metric is created eagerly
	return t
}

func (t *telemetry) recordRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	if t == nil || !t.enabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)
	t.httpRequests.Add(ctx, 1, attrs)
	t.httpLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if status >= http.StatusBadRequest {
		t.httpErrors.Add(ctx, 1, attrs)
	}
}

func (t *telemetry) recordAnalysis(ctx context.Context, profileName string, tokens int, duration time.Duration) {
	if t == nil || !t.enabled {
		return
	}

	attrs := metric.WithAttributes(attribute.String("profile", profileName))
	t.documents.Add(ctx, 1, attrs)
	t.tokens.Add(ctx, int64(tokens), attrs)
	t.analysisLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (t *telemetry) observeProfiles(count int) {
	if t == nil || !t.enabled {
		return
	}
	t.profileGauge.Set(float64(count))
}

func (t *telemetry) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if t == nil || !t.enabled || t.registry == nil {
		respond(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}

	t.metricsHandler.ServeHTTP(w, r)
}
