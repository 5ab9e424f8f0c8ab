package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/hrm8/assistant/internal/otel"

var (
	toolDuration      metric.Float64Histogram
	toolDenied        metric.Int64Counter
	metricsOnce       sync.Once
	metricsRegistered bool
)

func initMetrics() {
	meter := otel.Meter(meterName)
	var err error
	toolDuration, err = meter.Float64Histogram(
		"assistant.tool.duration",
		metric.WithDescription("Wall-clock duration of tool executions"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return
	}
	toolDenied, err = meter.Int64Counter(
		"assistant.tool.denied",
		metric.WithDescription("Tool executions refused by access policy"),
	)
	if err != nil {
		return
	}
	metricsRegistered = true
}

// RecordToolExecution records one tool run on the duration histogram.
func RecordToolExecution(ctx context.Context, tool, level string, success bool, durationMS int64) {
	metricsOnce.Do(initMetrics)
	if !metricsRegistered {
		return
	}
	toolDuration.Record(ctx, float64(durationMS), metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("access_level", level),
		attribute.Bool("success", success),
	))
}

// RecordToolDenied counts a refused tool execution.
func RecordToolDenied(ctx context.Context, tool, level, reason string) {
	metricsOnce.Do(initMetrics)
	if !metricsRegistered {
		return
	}
	toolDenied.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("access_level", level),
		attribute.String("reason", reason),
	))
}
