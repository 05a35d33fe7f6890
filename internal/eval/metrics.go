package eval

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("sundance.eval")
	meter  = otel.Meter("sundance.eval")
)

var (
	runLatency metric.Float64Histogram
	runTotal   metric.Int64Counter
	pointTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runLatency, err = meter.Float64Histogram(
			"sundance_eval_duration_seconds",
			metric.WithDescription("Duration of one batch evaluation"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runTotal, err = meter.Int64Counter(
			"sundance_eval_runs_total",
			metric.WithDescription("Total number of batch evaluations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		pointTotal, err = meter.Int64Counter(
			"sundance_eval_points_total",
			metric.WithDescription("Total number of quadrature points evaluated"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordRunMetrics(ctx context.Context, label string, duration time.Duration, points int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("context", label),
		attribute.Bool("success", success),
	)
	runLatency.Record(ctx, duration.Seconds(), attrs)
	runTotal.Add(ctx, 1, attrs)
	if success {
		pointTotal.Add(ctx, int64(points), attrs)
	}
}

func startRunSpan(ctx context.Context, label string, root string, points int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "eval.Run",
		trace.WithAttributes(
			attribute.String("eval.context", label),
			attribute.String("eval.root", root),
			attribute.Int("eval.points", points),
		),
	)
}
