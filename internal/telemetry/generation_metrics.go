package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	generationSubmitCounter metric.Int64Counter
	generationDoneCounter   metric.Int64Counter
	creditRefundCounter     metric.Int64Counter
)

// InitGenerationMetrics initializes generation-related metrics
func InitGenerationMetrics() error {
	meter := otel.Meter("decorly.generation")

	var err error

	generationSubmitCounter, err = meter.Int64Counter(
		"generation.submit.count",
		metric.WithDescription("Number of generation jobs submitted"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return err
	}

	generationDoneCounter, err = meter.Int64Counter(
		"generation.done.count",
		metric.WithDescription("Number of generation jobs reaching a terminal state"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return err
	}

	creditRefundCounter, err = meter.Int64Counter(
		"credits.refund.count",
		metric.WithDescription("Number of credit refunds issued for failed jobs"),
		metric.WithUnit("{refund}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// GenerationSubmitted records one accepted submission
func GenerationSubmitted(ctx context.Context) {
	if generationSubmitCounter != nil {
		generationSubmitCounter.Add(ctx, 1)
	}
}

// GenerationCompleted records one job reaching completed
func GenerationCompleted(ctx context.Context) {
	if generationDoneCounter != nil {
		generationDoneCounter.Add(ctx, 1,
			metric.WithAttributes(attribute.String("status", "completed")),
		)
	}
}

// GenerationFailed records one job reaching failed, which always carries a
// refund with it.
func GenerationFailed(ctx context.Context) {
	if generationDoneCounter != nil {
		generationDoneCounter.Add(ctx, 1,
			metric.WithAttributes(attribute.String("status", "failed")),
		)
	}
	if creditRefundCounter != nil {
		creditRefundCounter.Add(ctx, 1)
	}
}
