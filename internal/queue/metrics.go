package queue

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Publishes `evaluator.jobs{state}` from Counts on every metric collection
func RegisterMetrics(q Queuer) (metric.Registration, error) {
	meter := otel.Meter("github.com/mitesh006/Code-duel-backend/internal/queue")

	gauge, err := meter.Int64ObservableGauge(
		"evaluator.jobs",
		metric.WithDescription("Jobs in the queue by state"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}

	return meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		counts, err := q.Counts(ctx)
		if err != nil {
			return err
		}
		for state, n := range counts {
			o.ObserveInt64(gauge, n, metric.WithAttributes(attribute.String("state", string(state))))
		}
		return nil
	}, gauge)
}
