package arbiter

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Stats counts what happened to submitted requests.
type Stats struct {
	Submitted     int
	Started       int
	Completed     int
	Cancelled     int
	Dropped       int
	Failed        int
	Preemptions   int
	GraceTimeouts int
	Flushes       int
	Suppressed    int
}

func (s *Stats) record(result Result) {
	switch result {
	case Completed:
		s.Completed++
	case Cancelled:
		s.Cancelled++
	case Dropped:
		s.Dropped++
	case Failed:
		s.Failed++
	}
}

func recordResult(ctx context.Context, h *Handle, result Result) {
	requestsResolved.Add(ctx, 1, metric.WithAttributes(
		attribute.String("request.kind", h.Kind.String()),
		attribute.String("request.result", result.String()),
	))
}
