package arbiter

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/sonicursor/core/arbiter"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	requestsResolved, _ = meter.Int64Counter("sonicursor.arbiter.requests",
		metric.WithDescription("Audio requests by how they resolved"))
)
