package playback

import (
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/koscakluka/sonicursor/core/playback"

var tracer = otel.Tracer(scopeName)
