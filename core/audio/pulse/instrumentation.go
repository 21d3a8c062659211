package pulse

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/sonicursor/core/audio/pulse"

var logger = otelslog.NewLogger(scopeName)
