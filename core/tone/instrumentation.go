package tone

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/sonicursor/core/tone"

var logger = otelslog.NewLogger(scopeName)
