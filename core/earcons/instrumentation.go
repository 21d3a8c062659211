package earcons

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/sonicursor/core/earcons"

var logger = otelslog.NewLogger(scopeName)
