// Package logging configures the process-wide logger.
package logging

import (
	"strings"

	"github.com/phuslu/log"
)

// Setup configures log.DefaultLogger. Console mode writes colorized
// human-readable lines for interactive runs; otherwise output is JSON.
func Setup(level string, console bool) {
	log.DefaultLogger.Level = parseLevel(level)
	if console {
		log.DefaultLogger.Writer = &log.ConsoleWriter{
			ColorOutput:    true,
			EndWithMessage: true,
		}
	}
}

func parseLevel(s string) log.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return log.TraceLevel
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
