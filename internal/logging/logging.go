// Package logging builds the application's structured logger.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// New creates a [log.Logger] writing to w with timestamps enabled.
//
// Development mode logs at debug level and reports callers; production logs
// at info level. A non-empty level (debug, info, warn, error) overrides both.
// The writer defaults to [os.Stderr].
func New(w io.Writer, environment, level string) *log.Logger {
	if w == nil {
		w = os.Stderr
	}

	development := environment != "production"
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		ReportCaller:    development,
	})

	ll := log.InfoLevel
	if development {
		ll = log.DebugLevel
	}
	if level != "" {
		if parsed, err := log.ParseLevel(level); err == nil {
			ll = parsed
		} else {
			logger.Warn("unknown log level, keeping default", "level", level)
		}
	}
	logger.SetLevel(ll)

	return logger
}

// With creates a child [log.Logger] with the key-value pairs added to all entries.
func With(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}
