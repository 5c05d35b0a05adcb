// Package logging defines the minimal logger contract shared by the engine
// packages. Any value with a Printf method satisfies it, including *log.Logger.
package logging

import (
	"io"
	"log"
)

// Logger receives warnings about recoverable failures.
type Logger interface {
	Printf(format string, args ...any)
}

// Default returns the process wide standard logger.
func Default() Logger {
	return log.Default()
}

// Discard returns a logger that drops every message.
func Discard() Logger {
	return log.New(io.Discard, "", 0)
}

// Or returns logger when non-nil and Default otherwise.
func Or(logger Logger) Logger {
	if logger == nil {
		return Default()
	}
	return logger
}
