// Package obs builds the structured logger shared by the service.
package obs

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger returns a zerolog logger writing JSON to stdout. With pretty
// enabled the output goes through a human-readable console writer instead,
// which is useful in development.
func NewLogger(pretty bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var writer io.Writer = os.Stdout
	if pretty {
		writer = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(writer).With().
		Timestamp().
		Logger()
}
