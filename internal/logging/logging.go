// Package logging builds the console logger used for progress, warnings and
// the final summary.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// New returns a human-readable logger writing to out at the named level.
// Every line carries the run identifier.
func New(out io.Writer, level string, noColor bool) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	writer := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    noColor,
		TimeFormat: time.TimeOnly,
	}
	return zerolog.New(writer).
		Level(lvl).
		With().
		Timestamp().
		Str("run", NewRunID()).
		Logger(), nil
}

// NewRunID returns a short identifier for one invocation.
func NewRunID() string {
	return uuid.New().String()[:8]
}
