// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level string
	JSON  bool
}

// New returns a zerolog logger writing to stderr. Unknown levels fall back to
// info.
func New(cfg Config) zerolog.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

func NewWithWriter(cfg Config, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := w
	if !cfg.JSON {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
