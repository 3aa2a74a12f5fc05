// Package logging builds the zerolog logger described by the logging config.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/fertilizer-advisor/internal/config"
)

// New returns a logger writing to cfg.Output in cfg.Format.
// Output is "stdout", "stderr" or a file path opened for appending.
func New(cfg config.LoggingConfig) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out, closer, err := openOutput(cfg.Output)
	if err != nil {
		return zerolog.Nop(), nil, err
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}

	var w io.Writer = out
	if strings.EqualFold(cfg.Format, "console") {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}
	}

	zerolog.TimeFieldFormat = timeFormat
	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openOutput(output string) (io.Writer, io.Closer, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return os.Stdout, nopCloser{}, nil
	case "stderr":
		return os.Stderr, nopCloser{}, nil
	}

	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log output %s: %w", output, err)
	}
	return f, f, nil
}
