// Package logging builds the charmbracelet/log logger shared by tada.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// Options select where and how log lines are written.
type Options struct {
	Level  string
	Format string
	// File receives log output when set. Otherwise output goes to Fallback.
	File     string
	Fallback io.Writer
}

// New returns a logger and a closer for any file it opened.
func New(opts Options) (*log.Logger, io.Closer, error) {
	var (
		w      io.Writer = opts.Fallback
		closer io.Closer = nopCloser{}
	)
	if w == nil {
		w = io.Discard
	}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           ParseLevel(opts.Level),
		Formatter:       ParseFormatter(opts.Format),
		ReportTimestamp: opts.File != "",
		Prefix:          "tada",
	})
	return logger, closer, nil
}

// ParseLevel maps a level name to a log.Level, defaulting to info.
// "warning" is accepted as an alias of warn.
func ParseLevel(level string) log.Level {
	level = strings.TrimSpace(level)
	if strings.EqualFold(level, "warning") {
		level = "warn"
	}
	l, err := log.ParseLevel(level)
	if err != nil {
		return log.InfoLevel
	}
	return l
}

// ParseFormatter maps a format name to a log.Formatter, defaulting to text.
func ParseFormatter(format string) log.Formatter {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
