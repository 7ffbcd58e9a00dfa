// Package logger builds the process logger. Output goes to stderr by default
// because stdout carries the MCP stdio transport.
package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const prefix = "changedetection-mcp"

// Options configures New.
type Options struct {
	Level  string
	Format string // "json" or "text"
	Debug  bool   // forces debug level and caller reporting
	Output io.Writer
}

// New builds a structured logger from opts.
func New(opts Options) (*log.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	logOpts := log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          prefix,
		ReportCaller:    opts.Debug,
	}
	switch strings.ToLower(opts.Format) {
	case "", "json":
		logOpts.Formatter = log.JSONFormatter
	case "text":
		logOpts.Formatter = log.TextFormatter
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	logger := log.NewWithOptions(out, logOpts)
	if opts.Debug {
		level = log.DebugLevel
	}
	logger.SetLevel(level)
	return logger, nil
}

// ParseLevel accepts the usual level names plus the WARNING and CRITICAL
// aliases operators carry over from other tooling. Empty means info.
func ParseLevel(s string) (log.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return log.InfoLevel, nil
	case "WARNING":
		return log.WarnLevel, nil
	case "CRITICAL":
		return log.FatalLevel, nil
	}
	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return log.InfoLevel, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// NewTestLogger creates a debug-level logger that writes to a buffer.
func NewTestLogger() (*log.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{
		ReportTimestamp: false,
		Prefix:          "test",
	})
	logger.SetLevel(log.DebugLevel)
	return logger, &buf
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}
