// Package logging builds the structured logger shared by the service and CLI.
//
// The ID library itself never logs; errors carry their context as fields
// (see ClockError) and the caller decides what to emit.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the handler encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options configures New.
type Options struct {
	Level  slog.Level
	Format Format
	Output io.Writer // defaults to os.Stderr

	// Component is attached to every record when non-empty.
	Component string
}

// ParseLevel accepts debug, info, warn/warning and error (case-insensitive).
// The empty string maps to info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// ParseFormat accepts text or json; the empty string maps to text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format %q", s)
	}
}

// New returns a logger writing to opts.Output with the selected format and level.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	hopts := &slog.HandlerOptions{Level: opts.Level}

	var h slog.Handler
	if opts.Format == FormatJSON {
		h = slog.NewJSONHandler(out, hopts)
	} else {
		h = slog.NewTextHandler(out, hopts)
	}

	l := slog.New(h)
	if opts.Component != "" {
		l = l.With(slog.String("component", opts.Component))
	}
	return l
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
