package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Attribute keys shared by every component so level/backend progress can be
// filtered uniformly in JSON output.
const (
	KeyComponent = "component"
	KeyLevel     = "taxonomy_level"
	KeyMethod    = "method"
	KeyLabels    = "labels"
	KeyRows      = "rows"
	KeyPath      = "path"
	KeyRunID     = "run_id"
)

// Init sets the process-wide default slog logger. Format "json" selects the
// JSON handler; anything else selects the text handler. Output goes to
// stderr unless w is given, so TSV/NDJSON on stdout stays clean.
func Init(level slog.Level, format string, w ...io.Writer) {
	var writer io.Writer = os.Stderr
	if len(w) > 0 && w[0] != nil {
		writer = w[0]
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// New returns the default logger tagged with a component attribute.
func New(component string) *slog.Logger {
	return slog.Default().With(slog.String(KeyComponent, component))
}

// ParseLevel converts a string ("debug", "info", "warn", "error") to slog.Level.
// Unknown strings default to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
