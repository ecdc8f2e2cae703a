package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// serviceName tags every log record so aggregated logs from the dashboard
// backend, the bot, and the role service stay distinguishable.
const serviceName = "tavernkeep"

// ParseLevel maps a configured level string onto a slog level. Unknown or
// empty values fall back to info rather than failing startup.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// NewLogger builds the engine's logger over w. format "json" selects the
// machine-readable handler; anything else gets the text handler for local
// development. Debug level also records source positions.
func NewLogger(w io.Writer, format, level string) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("service", serviceName)
}

// SetupLogger installs the configured logger as the process default, so
// slog.Info/Warn/Error calls everywhere use it without carrying a logger
// through call chains.
func SetupLogger(format, level string) {
	logger := NewLogger(os.Stdout, format, level)
	slog.SetDefault(logger)
	logger.Info("logger initialised", "format", format, "level", ParseLevel(level).String())
}
