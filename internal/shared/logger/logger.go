package logger

import (
	"log/slog"
	"os"
	"strings"

	"empires-server/internal/shared/config"
)

// Init installs the process-wide slog default: JSON in production, text
// elsewhere, level from configuration.
func Init() {
	if config.GlobalConfig == nil {
		panic("config must be initialized before logger")
	}

	cfg := config.GlobalConfig.Logging
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.JSONFormat {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))

	slog.Debug("Logger initialized",
		"component", "logger",
		"level", cfg.Level,
		"json_format", cfg.JSONFormat,
	)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
