package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New возвращает slog-логгер в формате json или text.
// Уровень берется из level, переменная LOG_LEVEL имеет приоритет.
func New(w io.Writer, level, format string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

func parseLevel(level string) slog.Level {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return parsed
}
