package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger. Services receive it by injection so tests
// can swap in a discard or capture handler.
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}
