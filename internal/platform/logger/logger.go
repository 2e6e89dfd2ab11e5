package logger

import (
	"log/slog"
	"os"
)

// New returns a structured JSON logger writing to stdout. Services take a
// *slog.Logger through options so tests can swap in a discard handler.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
