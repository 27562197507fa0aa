package logger

import (
	"log/slog"
	"os"
)

// New returns a structured stdout logger with sane defaults.
func New() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
