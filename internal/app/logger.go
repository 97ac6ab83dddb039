package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Production always emits JSON for
// ingestion; elsewhere LOG_FORMAT picks between json and readable text.
// Source locations are attached either way so ledger write paths can be
// traced from a single line.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil && (cfg.LogFormat == "json" || cfg.IsProduction()) {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
