package testutil

import (
	"log/slog"
)

// DiscardLogger returns a slog.Logger that discards all output. Components
// taking the internal/log alias can use log.NewNop() instead; both return
// the same type.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
