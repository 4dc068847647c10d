package hub

import (
	"context"
	"log/slog"

	"go.klb.dev/pastabox/internal/logging"
)

// LogEvent logs a change at INFO (kind, handle, origin) and, for events that
// carry text, a preview at DEBUG.
func LogEvent(ev Event) {
	switch ev.Kind {
	case KindAdded:
		slog.Info("snippet added", "handle", ev.Handle, "origin", ev.Origin)
	case KindRemoved:
		slog.Info("snippet removed", "handle", ev.Handle)
	case KindCleared:
		slog.Info("history cleared")
	case KindAutoCapture:
		slog.Info("auto-capture changed", "enabled", ev.AutoCapture)
	case KindDraft:
		slog.Debug("draft changed")
	}

	if ev.Text == "" || !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	slog.Debug("snippet text", "kind", ev.Kind, "preview", logging.Preview(ev.Text))
}
