package app

import (
	"context"
	"log/slog"
	"time"

	"go.klb.dev/pastabox/internal/crypto"
	"go.klb.dev/pastabox/internal/state"
)

// DefaultAutosave is the interval between periodic state saves.
const DefaultAutosave = 30 * time.Second

// Save writes the current state to st.
func (a *App) Save(ctx context.Context, st state.Storage, box *crypto.Box) error {
	return state.Save(ctx, st, box, a.State())
}

// Autosave saves the state every interval until ctx is cancelled, then saves
// once more. A non-positive interval only saves on shutdown. Save failures
// are logged and retried at the next tick.
func (a *App) Autosave(ctx context.Context, st state.Storage, box *crypto.Box, every time.Duration) error {
	var tick <-chan time.Time
	if every > 0 {
		t := time.NewTicker(every)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			// ctx is already cancelled; the final save gets its own deadline.
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.Save(saveCtx, st, box); err != nil {
				slog.Error("final state save failed", "err", err)
				return err
			}
			slog.Info("state saved", "storage", st.Name())
			return nil
		case <-tick:
			if err := a.Save(ctx, st, box); err != nil {
				slog.Warn("autosave failed", "err", err)
			}
		}
	}
}
