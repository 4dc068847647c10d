// Package state persists the application state between runs.
//
// The state is one JSON blob stored under AppKey in a key-value Storage:
//
//	{"draft_text": "...", "history": ["...", ...], "auto_capture": true}
//
// Loading never fails. Missing fields keep their value from Default, unknown
// fields are ignored, and a blob that cannot be read or decoded is replaced
// by Default as a whole. An encrypted blob that cannot be opened is first
// copied to a SealedKey slot, so the next save cannot destroy it.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"go.klb.dev/pastabox/internal/crypto"
)

// AppKey is the storage key the application state lives under.
const AppKey = "app"

// SealedKey is where an encrypted state that could not be opened is kept.
// Later failures use SealedKey-1, SealedKey-2 and so on; existing copies are
// never overwritten.
const SealedKey = AppKey + ".sealed"

// maxSealedCopies bounds the search for a free SealedKey slot.
const maxSealedCopies = 100

// State is the persisted application state.
type State struct {
	DraftText   string   `json:"draft_text"`
	History     []string `json:"history"`
	AutoCapture bool     `json:"auto_capture"`
}

// Default returns the state used on first start and after a failed load.
func Default() State {
	return State{
		History:     []string{},
		AutoCapture: true,
	}
}

// Encode serialises s, sealing it with box when box is non-nil.
func Encode(s State, box *crypto.Box) ([]byte, error) {
	if s.History == nil {
		s.History = []string{}
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	if box == nil {
		return raw, nil
	}
	return box.Seal(raw)
}

// Decode parses a blob produced by Encode. On error it returns Default along
// with the error, so callers may log and carry on.
func Decode(blob []byte, box *crypto.Box) (State, error) {
	if crypto.IsSealed(blob) {
		if box == nil {
			return Default(), errors.New("state is encrypted but no passphrase is configured")
		}
		plain, err := box.Open(blob)
		if err != nil {
			return Default(), fmt.Errorf("open state: %w", err)
		}
		blob = plain
	}

	s := Default()
	if err := json.Unmarshal(blob, &s); err != nil {
		return Default(), fmt.Errorf("decode state: %w", err)
	}
	if s.History == nil {
		s.History = []string{}
	}
	return s, nil
}

// Load reads the state from st. It always returns a usable State.
func Load(ctx context.Context, st Storage, box *crypto.Box) State {
	blob, err := st.Get(ctx, AppKey)
	if errors.Is(err, ErrNotFound) {
		slog.Info("no saved state, starting empty", "storage", st.Name())
		return Default()
	}
	if err != nil {
		slog.Warn("state unreadable, starting empty", "storage", st.Name(), "err", err)
		return Default()
	}
	s, err := Decode(blob, box)
	if err != nil && crypto.IsSealed(blob) {
		key, kerr := setAside(ctx, st, blob)
		if kerr != nil {
			slog.Error("encrypted state unreadable and could not be kept", "storage", st.Name(), "err", err, "keep_err", kerr)
			return s
		}
		slog.Warn("encrypted state unreadable, starting empty; original kept",
			"storage", st.Name(), "key", key, "err", err)
		return s
	}
	if err != nil {
		slog.Warn("state malformed, starting empty", "storage", st.Name(), "err", err)
		return s
	}
	slog.Info("state loaded",
		"storage", st.Name(),
		"snippets", len(s.History),
		"auto_capture", s.AutoCapture,
	)
	return s
}

// setAside copies blob to the first free SealedKey slot and returns its key.
func setAside(ctx context.Context, st Storage, blob []byte) (string, error) {
	for i := 0; i < maxSealedCopies; i++ {
		key := SealedKey
		if i > 0 {
			key = fmt.Sprintf("%s-%d", SealedKey, i)
		}
		_, err := st.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return key, st.Set(ctx, key, blob)
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free slot after %d sealed copies", maxSealedCopies)
}

// Save writes s to st.
func Save(ctx context.Context, st Storage, box *crypto.Box, s State) error {
	blob, err := Encode(s, box)
	if err != nil {
		return err
	}
	if err := st.Set(ctx, AppKey, blob); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}
