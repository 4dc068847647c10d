// Package clip provides text access to the system clipboard. Several
// backends are available; Open selects one by Kind:
//
//	native   golang.design/x/clipboard (X11 / macOS / Windows, needs cgo)
//	exec     github.com/atotto/clipboard (xclip, xsel, wl-clipboard, pbcopy)
//	osc52    write-only OSC 52 escape sequences, for SSH sessions
//	memory   in-process clipboard for headless hosts and tests
//	auto     native, falling back to memory when no display is available
//
// All operations are fallible and may be slow; callers must not hold locks
// across them.
package clip

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	// ErrUnavailable is returned when the backend cannot reach a clipboard.
	ErrUnavailable = errors.New("clipboard unavailable")
	// ErrUnsupported is returned for operations a backend cannot perform,
	// such as reading through OSC 52.
	ErrUnsupported = errors.New("operation not supported by clipboard backend")
)

// Backend is the interface all clipboard implementations satisfy.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// ReadText returns the current clipboard text. An empty clipboard, or one
	// holding only non-text data, yields "", nil.
	ReadText() (string, error)

	// WriteText replaces the clipboard contents with text.
	WriteText(text string) error

	// Close releases any resources held by the backend.
	Close()
}

// Kind selects a backend implementation.
type Kind string

const (
	KindAuto   Kind = "auto"
	KindNative Kind = "native"
	KindExec   Kind = "exec"
	KindOSC52  Kind = "osc52"
	KindMemory Kind = "memory"
)

// ParseKind converts a string to a Kind, returning an error for unknown names.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindAuto, nil
	case KindAuto, KindNative, KindExec, KindOSC52, KindMemory:
		return k, nil
	case "headless":
		return KindMemory, nil
	default:
		return "", fmt.Errorf("unknown clipboard backend %q", s)
	}
}

// Open returns the backend for kind. With KindAuto, a native backend that
// fails to initialise is replaced by an in-memory one so the daemon can still
// run on a headless host.
func Open(kind Kind) (Backend, error) {
	switch kind {
	case KindNative:
		return newNative()
	case KindExec:
		return newExec()
	case KindOSC52:
		return newOSC52(nil), nil
	case KindMemory:
		return NewMemory(), nil
	case KindAuto, "":
		b, err := newNative()
		if err != nil {
			slog.Warn("clipboard unavailable, running headless", "err", err)
			return NewMemory(), nil
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown clipboard backend %q", kind)
	}
}
