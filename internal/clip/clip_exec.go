package clip

import (
	"fmt"

	"github.com/atotto/clipboard"
)

// execBackend shells out to the platform clipboard tools through
// github.com/atotto/clipboard. It needs no cgo, which makes it the usual
// choice for statically built binaries on Wayland or X11.
type execBackend struct{}

func newExec() (Backend, error) {
	if clipboard.Unsupported {
		return nil, fmt.Errorf("%w: no clipboard utility found (install xclip, xsel or wl-clipboard)", ErrUnavailable)
	}
	return execBackend{}, nil
}

func (execBackend) Name() string { return "exec clipboard" }

func (execBackend) ReadText() (string, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("clipboard read: %w", err)
	}
	return text, nil
}

func (execBackend) WriteText(text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard write: %w", err)
	}
	return nil
}

func (execBackend) Close() {}
