package clip

import (
	"fmt"
	"sync"

	"golang.design/x/clipboard"
)

var (
	initOnce sync.Once
	initErr  error
)

type nativeBackend struct{}

// newNative returns the golang.design/x/clipboard backend. clipboard.Init is
// called here rather than in init() so that CLI sub-commands that never open
// a backend don't trip over a missing display.
func newNative() (Backend, error) {
	initOnce.Do(func() { initErr = clipboard.Init() })
	if initErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, initErr)
	}
	return nativeBackend{}, nil
}

func (nativeBackend) Name() string { return "native clipboard" }

func (nativeBackend) ReadText() (string, error) {
	return string(clipboard.Read(clipboard.FmtText)), nil
}

func (nativeBackend) WriteText(text string) error {
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

func (nativeBackend) Close() {}
