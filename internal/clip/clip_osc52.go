package clip

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aymanbagabas/go-osc52/v2"
)

// osc52Backend copies text to the terminal's clipboard with an OSC 52 escape
// sequence. Terminals rarely answer OSC 52 queries, so reads are unsupported
// and auto-capture never appends while this backend is active.
type osc52Backend struct {
	mu  sync.Mutex
	out io.Writer
}

// newOSC52 writes to out, or to stderr when out is nil.
func newOSC52(out io.Writer) *osc52Backend {
	if out == nil {
		out = os.Stderr
	}
	return &osc52Backend{out: out}
}

func (b *osc52Backend) Name() string { return "OSC 52 (write-only)" }

func (b *osc52Backend) ReadText() (string, error) {
	return "", fmt.Errorf("osc52 read: %w", ErrUnsupported)
}

func (b *osc52Backend) WriteText(text string) error {
	seq := osc52.New(text)
	switch {
	case os.Getenv("TMUX") != "":
		seq = seq.Tmux()
	case strings.HasPrefix(os.Getenv("TERM"), "screen"):
		seq = seq.Screen()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := seq.WriteTo(b.out); err != nil {
		return fmt.Errorf("osc52 write: %w", err)
	}
	return nil
}

func (b *osc52Backend) Close() {}
