// Package poller implements the background clipboard sampler that feeds the
// history.
//
// Each cycle sleeps for the interval, reads the clipboard, and appends the
// text to the history when auto-capture is enabled, the text is non-empty,
// and it differs from the last value the poller itself observed.
package poller

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.klb.dev/pastabox/internal/history"
	"go.klb.dev/pastabox/internal/logging"
)

// DefaultInterval is the sleep between two clipboard samples.
const DefaultInterval = 5 * time.Second

// Reader is the clipboard side the poller samples. clip.Backend satisfies it.
type Reader interface {
	ReadText() (string, error)
}

// Appender is the history side the poller commits to. *history.Store
// satisfies it. Add is called with the poller's lock held, so it must not
// call back into the Poller.
type Appender interface {
	Add(text string) history.Handle
}

// Outcome describes what a single sampling step did.
type Outcome int

const (
	Appended Outcome = iota
	SkippedReadError
	SkippedDisabled
	SkippedEmpty
	SkippedUnchanged
)

func (o Outcome) String() string {
	switch o {
	case Appended:
		return "appended"
	case SkippedReadError:
		return "read-error"
	case SkippedDisabled:
		return "disabled"
	case SkippedEmpty:
		return "empty"
	case SkippedUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval overrides DefaultInterval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithOnOutcome registers fn to be called with the result of every cycle.
func WithOnOutcome(fn func(Outcome)) Option {
	return func(p *Poller) { p.onOutcome = fn }
}

// Poller samples the clipboard and appends new text to the history.
type Poller struct {
	clip      Reader
	store     Appender
	flag      *Flag
	interval  time.Duration
	onOutcome func(Outcome)

	// mu guards the last-seen value. It is taken before the store's lock
	// when appending, so the append and the last-seen update commit as one
	// step with respect to Observe and LastSeen.
	mu       sync.Mutex
	lastSeen string
	seen     bool
}

// New returns a Poller reading r, appending to store, gated by flag.
func New(r Reader, store Appender, flag *Flag, opts ...Option) *Poller {
	p := &Poller{
		clip:     r,
		store:    store,
		flag:     flag,
		interval: DefaultInterval,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Interval returns the configured sleep between samples.
func (p *Poller) Interval() time.Duration { return p.interval }

// Run samples the clipboard every interval until ctx is cancelled. It sleeps
// before the first sample. Run returns nil on cancellation.
func (p *Poller) Run(ctx context.Context) error {
	slog.Info("clipboard poller started", "interval", p.interval)
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("clipboard poller stopped")
			return nil
		case <-t.C:
			p.Poll()
		}
	}
}

// Poll performs one sampling step without sleeping.
func (p *Poller) Poll() Outcome {
	o := p.poll()
	if p.onOutcome != nil {
		p.onOutcome(o)
	}
	return o
}

func (p *Poller) poll() Outcome {
	text, err := p.clip.ReadText()
	if err != nil {
		slog.Debug("clipboard read failed, skipping cycle", "err", err)
		return SkippedReadError
	}
	// Some clipboard owners hand out bytes in a legacy encoding. Stored text
	// is always valid UTF-8, and the baseline compares the stored form.
	text = strings.ToValidUTF8(text, "\uFFFD")
	if !p.flag.Enabled() {
		return SkippedDisabled
	}
	if text == "" {
		return SkippedEmpty
	}

	p.mu.Lock()
	if p.seen && p.lastSeen == text {
		p.mu.Unlock()
		return SkippedUnchanged
	}
	h := p.store.Add(text)
	p.lastSeen = text
	p.seen = true
	p.mu.Unlock()

	slog.Debug("clipboard captured", "handle", h, "preview", logging.Preview(text))
	return Appended
}

// Observe records text as the last clipboard value without appending it.
// Used after the application itself writes text to the clipboard.
func (p *Poller) Observe(text string) {
	p.mu.Lock()
	p.lastSeen = text
	p.seen = true
	p.mu.Unlock()
}

// LastSeen returns the last clipboard value the poller observed, if any.
func (p *Poller) LastSeen() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen, p.seen
}
