// Package app wires the history, the auto-capture flag, the poller and the
// clipboard into the command surface a presentation layer drives.
//
// An App is built once at startup from the loaded state and shared by
// pointer between the command handlers and the poller goroutine.
package app

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.klb.dev/pastabox/internal/clip"
	"go.klb.dev/pastabox/internal/history"
	"go.klb.dev/pastabox/internal/hub"
	"go.klb.dev/pastabox/internal/poller"
	"go.klb.dev/pastabox/internal/state"
)

// App owns the clipboard history for the lifetime of the process.
type App struct {
	clip   clip.Backend
	store  *history.Store
	flag   *poller.Flag
	poller *poller.Poller
	hub    *hub.Hub

	startedAt time.Time

	// mu orders every change with its event: a change and its Publish happen
	// under mu, so watchers see events in the order the store committed
	// them. It also guards draft. Lock order is poller, then mu, then store.
	mu    sync.Mutex
	draft string
}

// capture is the poller's Appender. The poller calls Add with its own lock
// held, which keeps the documented lock order.
type capture struct{ a *App }

func (c capture) Add(text string) history.Handle {
	c.a.mu.Lock()
	defer c.a.mu.Unlock()
	h := c.a.store.Add(text)
	c.a.hub.Publish(hub.Event{Kind: hub.KindAdded, Handle: h, Text: text, Origin: hub.OriginPoller})
	return h
}

// New returns an App rehydrated from st. The poller is configured but not
// started; call Run.
func New(backend clip.Backend, st state.State, opts ...poller.Option) *App {
	a := &App{
		clip:      backend,
		store:     history.New(),
		flag:      poller.NewFlag(st.AutoCapture),
		hub:       hub.New(),
		startedAt: time.Now(),
		draft:     st.DraftText,
	}
	a.store.Replace(st.History)
	a.poller = poller.New(backend, capture{a}, a.flag, opts...)
	return a
}

// Run drives the clipboard poller until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return a.poller.Run(ctx)
}

// Poll runs a single poller cycle immediately.
func (a *App) Poll() poller.Outcome {
	return a.poller.Poll()
}

// AddManual appends text to the history. It does not move the poller's
// last-seen baseline.
func (a *App) AddManual(text string) history.Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addManual(text)
}

func (a *App) addManual(text string) history.Handle {
	text = validText(text)
	h := a.store.Add(text)
	a.hub.Publish(hub.Event{Kind: hub.KindAdded, Handle: h, Text: text, Origin: hub.OriginManual})
	return h
}

// RemoveAt removes the snippet identified by h. Unknown handles are ignored;
// the result reports whether anything was removed.
func (a *App) RemoveAt(h history.Handle) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.store.RemoveAt(h) {
		return false
	}
	a.hub.Publish(hub.Event{Kind: hub.KindRemoved, Handle: h})
	return true
}

// Clear empties the history.
func (a *App) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.store.Clear()
	a.hub.Publish(hub.Event{Kind: hub.KindCleared})
}

// ToggleAutoCapture flips the auto-capture flag and returns its new value.
// The poller sees the change at its next sampling decision.
func (a *App) ToggleAutoCapture() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	enabled := a.flag.Toggle()
	a.hub.Publish(hub.Event{Kind: hub.KindAutoCapture, AutoCapture: enabled})
	return enabled
}

// SetAutoCapture sets the auto-capture flag.
func (a *App) SetAutoCapture(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flag.Set(enabled)
	a.hub.Publish(hub.Event{Kind: hub.KindAutoCapture, AutoCapture: enabled})
}

// AutoCapture reports whether auto-capture is enabled.
func (a *App) AutoCapture() bool { return a.flag.Enabled() }

// CopyOut writes the snippet identified by h to the clipboard. Failures are
// logged and reported as false; they are never fatal.
//
// After a successful write the poller's baseline moves to the copied text so
// the next cycle does not capture it a second time. A cycle that read the
// clipboard before the write but commits after it still sees the old value:
// it may append that value and move the baseline back, in which case the
// following cycle captures the copied text once.
func (a *App) CopyOut(h history.Handle) bool {
	text, ok := a.store.Get(h)
	if !ok {
		slog.Debug("copy-out of unknown snippet ignored", "handle", h)
		return false
	}
	if err := a.clip.WriteText(text); err != nil {
		slog.Warn("clipboard write failed", "handle", h, "err", err)
		return false
	}
	a.poller.Observe(text)
	slog.Debug("snippet copied to clipboard", "handle", h)
	return true
}

// Get returns the text of the snippet identified by h.
func (a *App) Get(h history.Handle) (string, bool) {
	return a.store.Get(h)
}

// Snapshot returns the history in commit order.
func (a *App) Snapshot() []history.Entry {
	return a.store.Snapshot()
}

// Draft returns the in-progress manual entry.
func (a *App) Draft() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.draft
}

// SetDraft replaces the in-progress manual entry.
func (a *App) SetDraft(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.draft = validText(text)
	a.hub.Publish(hub.Event{Kind: hub.KindDraft, Text: a.draft})
}

// CommitDraft appends the draft to the history and resets it.
func (a *App) CommitDraft() history.Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	h := a.addManual(a.draft)
	a.draft = ""
	a.hub.Publish(hub.Event{Kind: hub.KindDraft})
	return h
}

// State returns the persistable view of the application.
func (a *App) State() state.State {
	return state.State{
		DraftText:   a.Draft(),
		History:     a.store.Texts(),
		AutoCapture: a.flag.Enabled(),
	}
}

// validText replaces invalid UTF-8 so every stored string can cross the
// protobuf boundary.
func validText(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// Watch registers p for change events until the returned func is called.
// Events arrive in the order the changes were committed; a peer that drops
// events should re-read the history with Snapshot.
func (a *App) Watch(p hub.Peer) (cancel func()) {
	a.hub.Register(p)
	return func() { a.hub.Unregister(p) }
}

// Status summarises the running application.
type Status struct {
	Backend     string
	AutoCapture bool
	Snippets    int
	Interval    time.Duration
	HasLastSeen bool
	Watchers    int
	StartedAt   time.Time
}

// Status returns a point-in-time summary.
func (a *App) Status() Status {
	_, seen := a.poller.LastSeen()
	return Status{
		Backend:     a.clip.Name(),
		AutoCapture: a.flag.Enabled(),
		Snippets:    a.store.Len(),
		Interval:    a.poller.Interval(),
		HasLastSeen: seen,
		Watchers:    a.hub.Len(),
		StartedAt:   a.startedAt,
	}
}
