// Package hub fans out history change events to watchers. Peers register,
// receive events through a non-blocking Send, and unregister when done. The
// hub never blocks a publisher on a slow peer.
package hub

import (
	"log/slog"
	"sync"

	"go.klb.dev/pastabox/internal/history"
)

// Kind identifies what changed.
type Kind string

const (
	KindAdded       Kind = "added"
	KindRemoved     Kind = "removed"
	KindCleared     Kind = "cleared"
	KindAutoCapture Kind = "auto_capture"
	KindDraft       Kind = "draft"
)

// Origin of an added snippet.
const (
	OriginManual = "manual"
	OriginPoller = "poller"
)

// Event describes one change to the history or its settings.
type Event struct {
	Kind        Kind
	Handle      history.Handle // added, removed
	Text        string         // added, draft
	Origin      string         // added
	AutoCapture bool           // auto_capture
}

// Peer is anything that can receive events from the hub.
type Peer interface {
	ID() string
	// Send delivers an event to the peer. Must be non-blocking.
	Send(Event)
}

// Hub routes events to all registered peers.
type Hub struct {
	mu    sync.RWMutex
	peers map[string]Peer
}

// New returns an empty Hub.
func New() *Hub {
	return &Hub{peers: make(map[string]Peer)}
}

// Register adds a peer. A peer registered twice under the same ID replaces
// the earlier one.
func (h *Hub) Register(p Peer) {
	h.mu.Lock()
	h.peers[p.ID()] = p
	total := len(h.peers)
	h.mu.Unlock()

	slog.Debug("watcher registered", "peer", p.ID(), "total", total)
}

// Unregister removes a peer from the hub.
func (h *Hub) Unregister(p Peer) {
	h.mu.Lock()
	delete(h.peers, p.ID())
	total := len(h.peers)
	h.mu.Unlock()

	slog.Debug("watcher unregistered", "peer", p.ID(), "total", total)
}

// Publish delivers ev to every registered peer.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	targets := make([]Peer, 0, len(h.peers))
	for _, p := range h.peers {
		targets = append(targets, p)
	}
	h.mu.RUnlock()

	LogEvent(ev)
	for _, p := range targets {
		p.Send(ev)
	}
}

// Len returns the number of registered peers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// ChanPeer is a Peer backed by a buffered channel. Events that do not fit
// are dropped.
type ChanPeer struct {
	id string
	ch chan Event
}

// NewChanPeer returns a ChanPeer buffering up to size events.
func NewChanPeer(id string, size int) *ChanPeer {
	return &ChanPeer{id: id, ch: make(chan Event, size)}
}

func (p *ChanPeer) ID() string { return p.id }

// C returns the channel events arrive on. It is never closed.
func (p *ChanPeer) C() <-chan Event { return p.ch }

func (p *ChanPeer) Send(ev Event) {
	select {
	case p.ch <- ev:
	default:
		slog.Warn("watcher channel full, dropping", "peer", p.id, "kind", ev.Kind)
	}
}
