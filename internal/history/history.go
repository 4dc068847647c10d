// Package history implements the clipboard history: an ordered list of text
// snippets addressed by stable handles.
//
// A single mutex guards the list. It is held only for the structural change
// or copy itself; callers never perform clipboard I/O or rendering with it
// held.
package history

import (
	"strconv"
	"sync"
)

// Handle identifies a snippet for its lifetime in the store. Handles are
// assigned in increasing order and never reused within a Store.
type Handle uint64

// String returns the decimal form of h.
func (h Handle) String() string { return strconv.FormatUint(uint64(h), 10) }

// ParseHandle parses the decimal form produced by Handle.String.
func ParseHandle(s string) (Handle, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return Handle(n), nil
}

// Entry is one snippet together with its handle.
type Entry struct {
	Handle Handle
	Text   string
}

// Store is the ordered, concurrency-safe snippet list.
type Store struct {
	mu      sync.Mutex
	entries []Entry
	next    Handle
}

// New returns an empty Store.
func New() *Store {
	return &Store{next: 1}
}

// Add appends text as a new snippet and returns its handle.
func (s *Store) Add(text string) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.next
	s.next++
	s.entries = append(s.entries, Entry{Handle: h, Text: text})
	return h
}

// RemoveAt removes the snippet identified by h. It reports whether a snippet
// was removed; an unknown handle is a no-op.
func (s *Store) RemoveAt(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(h)
	if i < 0 {
		return false
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	return true
}

// Clear removes every snippet. Handles already issued stay retired.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
}

// Get returns the text of the snippet identified by h.
func (s *Store) Get(h Handle) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(h)
	if i < 0 {
		return "", false
	}
	return s.entries[i].Text, true
}

// Len returns the number of snippets.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Snapshot returns a copy of the current list in commit order. The returned
// slice is owned by the caller.
func (s *Store) Snapshot() []Entry {
	s.mu.Lock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	s.mu.Unlock()
	return out
}

// Texts returns the snippet texts in commit order, without handles.
func (s *Store) Texts() []string {
	snap := s.Snapshot()
	out := make([]string, len(snap))
	for i, e := range snap {
		out[i] = e.Text
	}
	return out
}

// Replace discards the current contents and appends texts in order, each
// under a fresh handle. Used to rehydrate persisted history.
func (s *Store) Replace(texts []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make([]Entry, 0, len(texts))
	for _, t := range texts {
		s.entries = append(s.entries, Entry{Handle: s.next, Text: t})
		s.next++
	}
}

// indexLocked returns the position of h or -1. Handles increase along the
// list, so a binary search suffices. Must be called with s.mu held.
func (s *Store) indexLocked(h Handle) int {
	lo, hi := 0, len(s.entries)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if s.entries[mid].Handle < h {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(s.entries) && s.entries[lo].Handle == h {
		return lo
	}
	return -1
}
