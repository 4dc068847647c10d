package poller

import "sync/atomic"

// Flag gates whether the poller may append. The zero value is disabled;
// use NewFlag for the usual enabled default.
type Flag struct {
	v atomic.Bool
}

// NewFlag returns a Flag set to enabled.
func NewFlag(enabled bool) *Flag {
	f := &Flag{}
	f.v.Store(enabled)
	return f
}

// Enabled reports the current value.
func (f *Flag) Enabled() bool { return f.v.Load() }

// Set stores enabled.
func (f *Flag) Set(enabled bool) { f.v.Store(enabled) }

// Toggle flips the flag and returns the new value.
func (f *Flag) Toggle() bool {
	for {
		old := f.v.Load()
		if f.v.CompareAndSwap(old, !old) {
			return !old
		}
	}
}
