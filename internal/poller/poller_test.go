package poller

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/pastabox/internal/clip"
	"go.klb.dev/pastabox/internal/history"
)

var errFlaky = errors.New("clipboard busy")

// scripted replays a fixed sequence of clipboard reads, repeating the last
// one once the script runs out.
type scripted struct {
	mu    sync.Mutex
	reads []read
	n     int
}

type read struct {
	text string
	err  error
}

func texts(ss ...string) []read {
	out := make([]read, len(ss))
	for i, s := range ss {
		out[i] = read{text: s}
	}
	return out
}

func (s *scripted) ReadText() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reads) == 0 {
		return "", nil
	}
	i := s.n
	if i >= len(s.reads) {
		i = len(s.reads) - 1
	}
	s.n++
	return s.reads[i].text, s.reads[i].err
}

func pollAll(p *Poller, n int) []Outcome {
	out := make([]Outcome, n)
	for i := range out {
		out[i] = p.Poll()
	}
	return out
}

func TestDedupConsecutiveValues(t *testing.T) {
	store := history.New()
	p := New(&scripted{reads: texts("a", "a", "b", "b", "b")}, store, NewFlag(true))

	pollAll(p, 5)
	assert.Equal(t, []string{"a", "b"}, store.Texts())
}

func TestEndToEndSequence(t *testing.T) {
	store := history.New()
	p := New(&scripted{reads: texts("", "foo", "foo", "bar")}, store, NewFlag(true))

	got := pollAll(p, 4)
	assert.Equal(t, []Outcome{SkippedEmpty, Appended, SkippedUnchanged, Appended}, got)
	assert.Equal(t, []string{"foo", "bar"}, store.Texts())
}

func TestReadErrorLeavesStateUntouched(t *testing.T) {
	store := history.New()
	r := &scripted{reads: []read{
		{text: "a"},
		{err: errFlaky},
		{text: "a"},
		{text: "b"},
	}}
	p := New(r, store, NewFlag(true))

	got := pollAll(p, 4)
	assert.Equal(t, []Outcome{Appended, SkippedReadError, SkippedUnchanged, Appended}, got)
	assert.Equal(t, []string{"a", "b"}, store.Texts())
}

func TestEmptyNeverAppendedAndKeepsBaseline(t *testing.T) {
	store := history.New()
	p := New(&scripted{reads: texts("x", "", "x")}, store, NewFlag(true))

	pollAll(p, 3)
	// The clear in between does not reset the baseline, so "x" is not
	// captured twice.
	assert.Equal(t, []string{"x"}, store.Texts())
	last, ok := p.LastSeen()
	require.True(t, ok)
	assert.Equal(t, "x", last)
}

func TestDisabledFlagSuppressesAppends(t *testing.T) {
	store := history.New()
	flag := NewFlag(true)
	r := &scripted{reads: texts("a", "b", "c", "c", "d")}
	p := New(r, store, flag)

	require.Equal(t, Appended, p.Poll()) // a

	flag.Set(false)
	assert.Equal(t, []Outcome{SkippedDisabled, SkippedDisabled}, pollAll(p, 2)) // b, c
	assert.Equal(t, []string{"a"}, store.Texts())

	// Re-enabling compares against the baseline at toggle time ("a"), so the
	// current value "c" counts as a transition.
	assert.True(t, flag.Toggle())
	pollAll(p, 2) // c, d
	assert.Equal(t, []string{"a", "c", "d"}, store.Texts())
}

func TestReenableDoesNotRecaptureBaseline(t *testing.T) {
	store := history.New()
	flag := NewFlag(true)
	p := New(&scripted{reads: texts("a", "a", "a")}, store, flag)

	p.Poll()
	flag.Set(false)
	p.Poll()
	flag.Set(true)
	assert.Equal(t, SkippedUnchanged, p.Poll())
	assert.Equal(t, []string{"a"}, store.Texts())
}

func TestObserveMovesBaselineWithoutAppending(t *testing.T) {
	store := history.New()
	m := clip.NewMemory()
	p := New(m, store, NewFlag(true))

	m.Set("copied-out")
	p.Observe("copied-out")
	assert.Equal(t, SkippedUnchanged, p.Poll())
	assert.Empty(t, store.Texts())
}

func TestManualAddsDoNotTouchBaseline(t *testing.T) {
	store := history.New()
	m := clip.NewMemory()
	p := New(m, store, NewFlag(true))

	m.Set("X")
	store.Add("X")
	_, ok := p.LastSeen()
	assert.False(t, ok)

	assert.Equal(t, Appended, p.Poll())
	assert.Equal(t, []string{"X", "X"}, store.Texts())
}

func TestInvalidUTF8IsStoredReplaced(t *testing.T) {
	store := history.New()
	p := New(&scripted{reads: texts("caf\xe9", "caf\xe9", "caf\uFFFD")}, store, NewFlag(true))

	got := pollAll(p, 3)
	// The repaired text is the baseline, so the same bytes or their repaired
	// form are both unchanged.
	assert.Equal(t, []Outcome{Appended, SkippedUnchanged, SkippedUnchanged}, got)
	assert.Equal(t, []string{"caf\uFFFD"}, store.Texts())
	last, ok := p.LastSeen()
	require.True(t, ok)
	assert.True(t, utf8.ValidString(last))
}

func TestConcurrentManualAndPollerAdds(t *testing.T) {
	const manual, transitions = 300, 200

	reads := make([]read, transitions)
	for i := range reads {
		reads[i] = read{text: "clip-" + strconv.Itoa(i)}
	}
	store := history.New()
	p := New(&scripted{reads: reads}, store, NewFlag(true))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < manual; i++ {
			store.Add("manual")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < transitions; i++ {
			p.Poll()
		}
	}()
	wg.Wait()

	assert.Equal(t, manual+transitions, store.Len())
}

func TestRunStopsOnCancel(t *testing.T) {
	store := history.New()
	m := clip.NewMemory()
	m.Set("tick")
	p := New(m, store, NewFlag(true), WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return store.Len() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancel")
	}
	assert.Equal(t, []string{"tick"}, store.Texts())
}

func TestOnOutcomeSeesEveryCycle(t *testing.T) {
	var seen []Outcome
	p := New(&scripted{reads: []read{{err: errFlaky}, {text: "x"}, {text: "x"}}}, history.New(), NewFlag(true),
		WithOnOutcome(func(o Outcome) { seen = append(seen, o) }))

	pollAll(p, 3)
	assert.Equal(t, []Outcome{SkippedReadError, Appended, SkippedUnchanged}, seen)
}

func TestWithIntervalIgnoresNonPositive(t *testing.T) {
	p := New(clip.NewMemory(), history.New(), NewFlag(true), WithInterval(0))
	assert.Equal(t, DefaultInterval, p.Interval())
}

func TestFlagToggle(t *testing.T) {
	f := NewFlag(true)
	assert.False(t, f.Toggle())
	assert.False(t, f.Enabled())
	assert.True(t, f.Toggle())
	assert.True(t, f.Enabled())

	var zero Flag
	assert.False(t, zero.Enabled())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "appended", Appended.String())
	assert.Equal(t, "unchanged", SkippedUnchanged.String())
}
