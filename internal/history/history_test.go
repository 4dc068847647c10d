package history

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text
	}
	return out
}

func TestAddAppendsInOrder(t *testing.T) {
	s := New()
	a := s.Add("a")
	b := s.Add("b")
	c := s.Add("a")

	assert.Less(t, a, b)
	assert.Less(t, b, c)
	assert.Equal(t, []string{"a", "b", "a"}, texts(s.Snapshot()))
	assert.Equal(t, 3, s.Len())
}

func TestRemoveAtByHandle(t *testing.T) {
	s := New()
	s.Add("one")
	two := s.Add("two")
	s.Add("three")

	require.True(t, s.RemoveAt(two))
	assert.Equal(t, []string{"one", "three"}, texts(s.Snapshot()))

	// Already removed: no-op.
	assert.False(t, s.RemoveAt(two))
	assert.False(t, s.RemoveAt(Handle(999)))
	assert.Equal(t, []string{"one", "three"}, texts(s.Snapshot()))
}

func TestHandleSurvivesConcurrentAppend(t *testing.T) {
	s := New()
	first := s.Add("first")
	target := s.Add("target")

	// An append after the caller captured its handle must not change what
	// the handle addresses.
	s.Add("late")

	got, ok := s.Get(target)
	require.True(t, ok)
	assert.Equal(t, "target", got)

	s.RemoveAt(first)
	got, ok = s.Get(target)
	require.True(t, ok)
	assert.Equal(t, "target", got)
}

func TestClearIsIdempotent(t *testing.T) {
	s := New()
	s.Add("x")
	s.Add("y")

	s.Clear()
	assert.Empty(t, s.Snapshot())
	s.Clear()
	assert.Empty(t, s.Snapshot())

	// Handles are not reused after a clear.
	h := s.Add("z")
	assert.Equal(t, Handle(3), h)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New()
	s.Add("a")
	snap := s.Snapshot()
	snap[0].Text = "mutated"
	s.Add("b")

	assert.Equal(t, []string{"a", "b"}, texts(s.Snapshot()))
	assert.Len(t, snap, 1)
}

func TestReplaceAssignsFreshHandles(t *testing.T) {
	s := New()
	old := s.Add("old")
	s.Replace([]string{"p", "q"})

	_, ok := s.Get(old)
	assert.False(t, ok)
	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Less(t, snap[0].Handle, snap[1].Handle)
	assert.Equal(t, []string{"p", "q"}, s.Texts())
}

func TestParseHandle(t *testing.T) {
	h, err := ParseHandle(Handle(42).String())
	require.NoError(t, err)
	assert.Equal(t, Handle(42), h)

	_, err = ParseHandle("nope")
	assert.Error(t, err)
}

// TestMatchesReferenceModel replays random add/remove/clear sequences
// against a plain slice model.
func TestMatchesReferenceModel(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		s := New()
		var model []Entry
		var issued []Handle

		for op := 0; op < 200; op++ {
			switch r := rng.Intn(10); {
			case r < 6:
				text := string(rune('a' + rng.Intn(4)))
				h := s.Add(text)
				issued = append(issued, h)
				model = append(model, Entry{Handle: h, Text: text})
			case r < 9:
				if len(issued) == 0 {
					continue
				}
				h := issued[rng.Intn(len(issued))]
				for i, e := range model {
					if e.Handle == h {
						model = append(model[:i], model[i+1:]...)
						break
					}
				}
				s.RemoveAt(h)
			default:
				model = nil
				s.Clear()
			}
		}

		if len(model) == 0 {
			assert.Empty(t, s.Snapshot())
		} else {
			assert.Equal(t, model, s.Snapshot(), "round %d", round)
		}
	}
}

func TestConcurrentAddsAreNotLost(t *testing.T) {
	s := New()
	const writers, perWriter = 8, 250

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				s.Add("x")
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	require.Len(t, snap, writers*perWriter)
	for i := 1; i < len(snap); i++ {
		assert.Less(t, snap[i-1].Handle, snap[i].Handle)
	}
}
