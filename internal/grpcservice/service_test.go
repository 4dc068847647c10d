package grpcservice

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"go.klb.dev/pastabox/internal/app"
	"go.klb.dev/pastabox/internal/clip"
	"go.klb.dev/pastabox/internal/history"
	"go.klb.dev/pastabox/internal/hub"
	"go.klb.dev/pastabox/internal/poller"
	"go.klb.dev/pastabox/internal/state"
)

// startBuf serves cmds over an in-memory listener and returns a client.
func startBuf(t *testing.T, cmds Commands) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := NewServer(New(cmds, "test"))
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewClient(conn)
}

func newTestApp() (*app.App, *clip.Memory) {
	m := clip.NewMemory()
	return app.New(m, state.Default()), m
}

func TestClientCommands(t *testing.T) {
	a, m := newTestApp()
	c := startBuf(t, a)
	ctx := context.Background()

	h1, err := c.Add(ctx, "alpha")
	require.NoError(t, err)
	h2, err := c.Add(ctx, "beta")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)

	entries, err := c.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []history.Entry{{Handle: h1, Text: "alpha"}, {Handle: h2, Text: "beta"}}, entries)

	text, err := c.Get(ctx, h2)
	require.NoError(t, err)
	assert.Equal(t, "beta", text)

	ok, err := c.CopyOut(ctx, h1)
	require.NoError(t, err)
	assert.True(t, ok)
	got, _ := m.ReadText()
	assert.Equal(t, "alpha", got)

	removed, err := c.Remove(ctx, h1)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = c.Remove(ctx, h1)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = c.Get(ctx, h1)
	require.ErrorIs(t, err, ErrNotFound)

	ok, err = c.CopyOut(ctx, h1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Clear(ctx))
	entries, err = c.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClientAutoCapture(t *testing.T) {
	a, _ := newTestApp()
	c := startBuf(t, a)
	ctx := context.Background()

	on, err := c.Toggle(ctx)
	require.NoError(t, err)
	assert.False(t, on)
	assert.False(t, a.AutoCapture())

	on, err = c.SetAutoCapture(ctx, true)
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, a.AutoCapture())
}

func TestClientDraft(t *testing.T) {
	a, _ := newTestApp()
	c := startBuf(t, a)
	ctx := context.Background()

	require.NoError(t, c.SetDraft(ctx, "wip"))
	d, err := c.Draft(ctx)
	require.NoError(t, err)
	assert.Equal(t, "wip", d)

	h, err := c.CommitDraft(ctx)
	require.NoError(t, err)
	text, err := c.Get(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, "wip", text)

	d, err = c.Draft(ctx)
	require.NoError(t, err)
	assert.Empty(t, d)
}

func TestClientStatus(t *testing.T) {
	a, _ := newTestApp()
	c := startBuf(t, a)
	ctx := context.Background()

	_, err := c.Add(ctx, "x")
	require.NoError(t, err)

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "test", st["version"])
	assert.Equal(t, "headless (memory)", st["backend"])
	assert.Equal(t, true, st["auto_capture"])
	assert.EqualValues(t, 1, st["snippets"])
	assert.Equal(t, "5s", st["interval"])
	assert.Equal(t, false, st["has_last_seen"])
}

func TestClientWatch(t *testing.T) {
	a, m := newTestApp()
	c := startBuf(t, a)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := make(chan Event, 16)
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, func(ev Event) error {
			events <- ev
			return nil
		})
	}()
	require.Eventually(t, func() bool { return a.Status().Watchers == 1 }, 2*time.Second, 10*time.Millisecond)

	h := a.AddManual("typed")
	m.Set("copied")
	a.Poll()
	a.ToggleAutoCapture()

	next := func() Event {
		select {
		case ev := <-events:
			return ev
		case <-ctx.Done():
			t.Fatal("timed out waiting for event")
			return Event{}
		}
	}

	ev := next()
	assert.Equal(t, hub.KindAdded, ev.Kind)
	assert.Equal(t, h, ev.Handle)
	assert.Equal(t, "typed", ev.Text)
	assert.Equal(t, hub.OriginManual, ev.Origin)

	ev = next()
	assert.Equal(t, hub.KindAdded, ev.Kind)
	assert.Equal(t, "copied", ev.Text)
	assert.Equal(t, hub.OriginPoller, ev.Origin)

	ev = next()
	assert.Equal(t, hub.KindAutoCapture, ev.Kind)
	assert.False(t, ev.AutoCapture)

	cancel()
	require.NoError(t, <-done)
	require.Eventually(t, func() bool { return a.Status().Watchers == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestListSurvivesNonUTF8Clipboard(t *testing.T) {
	a, m := newTestApp()
	c := startBuf(t, a)
	ctx := context.Background()

	_, err := c.Add(ctx, "fine")
	require.NoError(t, err)
	m.Set("caf\xe9")
	require.Equal(t, poller.Appended, a.Poll())

	entries, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "fine", entries[0].Text)
	assert.Equal(t, "caf\uFFFD", entries[1].Text)

	text, err := c.Get(ctx, entries[1].Handle)
	require.NoError(t, err)
	assert.Equal(t, "caf\uFFFD", text)
}

// panicky panics on Clear and delegates everything else.
type panicky struct{ *app.App }

func (panicky) Clear() { panic("boom") }

func TestPanicBecomesInternal(t *testing.T) {
	a, _ := newTestApp()
	c := startBuf(t, panicky{a})
	ctx := context.Background()

	err := c.Clear(ctx)
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))

	// The server keeps serving.
	_, err = c.Add(ctx, "still up")
	require.NoError(t, err)
}
