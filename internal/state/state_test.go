package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/pastabox/internal/crypto"
)

func TestDecodeFillsMissingFieldsFromDefault(t *testing.T) {
	s, err := Decode([]byte(`{"history":["a","b"]}`), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, s.History)
	assert.True(t, s.AutoCapture)
	assert.Empty(t, s.DraftText)
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	s, err := Decode([]byte(`{"draft_text":"wip","auto_capture":false,"theme":"dark"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "wip", s.DraftText)
	assert.False(t, s.AutoCapture)
	assert.Equal(t, []string{}, s.History)
}

func TestDecodeMalformedFallsBackToDefault(t *testing.T) {
	for _, blob := range []string{
		`not json`,
		`{"history": 5}`,
		`{"history": ["a"], "auto_capture": "yes"}`,
		``,
	} {
		s, err := Decode([]byte(blob), nil)
		assert.Error(t, err, blob)
		assert.Equal(t, Default(), s, blob)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := State{DraftText: "draft", History: []string{"x", "x", "y"}, AutoCapture: false}
	blob, err := Encode(in, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"draft_text":"draft","history":["x","x","y"],"auto_capture":false}`, string(blob))

	out, err := Decode(blob, nil)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncryptedState(t *testing.T) {
	box, err := crypto.NewBox("pw")
	require.NoError(t, err)

	in := State{History: []string{"secret"}, AutoCapture: true}
	blob, err := Encode(in, box)
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "secret")

	out, err := Decode(blob, box)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	// Without the passphrase the sealed blob is unusable.
	out, err = Decode(blob, nil)
	assert.Error(t, err)
	assert.Equal(t, Default(), out)

	other, _ := crypto.NewBox("other")
	out, err = Decode(blob, other)
	assert.ErrorIs(t, err, crypto.ErrOpen)
	assert.Equal(t, Default(), out)
}

func TestParseDriver(t *testing.T) {
	d, err := ParseDriver("")
	require.NoError(t, err)
	assert.Equal(t, DriverFile, d)
	d, err = ParseDriver("SQLite")
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, d)
	_, err = ParseDriver("redis")
	assert.Error(t, err)
}

func storages(t *testing.T) map[string]Storage {
	t.Helper()
	out := map[string]Storage{}
	for _, d := range []Driver{DriverFile, DriverSQLite} {
		st, err := Open(d, t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })
		out[string(d)] = st
	}
	return out
}

func TestStorageDrivers(t *testing.T) {
	ctx := context.Background()
	for name, st := range storages(t) {
		t.Run(name, func(t *testing.T) {
			_, err := st.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, st.Set(ctx, "k", []byte("v1")))
			require.NoError(t, st.Set(ctx, "k", []byte("v2")))
			got, err := st.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), got)
		})
	}
}

func TestLoadSave(t *testing.T) {
	ctx := context.Background()
	for name, st := range storages(t) {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, Default(), Load(ctx, st, nil))

			in := State{DraftText: "d", History: []string{"a"}, AutoCapture: false}
			require.NoError(t, Save(ctx, st, nil, in))
			assert.Equal(t, in, Load(ctx, st, nil))
		})
	}
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, AppKey+".state"), []byte("{broken"), 0o600))

	st := NewFileStorage(dir)
	assert.Equal(t, Default(), Load(context.Background(), st, nil))
}

func TestLoadKeepsUnopenableSealedState(t *testing.T) {
	ctx := context.Background()
	right, err := crypto.NewBox("right")
	require.NoError(t, err)
	wrong, err := crypto.NewBox("wrong")
	require.NoError(t, err)

	for name, st := range storages(t) {
		t.Run(name, func(t *testing.T) {
			orig := State{History: []string{"precious"}, AutoCapture: true}
			require.NoError(t, Save(ctx, st, right, orig))
			sealed, err := st.Get(ctx, AppKey)
			require.NoError(t, err)

			// Started without the passphrase, then autosaved.
			assert.Equal(t, Default(), Load(ctx, st, nil))
			require.NoError(t, Save(ctx, st, nil, Default()))

			kept, err := st.Get(ctx, SealedKey)
			require.NoError(t, err)
			assert.Equal(t, sealed, kept)

			// Started again with the wrong passphrase: the first copy stays.
			require.NoError(t, Save(ctx, st, wrong, Default()))
			assert.Equal(t, Default(), Load(ctx, st, right))
			kept, err = st.Get(ctx, SealedKey)
			require.NoError(t, err)
			assert.Equal(t, sealed, kept)
			_, err = st.Get(ctx, SealedKey+"-1")
			require.NoError(t, err)

			require.NoError(t, st.Set(ctx, AppKey, kept))
			assert.Equal(t, orig, Load(ctx, st, right))
		})
	}
}

func TestLoadMalformedPlainStateIsNotKept(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, AppKey+".state"), []byte("{broken"), 0o600))

	st := NewFileStorage(dir)
	Load(context.Background(), st, nil)
	_, err := st.Get(context.Background(), SealedKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStorageRejectsBadKeys(t *testing.T) {
	st := NewFileStorage(t.TempDir())
	assert.Error(t, st.Set(context.Background(), "../escape", []byte("x")))
	_, err := st.Get(context.Background(), "a/b")
	assert.Error(t, err)
}
