package qr

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPNGSink_Render(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "qr_codes")
	sink, err := NewPNGSink(dir, "/tickets/", 128)
	require.NoError(t, err)

	ref, err := sink.Render(context.Background(), "t-abc123", strings.Repeat("A", 200))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "t-abc123.png"), ref.Path)
	assert.Equal(t, "/tickets/t-abc123.png", ref.URL)

	data, err := os.ReadFile(ref.Path)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestPNGSink_RejectsBadInput(t *testing.T) {
	sink, err := NewPNGSink(t.TempDir(), "", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultSize, sink.Size)
	ctx := context.Background()

	_, err = sink.Render(ctx, "../escape", "payload")
	assert.ErrorIs(t, err, ErrInvalidRef)

	_, err = sink.Render(ctx, "t-1", strings.Repeat("x", MaxPayloadLen+1))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	_, err = sink.Render(ctx, "t-1", "")
	assert.ErrorIs(t, err, ErrEmptyPayload)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = sink.Render(cancelled, "t-1", "payload")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPNGSink_Path(t *testing.T) {
	sink := &PNGSink{Dir: "/var/qr"}
	p, err := sink.Path("t-9")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/var/qr", "t-9.png"), p)

	_, err = sink.Path("a/b")
	assert.ErrorIs(t, err, ErrInvalidRef)
}

func TestNormalize(t *testing.T) {
	got, err := Normalize("  AQIDBA_-xyz\r\n")
	require.NoError(t, err)
	assert.Equal(t, "AQIDBA_-xyz", got)

	for _, bad := range []string{"", "   ", "abc=", "ab+c", "ab/c", "a b", "é"} {
		_, err := Normalize(bad)
		assert.Error(t, err, bad)
	}
}
