package atlas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calderaengine/caldera/engine/core"
)

func TestSyncFlushRoundTrip(t *testing.T) {
	a := newTestAtlas(t, 128, 128, 1)

	original := fillPattern(32, 32, 4, 1)
	h, err := a.Textures.Acquire("tex", original, 32, 32)
	require.NoError(t, err)

	edited := fillPattern(32, 32, 4, 99)
	require.NoError(t, a.Sync.SetPixels(h, edited))

	// Until the flush the GPU copy is the old content.
	got, err := a.Sync.ReadCurrent(h)
	require.NoError(t, err)
	assert.Equal(t, original, got)

	require.NoError(t, a.Sync.Flush(h))
	got, err = a.Sync.ReadCurrent(h)
	require.NoError(t, err)
	assert.Equal(t, edited, got)
}

func TestSyncFlushCleanIsNoOp(t *testing.T) {
	a := newTestAtlas(t, 128, 128, 0)

	h, err := a.Textures.Acquire("tex", fillPattern(16, 16, 4, 1), 16, 16)
	require.NoError(t, err)
	assert.NoError(t, a.Sync.Flush(h))
}

func TestSyncDirtyWithoutMirrorFails(t *testing.T) {
	a := newTestAtlas(t, 128, 128, 0)

	h, err := a.Textures.Acquire("tex", fillPattern(16, 16, 4, 1), 16, 16)
	require.NoError(t, err)
	require.NoError(t, a.Sync.MarkDirty(h))

	err = a.Sync.Flush(h)
	assert.ErrorIs(t, err, core.ErrInvalidImage)
}

func TestSyncRetainValidatesLength(t *testing.T) {
	a := newTestAtlas(t, 128, 128, 0)

	h, err := a.Textures.Acquire("tex", fillPattern(16, 16, 4, 1), 16, 16)
	require.NoError(t, err)
	err = a.Sync.Retain(h, make([]byte, 5))
	assert.ErrorIs(t, err, core.ErrInvalidImage)
}

func TestSyncDiscardDropsMirror(t *testing.T) {
	a := newTestAtlas(t, 128, 128, 0)

	h, err := a.Textures.Acquire("tex", fillPattern(16, 16, 4, 1), 16, 16)
	require.NoError(t, err)
	require.NoError(t, a.Sync.Retain(h, fillPattern(16, 16, 4, 2)))
	require.NoError(t, a.Sync.Discard(h))

	require.NoError(t, a.Sync.MarkDirty(h))
	err = a.Sync.Flush(h)
	assert.ErrorIs(t, err, core.ErrInvalidImage, "discard removed the flush source")
}

func TestSyncOnVariantActsOnBase(t *testing.T) {
	a := newTestAtlas(t, 128, 128, 0)

	base, err := a.Textures.Acquire("base", fillPattern(16, 16, 4, 1), 16, 16)
	require.NoError(t, err)
	variant, err := a.Textures.AcquireVariant("flip", base, TransformFlipX)
	require.NoError(t, err)

	edited := fillPattern(16, 16, 4, 42)
	require.NoError(t, a.Sync.SetPixels(variant, edited))
	require.NoError(t, a.Sync.Flush(variant))

	got, err := a.Sync.ReadCurrent(base)
	require.NoError(t, err)
	assert.Equal(t, edited, got, "variant sync writes through to the base storage")
}

// A retained mirror doubles as the repack source, so pixels survive
// growth even if the GPU copy were unreadable.
func TestSyncRetainedMirrorUsedDuringRepack(t *testing.T) {
	a := newTestAtlas(t, 64, 256, 0)

	first := fillPattern(64, 64, 4, 1)
	h1, err := a.Textures.Acquire("m1", first, 64, 64)
	require.NoError(t, err)
	require.NoError(t, a.Sync.Retain(h1, first))

	// Forces growth and a repack of h1.
	h2, err := a.Textures.Acquire("m2", fillPattern(64, 64, 4, 2), 64, 64)
	require.NoError(t, err)

	got, err := a.Sync.ReadCurrent(h1)
	require.NoError(t, err)
	assert.Equal(t, first, got)
	got, err = a.Sync.ReadCurrent(h2)
	require.NoError(t, err)
	assert.Equal(t, fillPattern(64, 64, 4, 2), got)
}
