package atlas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calderaengine/caldera/engine/core"
)

func requireNoOverlap(t *testing.T, rects []Rect, padding int) {
	t.Helper()
	for i := 0; i < len(rects); i++ {
		for j := i + 1; j < len(rects); j++ {
			assert.False(t, rects[i].inflate(padding).Overlaps(rects[j].inflate(padding)),
				"padded regions %v and %v overlap", rects[i], rects[j])
		}
	}
}

func TestShelfAllocateNonOverlapping(t *testing.T) {
	a := newShelfAllocator(128, 128)

	sizes := [][2]int{{30, 20}, {50, 20}, {10, 5}, {40, 40}, {25, 20}, {60, 10}}
	var rects []Rect
	for _, s := range sizes {
		r, err := a.Allocate(s[0], s[1], 1)
		require.NoError(t, err)
		assert.Equal(t, s[0], r.Width)
		assert.Equal(t, s[1], r.Height)
		assert.True(t, (Rect{Width: 128, Height: 128}).Contains(r.inflate(1)))
		rects = append(rects, r)
	}
	requireNoOverlap(t, rects, 1)
}

func TestShelfBestFitByHeight(t *testing.T) {
	a := newShelfAllocator(256, 256)

	short, err := a.Allocate(50, 10, 0)
	require.NoError(t, err)
	tall, err := a.Allocate(50, 40, 0)
	require.NoError(t, err)
	require.NotEqual(t, short.Y, tall.Y)

	// A small item fits both shelves but must land on the shorter one.
	small, err := a.Allocate(20, 8, 0)
	require.NoError(t, err)
	assert.Equal(t, short.Y, small.Y)
}

func TestShelfAllocateFull(t *testing.T) {
	a := newShelfAllocator(64, 64)

	_, err := a.Allocate(64, 64, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, a.FreeArea())

	_, err = a.Allocate(1, 1, 0)
	assert.ErrorIs(t, err, core.ErrAtlasFull)
}

func TestShelfPaddingCounts(t *testing.T) {
	a := newShelfAllocator(64, 64)

	// 62 content + 2x1 padding fills the width exactly.
	_, err := a.Allocate(62, 10, 1)
	require.NoError(t, err)

	// One more column cannot fit beside it on the same shelf.
	r, err := a.Allocate(62, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, 13, r.Y, "second allocation opens a new shelf below")

	_, err = a.Allocate(64, 10, 1)
	assert.ErrorIs(t, err, core.ErrAtlasFull, "padded width exceeds the page")
}

func TestShelfFreeReuse(t *testing.T) {
	a := newShelfAllocator(64, 64)

	first, err := a.Allocate(64, 32, 0)
	require.NoError(t, err)
	second, err := a.Allocate(64, 32, 0)
	require.NoError(t, err)
	requireNoOverlap(t, []Rect{first, second}, 0)

	// The allocator is out of fresh space; freeing opens room again.
	_, err = a.Allocate(16, 16, 0)
	require.ErrorIs(t, err, core.ErrAtlasFull)

	a.Free(first, 0)
	reused, err := a.Allocate(16, 16, 0)
	require.NoError(t, err)
	assert.Equal(t, first.X, reused.X)
	assert.Equal(t, first.Y, reused.Y)

	// The remainder of the freed band stays reusable.
	beside, err := a.Allocate(48, 32, 0)
	require.NoError(t, err)
	requireNoOverlap(t, []Rect{reused, beside, second}, 0)
}

func TestShelfAllocateRejectsEmpty(t *testing.T) {
	a := newShelfAllocator(64, 64)
	_, err := a.Allocate(0, 10, 0)
	assert.ErrorIs(t, err, core.ErrInvalidImage)
	_, err = a.Allocate(10, -1, 0)
	assert.ErrorIs(t, err, core.ErrInvalidImage)
}

func TestShelfReset(t *testing.T) {
	a := newShelfAllocator(32, 32)
	_, err := a.Allocate(32, 32, 0)
	require.NoError(t, err)

	a.Reset(64, 64)
	assert.Equal(t, 64*64, a.FreeArea())
	r, err := a.Allocate(48, 48, 0)
	require.NoError(t, err)
	assert.Equal(t, Rect{X: 0, Y: 0, Width: 48, Height: 48}, r)
}
