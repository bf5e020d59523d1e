package atlas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calderaengine/caldera/engine/core"
	"github.com/calderaengine/caldera/engine/renderer/software"
)

// fillPattern generates deterministic per-pixel bytes so misplaced rows
// or columns show up as value mismatches.
func fillPattern(w, h, channels int, seed byte) []byte {
	out := make([]byte, w*h*channels)
	for i := range out {
		out[i] = byte(i)*31 + seed
	}
	return out
}

func TestPageUploadReadBackRoundTrip(t *testing.T) {
	p, err := newPage(software.New(), 64, 64, 4)
	require.NoError(t, err)

	content := Rect{X: 8, Y: 8, Width: 16, Height: 12}
	pixels := fillPattern(16, 12, 4, 7)
	require.NoError(t, p.Upload(content, 1, pixels))

	got, err := p.ReadBack(content)
	require.NoError(t, err)
	assert.Equal(t, pixels, got)
}

func TestPageUploadReplicatesBorder(t *testing.T) {
	backend := software.New()
	p, err := newPage(backend, 32, 32, 4)
	require.NoError(t, err)

	content := Rect{X: 4, Y: 4, Width: 4, Height: 4}
	pixels := fillPattern(4, 4, 4, 0)
	const padding = 2
	require.NoError(t, p.Upload(content, padding, pixels))

	padded, err := p.ReadBack(content.inflate(padding))
	require.NoError(t, err)

	pw := content.Width + 2*padding
	at := func(buf []byte, stride, x, y int) []byte {
		i := (y*stride + x) * 4
		return buf[i : i+4]
	}

	// Every padding pixel must equal the nearest content pixel.
	corner := at(pixels, 4, 0, 0)
	assert.Equal(t, corner, at(padded, pw, 0, 0), "top-left corner replicates")
	assert.Equal(t, corner, at(padded, pw, 1, 1))
	assert.Equal(t, at(pixels, 4, 3, 3), at(padded, pw, pw-1, pw-1), "bottom-right corner replicates")
	assert.Equal(t, at(pixels, 4, 2, 0), at(padded, pw, 2+padding, 0), "top edge clamps vertically")
	assert.Equal(t, at(pixels, 4, 0, 1), at(padded, pw, 0, 1+padding), "left edge clamps horizontally")
	assert.Equal(t, at(pixels, 4, 1, 2), at(padded, pw, 1+padding, 2+padding), "interior is untouched")
}

func TestPageUploadRejectsBadLength(t *testing.T) {
	p, err := newPage(software.New(), 32, 32, 4)
	require.NoError(t, err)

	err = p.Upload(Rect{X: 1, Y: 1, Width: 4, Height: 4}, 1, make([]byte, 3))
	assert.ErrorIs(t, err, core.ErrInvalidImage)
}

func TestReplicateBorderSinglePixel(t *testing.T) {
	out := replicateBorder([]byte{9, 8, 7, 6}, 1, 1, 4, 1)
	require.Len(t, out, 3*3*4)
	for i := 0; i < 9; i++ {
		assert.Equal(t, []byte{9, 8, 7, 6}, out[i*4:i*4+4])
	}
}
