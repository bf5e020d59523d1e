package atlas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRectOverlapsAndContains(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	b := Rect{X: 9, Y: 9, Width: 5, Height: 5}
	c := Rect{X: 10, Y: 0, Width: 5, Height: 5}

	assert.True(t, a.Overlaps(b))
	assert.True(t, b.Overlaps(a))
	assert.False(t, a.Overlaps(c), "touching edges do not overlap")

	assert.True(t, a.Contains(Rect{X: 2, Y: 3, Width: 4, Height: 5}))
	assert.False(t, a.Contains(b))
	assert.True(t, a.Contains(a))
}

func TestRectInflateInsetRoundTrip(t *testing.T) {
	r := Rect{X: 5, Y: 7, Width: 20, Height: 12}
	assert.Equal(t, r, r.inflate(3).inset(3))
	assert.Equal(t, Rect{X: 4, Y: 6, Width: 22, Height: 14}, r.inflate(1))
}

func TestUVForMatchesPixelRect(t *testing.T) {
	uv := uvFor(Rect{X: 64, Y: 128, Width: 32, Height: 16}, 256, 512)
	assert.InDelta(t, 0.25, uv.U0, 1e-6)
	assert.InDelta(t, 0.25, uv.V0, 1e-6)
	assert.InDelta(t, 0.375, uv.U1, 1e-6)
	assert.InDelta(t, 0.28125, uv.V1, 1e-6)
}

func allTransforms() []Transform {
	out := make([]Transform, 0, 8)
	for bits := Transform(0); bits < 8; bits++ {
		out = append(out, bits)
	}
	return out
}

func TestTransformApplyBasics(t *testing.T) {
	u, v := TransformIdentity.Apply(0.25, 0.75)
	assert.Equal(t, float32(0.25), u)
	assert.Equal(t, float32(0.75), v)

	u, v = TransformFlipX.Apply(0.25, 0.75)
	assert.Equal(t, float32(0.75), u)
	assert.Equal(t, float32(0.75), v)

	u, v = TransformFlipY.Apply(0.25, 0.75)
	assert.Equal(t, float32(0.25), u)
	assert.Equal(t, float32(0.25), v)

	// A quarter turn sends the top-left corner to the top-right.
	u, v = TransformRotate90.Apply(0, 0)
	assert.Equal(t, float32(1), u)
	assert.Equal(t, float32(0), v)
}

// Compose must agree with function composition of Apply: the argument
// transform maps first, the receiver maps the result.
func TestTransformComposeMatchesApply(t *testing.T) {
	points := [][2]float32{{0, 0}, {1, 0}, {0, 1}, {0.25, 0.75}, {0.5, 0.5}}
	for _, outer := range allTransforms() {
		for _, inner := range allTransforms() {
			composed := outer.Compose(inner)
			for _, p := range points {
				iu, iv := inner.Apply(p[0], p[1])
				wantU, wantV := outer.Apply(iu, iv)
				gotU, gotV := composed.Apply(p[0], p[1])
				require.Equal(t, wantU, gotU, "outer=%v inner=%v point=%v", outer, inner, p)
				require.Equal(t, wantV, gotV, "outer=%v inner=%v point=%v", outer, inner, p)
			}
		}
	}
}

func TestTransformComposeIdentities(t *testing.T) {
	for _, tr := range allTransforms() {
		assert.Equal(t, tr, tr.Compose(TransformIdentity))
		assert.Equal(t, tr, TransformIdentity.Compose(tr))
	}

	// Two quarter turns are a half turn; four are the identity.
	half := TransformRotate90.Compose(TransformRotate90)
	assert.Equal(t, TransformFlipX|TransformFlipY, half)
	assert.Equal(t, TransformIdentity, half.Compose(half))

	// Mirrors are involutions.
	assert.Equal(t, TransformIdentity, TransformFlipX.Compose(TransformFlipX))
	assert.Equal(t, TransformIdentity, TransformFlipY.Compose(TransformFlipY))
}
