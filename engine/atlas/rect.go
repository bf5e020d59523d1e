package atlas

// Rect is an integer rectangle in page pixel coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

func (r Rect) Area() int {
	return r.Width * r.Height
}

func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

func (r Rect) Contains(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y &&
		o.X+o.Width <= r.X+r.Width && o.Y+o.Height <= r.Y+r.Height
}

// inflate grows the rectangle by p pixels on every side.
func (r Rect) inflate(p int) Rect {
	return Rect{X: r.X - p, Y: r.Y - p, Width: r.Width + 2*p, Height: r.Height + 2*p}
}

// inset shrinks the rectangle by p pixels on every side.
func (r Rect) inset(p int) Rect {
	return Rect{X: r.X + p, Y: r.Y + p, Width: r.Width - 2*p, Height: r.Height - 2*p}
}

// UVRect is a normalized texture-coordinate rectangle on one page.
type UVRect struct {
	U0 float32
	V0 float32
	U1 float32
	V1 float32
}

func uvFor(r Rect, pageWidth, pageHeight int) UVRect {
	return UVRect{
		U0: float32(r.X) / float32(pageWidth),
		V0: float32(r.Y) / float32(pageHeight),
		U1: float32(r.X+r.Width) / float32(pageWidth),
		V1: float32(r.Y+r.Height) / float32(pageHeight),
	}
}

// Transform is a flip/rotation applied to a variant's coordinates before
// sampling its base record's region. The representation is an axis swap
// followed by per-axis mirrors, which closes the set under composition
// (a flip of a rotation is still expressible).
type Transform uint8

const (
	transformSwapBit  Transform = 1 << 0
	transformFlipXBit Transform = 1 << 1
	transformFlipYBit Transform = 1 << 2

	TransformIdentity Transform = 0
	TransformFlipX    Transform = transformFlipXBit
	TransformFlipY    Transform = transformFlipYBit
	// TransformRotate90 rotates a quarter turn clockwise.
	TransformRotate90 Transform = transformSwapBit | transformFlipXBit
)

// Compose returns the transform equivalent to applying first, then t.
func (t Transform) Compose(first Transform) Transform {
	flips := first & (transformFlipXBit | transformFlipYBit)
	if t&transformSwapBit != 0 {
		// The axis swap exchanges which axis the earlier mirrors act on.
		swapped := Transform(0)
		if flips&transformFlipXBit != 0 {
			swapped |= transformFlipYBit
		}
		if flips&transformFlipYBit != 0 {
			swapped |= transformFlipXBit
		}
		flips = swapped
	}
	return (t&(transformFlipXBit|transformFlipYBit))^flips |
		(t^first)&transformSwapBit
}

// Apply maps a normalized coordinate in the variant's frame to the
// corresponding normalized coordinate within the base content rectangle.
func (t Transform) Apply(u, v float32) (float32, float32) {
	if t&transformSwapBit != 0 {
		u, v = v, u
	}
	if t&transformFlipXBit != 0 {
		u = 1 - u
	}
	if t&transformFlipYBit != 0 {
		v = 1 - v
	}
	return u, v
}

func (t Transform) String() string {
	switch t {
	case TransformIdentity:
		return "identity"
	case TransformFlipX:
		return "flip_x"
	case TransformFlipY:
		return "flip_y"
	case TransformRotate90:
		return "rotate_90"
	}
	return "composite"
}
