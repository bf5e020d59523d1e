package atlas

import (
	"fmt"

	"github.com/calderaengine/caldera/engine/core"
	emath "github.com/calderaengine/caldera/engine/math"
	"github.com/calderaengine/caldera/engine/renderer"
)

// Page is one GPU-resident surface plus the allocator tracking its free
// space. It is a thin adapter over the surface backend: upload replicates
// the border-padding ring, read-back copies exactly the requested area.
type Page struct {
	surface  renderer.SurfaceID
	backend  renderer.SurfaceBackend
	width    int
	height   int
	channels int
	alloc    *shelfAllocator
}

func newPage(backend renderer.SurfaceBackend, width, height, channels int) (*Page, error) {
	id, err := backend.SurfaceCreate(width, height, channels)
	if err != nil {
		return nil, fmt.Errorf("%w: create %dx%d page: %v", core.ErrBackendFailure, width, height, err)
	}
	core.MetricsPageCreated()
	return &Page{
		surface:  id,
		backend:  backend,
		width:    width,
		height:   height,
		channels: channels,
		alloc:    newShelfAllocator(width, height),
	}, nil
}

func (p *Page) Width() int  { return p.width }
func (p *Page) Height() int { return p.height }

// Upload writes content pixels (len = content.Width * content.Height *
// channels) into the page, filling the surrounding padding ring with the
// replicated outermost content pixels so bilinear sampling never bleeds
// across neighboring regions.
//
// A rectangle outside the page bounds is an allocator bug upstream and
// aborts loudly.
func (p *Page) Upload(content Rect, padding int, pixels []byte) error {
	padded := content.inflate(padding)
	p.mustContain(padded)
	if len(pixels) != content.Width*content.Height*p.channels {
		return fmt.Errorf("%w: %d pixel bytes for %dx%d content", core.ErrInvalidImage, len(pixels), content.Width, content.Height)
	}

	buf := pixels
	rect := content
	if padding > 0 {
		buf = replicateBorder(pixels, content.Width, content.Height, p.channels, padding)
		rect = padded
	}
	if err := p.backend.SurfaceUpload(p.surface, subRect(rect), buf); err != nil {
		return fmt.Errorf("%w: upload: %v", core.ErrBackendFailure, err)
	}
	core.MetricsUploaded(int64(len(buf)))
	return nil
}

// ReadBack copies exactly the requested content rectangle back to the CPU.
func (p *Page) ReadBack(content Rect) ([]byte, error) {
	p.mustContain(content)
	pixels, err := p.backend.SurfaceReadBack(p.surface, subRect(content))
	if err != nil {
		return nil, fmt.Errorf("%w: read-back: %v", core.ErrBackendFailure, err)
	}
	core.MetricsReadBack(int64(len(pixels)))
	return pixels, nil
}

func (p *Page) resize(width, height int) error {
	if err := p.backend.SurfaceResize(p.surface, width, height); err != nil {
		return fmt.Errorf("%w: resize to %dx%d: %v", core.ErrBackendFailure, width, height, err)
	}
	p.width = width
	p.height = height
	return nil
}

func (p *Page) destroy() {
	if err := p.backend.SurfaceDestroy(p.surface); err != nil {
		core.LogError("page surface destroy failed: %s", err.Error())
	}
}

func (p *Page) mustContain(r Rect) {
	bounds := Rect{Width: p.width, Height: p.height}
	if !bounds.Contains(r) {
		core.LogFatal("page rect (%d,%d %dx%d) escapes %dx%d bounds; allocator state is corrupt", r.X, r.Y, r.Width, r.Height, p.width, p.height)
	}
}

func subRect(r Rect) renderer.SubRect {
	return renderer.SubRect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

// replicateBorder returns a (w+2p) x (h+2p) buffer holding the content
// with its outer 1-pixel ring repeated p times outward. Every padding
// pixel clamps to the nearest content pixel, corners included.
func replicateBorder(pixels []byte, w, h, channels, p int) []byte {
	pw := w + 2*p
	ph := h + 2*p
	out := make([]byte, pw*ph*channels)
	for y := 0; y < ph; y++ {
		srcY := emath.Clamp(y-p, 0, h-1)
		for x := 0; x < pw; x++ {
			srcX := emath.Clamp(x-p, 0, w-1)
			src := (srcY*w + srcX) * channels
			dst := (y*pw + x) * channels
			copy(out[dst:dst+channels], pixels[src:src+channels])
		}
	}
	return out
}
