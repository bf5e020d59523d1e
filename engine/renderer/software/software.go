package software

import (
	"fmt"

	"github.com/calderaengine/caldera/engine/core"
	"github.com/calderaengine/caldera/engine/renderer"
)

type surface struct {
	width    int
	height   int
	channels int
	pixels   []byte
}

// Backend keeps every surface in host memory. It is the reference
// implementation of the surface contract and what the test suite runs
// against; headless tools use it to pack atlases without a device.
type Backend struct {
	surfaces map[renderer.SurfaceID]*surface
	nextID   renderer.SurfaceID
}

func New() *Backend {
	return &Backend{
		surfaces: make(map[renderer.SurfaceID]*surface),
		nextID:   renderer.InvalidSurface + 1,
	}
}

func (b *Backend) Initialize() error {
	return nil
}

func (b *Backend) Shutdown() error {
	b.surfaces = make(map[renderer.SurfaceID]*surface)
	return nil
}

func (b *Backend) SurfaceCreate(width, height, channels int) (renderer.SurfaceID, error) {
	if width <= 0 || height <= 0 || channels <= 0 {
		return renderer.InvalidSurface, fmt.Errorf("%w: surface dimensions %dx%dx%d", core.ErrBackendFailure, width, height, channels)
	}
	id := b.nextID
	b.nextID++
	b.surfaces[id] = &surface{
		width:    width,
		height:   height,
		channels: channels,
		pixels:   make([]byte, width*height*channels),
	}
	return id, nil
}

func (b *Backend) SurfaceResize(id renderer.SurfaceID, width, height int) error {
	s, err := b.lookup(id)
	if err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: resize to %dx%d", core.ErrBackendFailure, width, height)
	}
	resized := make([]byte, width*height*s.channels)
	copyW := min(width, s.width)
	copyH := min(height, s.height)
	for y := 0; y < copyH; y++ {
		src := s.pixels[y*s.width*s.channels : (y*s.width+copyW)*s.channels]
		copy(resized[y*width*s.channels:], src)
	}
	s.width = width
	s.height = height
	s.pixels = resized
	return nil
}

func (b *Backend) SurfaceUpload(id renderer.SurfaceID, r renderer.SubRect, pixels []byte) error {
	s, err := b.lookup(id)
	if err != nil {
		return err
	}
	if err := s.checkBounds(r); err != nil {
		return err
	}
	if len(pixels) != r.Width*r.Height*s.channels {
		return fmt.Errorf("%w: upload of %d bytes into %dx%d rect", core.ErrBackendFailure, len(pixels), r.Width, r.Height)
	}
	rowBytes := r.Width * s.channels
	for y := 0; y < r.Height; y++ {
		dst := ((r.Y+y)*s.width + r.X) * s.channels
		copy(s.pixels[dst:dst+rowBytes], pixels[y*rowBytes:])
	}
	return nil
}

func (b *Backend) SurfaceReadBack(id renderer.SurfaceID, r renderer.SubRect) ([]byte, error) {
	s, err := b.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := s.checkBounds(r); err != nil {
		return nil, err
	}
	out := make([]byte, r.Width*r.Height*s.channels)
	rowBytes := r.Width * s.channels
	for y := 0; y < r.Height; y++ {
		src := ((r.Y+y)*s.width + r.X) * s.channels
		copy(out[y*rowBytes:], s.pixels[src:src+rowBytes])
	}
	return out, nil
}

func (b *Backend) SurfaceDestroy(id renderer.SurfaceID) error {
	if _, err := b.lookup(id); err != nil {
		return err
	}
	delete(b.surfaces, id)
	return nil
}

func (b *Backend) lookup(id renderer.SurfaceID) (*surface, error) {
	s, ok := b.surfaces[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown surface %d", core.ErrBackendFailure, id)
	}
	return s, nil
}

func (s *surface) checkBounds(r renderer.SubRect) error {
	if r.X < 0 || r.Y < 0 || r.Width <= 0 || r.Height <= 0 ||
		r.X+r.Width > s.width || r.Y+r.Height > s.height {
		return fmt.Errorf("%w: rect (%d,%d %dx%d) outside %dx%d surface", core.ErrBackendFailure, r.X, r.Y, r.Width, r.Height, s.width, s.height)
	}
	return nil
}
