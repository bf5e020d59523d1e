package renderer

// SurfaceID identifies one GPU-resident surface owned by a backend.
type SurfaceID uint32

// InvalidSurface is never returned by a successful SurfaceCreate.
const InvalidSurface SurfaceID = 0

// SubRect addresses a rectangular sub-area of a surface in pixels.
type SubRect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// SurfaceBackend is the capability the atlas consumes from the graphics
// device: create, resize, upload and read back rectangular pixel surfaces.
//
// All methods must be called from the single GPU-access thread. Backends
// provide no internal locking; that is a caller contract, not a backend
// concern.
type SurfaceBackend interface {
	Initialize() error
	Shutdown() error
	// SurfaceCreate allocates a width x height surface with the given number
	// of byte channels per pixel.
	SurfaceCreate(width, height, channels int) (SurfaceID, error)
	// SurfaceResize resizes a surface. Pixel content of the overlapping area
	// is preserved; newly exposed area is undefined.
	SurfaceResize(id SurfaceID, width, height int) error
	// SurfaceUpload writes tightly-packed pixels (len = r.Width * r.Height *
	// channels) into the surface at r.
	SurfaceUpload(id SurfaceID, r SubRect, pixels []byte) error
	// SurfaceReadBack copies exactly r out of the surface into a fresh,
	// tightly-packed buffer.
	SurfaceReadBack(id SurfaceID, r SubRect) ([]byte, error)
	SurfaceDestroy(id SurfaceID) error
}
