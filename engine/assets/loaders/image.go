package loaders

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"

	"github.com/calderaengine/caldera/engine/core"
)

// ImageData is a decoded image normalized to tightly packed 8-bit RGBA.
type ImageData struct {
	Width  int
	Height int
	Pixels []byte
}

type ImageLoader struct{}

// Load decodes a PNG, JPEG or BMP file and converts it to RGBA. The
// returned pixel slice has no row padding.
func (il *ImageLoader) Load(path string) (*ImageData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", core.ErrInvalidImage, path, err)
	}

	bounds := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.Draw(rgba, rgba.Bounds(), src, bounds.Min, xdraw.Src)

	return &ImageData{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Pixels: rgba.Pix,
	}, nil
}
