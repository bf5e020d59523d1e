package systems

import (
	"fmt"

	"github.com/calderaengine/caldera/engine/assets"
	"github.com/calderaengine/caldera/engine/assets/loaders"
	"github.com/calderaengine/caldera/engine/atlas"
	"github.com/calderaengine/caldera/engine/core"
)

// GlyphPlacement is everything a text renderer needs to draw one glyph:
// where the glyph lives in the atlas and its layout metrics from the
// font descriptor.
type GlyphPlacement struct {
	Handle    atlas.Handle
	Placement atlas.Placement
	Width     int
	Height    int
	XOffset   int
	YOffset   int
	XAdvance  int
}

type fontLookup struct {
	data           *loaders.BitmapFontData
	glyphs         map[rune]atlas.Handle
	referenceCount uint16
}

// FontSystem makes bitmap-font glyphs resident in the atlas. Acquiring
// a face slices every glyph cell out of the font's sheet images and
// acquires each one as its own texture; faces are refcounted so
// repeated acquires of the same face share the resident glyphs.
type FontSystem struct {
	atlas        *atlas.Atlas
	assetManager *assets.AssetManager
	faces        map[string]*fontLookup
}

func NewFontSystem(a *atlas.Atlas, am *assets.AssetManager) *FontSystem {
	return &FontSystem{
		atlas:        a,
		assetManager: am,
		faces:        make(map[string]*fontLookup),
	}
}

// AcquireFace loads the descriptor at descPath and makes every glyph of
// the face resident. Acquiring an already loaded face only bumps its
// reference count.
func (fs *FontSystem) AcquireFace(name, descPath string) error {
	if lookup, ok := fs.faces[name]; ok {
		lookup.referenceCount++
		return nil
	}

	data, err := fs.assetManager.LoadBitmapFont(descPath)
	if err != nil {
		return err
	}

	sheets := make(map[int]*loaders.ImageData, len(data.Pages))
	for id, file := range data.Pages {
		sheet, err := fs.assetManager.LoadImage(file)
		if err != nil {
			return err
		}
		sheets[id] = sheet
	}

	lookup := &fontLookup{
		data:           data,
		glyphs:         make(map[rune]atlas.Handle, len(data.Glyphs)),
		referenceCount: 1,
	}

	for codepoint, glyph := range data.Glyphs {
		if glyph.Width <= 0 || glyph.Height <= 0 {
			continue
		}
		sheet, ok := sheets[glyph.Page]
		if !ok {
			fs.releaseGlyphs(lookup)
			return fmt.Errorf("font %s: glyph %d references missing page %d", name, codepoint, glyph.Page)
		}
		cell, err := sliceCell(sheet, glyph.X, glyph.Y, glyph.Width, glyph.Height)
		if err != nil {
			fs.releaseGlyphs(lookup)
			return fmt.Errorf("font %s: glyph %d: %w", name, codepoint, err)
		}
		id := fmt.Sprintf("%s:%d", name, codepoint)
		handle, err := fs.atlas.Textures.Acquire(id, cell, glyph.Width, glyph.Height)
		if err != nil {
			fs.releaseGlyphs(lookup)
			return fmt.Errorf("font %s: glyph %d: %w", name, codepoint, err)
		}
		lookup.glyphs[codepoint] = handle
	}

	fs.faces[name] = lookup
	core.LogInfo("font face '%s' resident with %d glyphs", name, len(lookup.glyphs))
	return nil
}

// ReleaseFace drops one reference to the face. When the last reference
// goes away every glyph texture is released.
func (fs *FontSystem) ReleaseFace(name string) error {
	lookup, ok := fs.faces[name]
	if !ok {
		return fmt.Errorf("font face '%s' is not loaded", name)
	}
	lookup.referenceCount--
	if lookup.referenceCount > 0 {
		return nil
	}
	fs.releaseGlyphs(lookup)
	delete(fs.faces, name)
	return nil
}

// GlyphPlacement resolves a glyph of a loaded face to its atlas
// placement and metrics.
func (fs *FontSystem) GlyphPlacement(face string, codepoint rune) (GlyphPlacement, error) {
	lookup, ok := fs.faces[face]
	if !ok {
		return GlyphPlacement{}, fmt.Errorf("font face '%s' is not loaded", face)
	}
	handle, ok := lookup.glyphs[codepoint]
	if !ok {
		return GlyphPlacement{}, fmt.Errorf("font face '%s' has no glyph for codepoint %d", face, codepoint)
	}
	placement, err := fs.atlas.Textures.Lookup(handle)
	if err != nil {
		return GlyphPlacement{}, err
	}
	glyph := lookup.data.Glyphs[codepoint]
	return GlyphPlacement{
		Handle:    handle,
		Placement: placement,
		Width:     glyph.Width,
		Height:    glyph.Height,
		XOffset:   glyph.XOffset,
		YOffset:   glyph.YOffset,
		XAdvance:  glyph.XAdvance,
	}, nil
}

// MeasureString returns the advance width of the text in pixels,
// kerning included. Glyphs the face does not cover contribute nothing.
func (fs *FontSystem) MeasureString(face, text string) (int, error) {
	lookup, ok := fs.faces[face]
	if !ok {
		return 0, fmt.Errorf("font face '%s' is not loaded", face)
	}
	width := 0
	var prev rune = -1
	for _, codepoint := range text {
		glyph, ok := lookup.data.Glyphs[codepoint]
		if !ok {
			prev = -1
			continue
		}
		width += glyph.XAdvance
		if prev >= 0 {
			width += lookup.data.Kerning[[2]rune{prev, codepoint}]
		}
		prev = codepoint
	}
	return width, nil
}

// LineHeight returns the line height of a loaded face.
func (fs *FontSystem) LineHeight(face string) (int, error) {
	lookup, ok := fs.faces[face]
	if !ok {
		return 0, fmt.Errorf("font face '%s' is not loaded", face)
	}
	return lookup.data.LineHeight, nil
}

func (fs *FontSystem) Shutdown() {
	for name, lookup := range fs.faces {
		fs.releaseGlyphs(lookup)
		delete(fs.faces, name)
	}
}

func (fs *FontSystem) releaseGlyphs(lookup *fontLookup) {
	for codepoint, handle := range lookup.glyphs {
		if err := fs.atlas.Textures.Release(handle); err != nil {
			core.LogWarn("releasing glyph %d: %s", codepoint, err.Error())
		}
		delete(lookup.glyphs, codepoint)
	}
}

// sliceCell copies a tightly packed RGBA sub-rectangle out of a sheet
// image.
func sliceCell(sheet *loaders.ImageData, x, y, width, height int) ([]byte, error) {
	if x < 0 || y < 0 || x+width > sheet.Width || y+height > sheet.Height {
		return nil, fmt.Errorf("%w: cell (%d,%d %dx%d) outside %dx%d sheet",
			core.ErrInvalidImage, x, y, width, height, sheet.Width, sheet.Height)
	}
	const channels = 4
	cell := make([]byte, width*height*channels)
	rowBytes := width * channels
	for row := 0; row < height; row++ {
		src := ((y+row)*sheet.Width + x) * channels
		copy(cell[row*rowBytes:], sheet.Pixels[src:src+rowBytes])
	}
	return cell, nil
}
