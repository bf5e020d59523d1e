package loaders

import (
	"path/filepath"

	"github.com/fzipp/bmfont"
)

type GlyphInfo struct {
	X        int
	Y        int
	Width    int
	Height   int
	XOffset  int
	YOffset  int
	XAdvance int
	Page     int
}

// BitmapFontData is a parsed AngelCode .fnt descriptor. Page paths are
// resolved relative to the descriptor file.
type BitmapFontData struct {
	Face       string
	Size       int
	LineHeight int
	Baseline   int
	Pages      map[int]string
	Glyphs     map[rune]GlyphInfo
	Kerning    map[[2]rune]int
}

type BitmapFontLoader struct{}

func (fl *BitmapFontLoader) Load(path string) (*BitmapFontData, error) {
	desc, err := bmfont.LoadDescriptor(path)
	if err != nil {
		return nil, err
	}

	data := &BitmapFontData{
		Face:       desc.Info.Face,
		Size:       desc.Info.Size,
		LineHeight: desc.Common.LineHeight,
		Baseline:   desc.Common.Base,
		Pages:      make(map[int]string, len(desc.Pages)),
		Glyphs:     make(map[rune]GlyphInfo, len(desc.Chars)),
		Kerning:    make(map[[2]rune]int, len(desc.Kerning)),
	}

	dir := filepath.Dir(path)
	for _, p := range desc.Pages {
		data.Pages[p.ID] = filepath.Join(dir, p.File)
	}
	for _, g := range desc.Chars {
		data.Glyphs[g.ID] = GlyphInfo{
			X:        g.X,
			Y:        g.Y,
			Width:    g.Width,
			Height:   g.Height,
			XOffset:  g.XOffset,
			YOffset:  g.YOffset,
			XAdvance: g.XAdvance,
			Page:     g.Page,
		}
	}
	for pair, k := range desc.Kerning {
		data.Kerning[[2]rune{pair.First, pair.Second}] = k.Amount
	}

	return data, nil
}
