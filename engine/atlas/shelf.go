package atlas

import (
	"fmt"

	"github.com/calderaengine/caldera/engine/core"
)

// shelf is one horizontal band of a page. Its height is fixed by the
// tallest item placed so far; cursor marks the used width.
type shelf struct {
	y      int
	height int
	cursor int
}

// shelfAllocator is the 2D bin-packer for one page. It knows nothing about
// pixels or surfaces; it only hands out non-overlapping rectangles.
//
// Placement is best-fit by shelf height to limit vertical waste, with
// identical-height shelves tried oldest first so newer shelves stay open
// for larger items. Freed rectangles go onto a side list that later
// allocations may reuse when they fit inside one; real defragmentation
// only happens through the page set's repack.
type shelfAllocator struct {
	width   int
	height  int
	shelves []shelf
	bottom  int
	// freed rectangles, stored inflated (padding included)
	freeRects []Rect
	usedArea  int
}

func newShelfAllocator(width, height int) *shelfAllocator {
	return &shelfAllocator{width: width, height: height}
}

// Allocate carves out room for a width x height image surrounded by
// padding replicated-border pixels on every side. The returned rectangle
// is the inner content area, inset from the carved rectangle by padding.
func (a *shelfAllocator) Allocate(width, height, padding int) (Rect, error) {
	if width <= 0 || height <= 0 {
		return Rect{}, fmt.Errorf("%w: %dx%d allocation", core.ErrInvalidImage, width, height)
	}
	iw := width + 2*padding
	ih := height + 2*padding
	if iw > a.width || ih > a.height {
		return Rect{}, fmt.Errorf("%w: %dx%d (padding %d) exceeds %dx%d page", core.ErrAtlasFull, width, height, padding, a.width, a.height)
	}

	if r, ok := a.allocateFromFreeList(iw, ih); ok {
		a.usedArea += iw * ih
		return r.inset(padding), nil
	}

	best := -1
	for i, s := range a.shelves {
		if s.height < ih || a.width-s.cursor < iw {
			continue
		}
		if best < 0 || s.height < a.shelves[best].height {
			best = i
		}
	}
	if best < 0 {
		if a.bottom+ih > a.height {
			return Rect{}, fmt.Errorf("%w: no shelf for %dx%d (padding %d)", core.ErrAtlasFull, width, height, padding)
		}
		a.shelves = append(a.shelves, shelf{y: a.bottom, height: ih})
		a.bottom += ih
		best = len(a.shelves) - 1
	}

	s := &a.shelves[best]
	carved := Rect{X: s.cursor, Y: s.y, Width: iw, Height: ih}
	s.cursor += iw
	a.usedArea += iw * ih
	return carved.inset(padding), nil
}

// Free returns a content rectangle (and its padding ring) to the side
// list for best-effort reuse.
func (a *shelfAllocator) Free(content Rect, padding int) {
	inflated := content.inflate(padding)
	a.freeRects = append(a.freeRects, inflated)
	a.usedArea -= inflated.Area()
}

// allocateFromFreeList picks the smallest freed rectangle that fits,
// keeping the right-hand remainder of the band reusable.
func (a *shelfAllocator) allocateFromFreeList(iw, ih int) (Rect, bool) {
	best := -1
	for i, fr := range a.freeRects {
		if fr.Width < iw || fr.Height < ih {
			continue
		}
		if best < 0 || fr.Area() < a.freeRects[best].Area() {
			best = i
		}
	}
	if best < 0 {
		return Rect{}, false
	}
	fr := a.freeRects[best]
	a.freeRects[best] = a.freeRects[len(a.freeRects)-1]
	a.freeRects = a.freeRects[:len(a.freeRects)-1]

	carved := Rect{X: fr.X, Y: fr.Y, Width: iw, Height: ih}
	if rem := fr.Width - iw; rem > 0 {
		a.freeRects = append(a.freeRects, Rect{X: fr.X + iw, Y: fr.Y, Width: rem, Height: fr.Height})
	}
	return carved, true
}

// Reset discards all allocation state, optionally adopting new bounds.
// Used by the page set when repacking after growth.
func (a *shelfAllocator) Reset(width, height int) {
	a.width = width
	a.height = height
	a.shelves = a.shelves[:0]
	a.freeRects = a.freeRects[:0]
	a.bottom = 0
	a.usedArea = 0
}

func (a *shelfAllocator) FreeArea() int {
	return a.width*a.height - a.usedArea
}
