package atlas

import (
	"fmt"
	"sort"

	"github.com/calderaengine/caldera/engine/core"
	emath "github.com/calderaengine/caldera/engine/math"
	"github.com/calderaengine/caldera/engine/renderer"
)

// AllocatedRegion is a placed rectangle on one page. The rectangle is the
// content area; the padding ring sits immediately around it.
type AllocatedRegion struct {
	PageIndex int
	Rect      Rect
	Padding   int
}

// GrowthPolicy bounds how the page set acquires new surface area.
type GrowthPolicy struct {
	InitialWidth  int
	InitialHeight int
	MaxWidth      int
	MaxHeight     int
	// MaxPages caps how many pages the set may create; zero means
	// unbounded. With pages already at the maximum size, reaching the
	// cap makes exhausted placements fail instead of growing.
	MaxPages int
}

// regionSource is the page set's view of the registry during a repack:
// the live, non-variant records resident on one page, in handle order.
type regionSource interface {
	residentsOn(pageIndex int) []*TextureRecord
}

// PageSet owns the ordered page collection and the growth protocol. When
// every page refuses a request it grows the last page, doubling its area
// up to the policy maximum, and repacks all live regions into the fresh
// space; failing that, it appends a new page at the initial size. Pages
// are destroyed only at Shutdown, never individually, to avoid
// GPU-resource churn.
type PageSet struct {
	backend  renderer.SurfaceBackend
	policy   GrowthPolicy
	channels int
	pages    []*Page
	source   regionSource
}

func NewPageSet(backend renderer.SurfaceBackend, policy GrowthPolicy, channels int) *PageSet {
	return &PageSet{
		backend:  backend,
		policy:   policy,
		channels: channels,
	}
}

func (ps *PageSet) bind(source regionSource) {
	ps.source = source
}

func (ps *PageSet) PageCount() int {
	return len(ps.pages)
}

func (ps *PageSet) Page(index int) *Page {
	return ps.pages[index]
}

func (ps *PageSet) Shutdown() {
	for _, p := range ps.pages {
		p.destroy()
	}
	ps.pages = nil
}

// Place finds room for a width x height image plus padding. Placement is
// all-or-nothing: on any failure path no page, allocator or record state
// has changed.
func (ps *PageSet) Place(width, height, padding int) (AllocatedRegion, error) {
	iw := width + 2*padding
	ih := height + 2*padding
	if iw > ps.policy.MaxWidth || ih > ps.policy.MaxHeight {
		core.MetricsAllocFailed()
		return AllocatedRegion{}, fmt.Errorf("%w: %dx%d (padding %d) exceeds %dx%d page maximum",
			core.ErrOversizedTexture, width, height, padding, ps.policy.MaxWidth, ps.policy.MaxHeight)
	}

	for i, p := range ps.pages {
		if r, err := p.alloc.Allocate(width, height, padding); err == nil {
			return AllocatedRegion{PageIndex: i, Rect: r, Padding: padding}, nil
		}
	}

	if len(ps.pages) > 0 {
		region, ok, err := ps.growLast(width, height, padding)
		if err != nil {
			return AllocatedRegion{}, err
		}
		if ok {
			return region, nil
		}
	}

	if ps.policy.MaxPages > 0 && len(ps.pages) >= ps.policy.MaxPages {
		core.MetricsAllocFailed()
		return AllocatedRegion{}, fmt.Errorf("%w: all %d pages exhausted, none can place %dx%d (padding %d)",
			core.ErrAtlasFull, ps.policy.MaxPages, width, height, padding)
	}

	page, err := newPage(ps.backend, ps.policy.InitialWidth, ps.policy.InitialHeight, ps.channels)
	if err != nil {
		return AllocatedRegion{}, err
	}
	ps.pages = append(ps.pages, page)
	index := len(ps.pages) - 1
	core.LogDebug("atlas page %d created at %dx%d", index, page.width, page.height)

	if r, err := page.alloc.Allocate(width, height, padding); err == nil {
		return AllocatedRegion{PageIndex: index, Rect: r, Padding: padding}, nil
	}

	region, ok, err := ps.growLast(width, height, padding)
	if err != nil {
		return AllocatedRegion{}, err
	}
	if ok {
		return region, nil
	}

	core.MetricsAllocFailed()
	return AllocatedRegion{}, fmt.Errorf("%w: no page can place %dx%d (padding %d)", core.ErrAtlasFull, width, height, padding)
}

// free returns a region to its page's allocator for best-effort reuse.
func (ps *PageSet) free(region AllocatedRegion) {
	ps.pages[region.PageIndex].alloc.Free(region.Rect, region.Padding)
}

// growLast doubles the last page until the pending request packs, or
// reports ok=false once the page has reached the policy maximum. On
// success every relocated record has been updated and re-uploaded.
func (ps *PageSet) growLast(width, height, padding int) (AllocatedRegion, bool, error) {
	index := len(ps.pages) - 1
	page := ps.pages[index]

	newW, newH := page.width, page.height
	for {
		grownW, grownH := ps.grownDims(newW, newH)
		if grownW == newW && grownH == newH {
			return AllocatedRegion{}, false, nil
		}
		newW, newH = grownW, grownH

		plan, pending, ok := ps.planRepack(index, newW, newH, width, height, padding)
		if !ok {
			continue
		}
		if err := ps.commitRepack(index, newW, newH, plan); err != nil {
			return AllocatedRegion{}, false, err
		}
		core.LogInfo("atlas page %d grown to %dx%d, %d regions repacked", index, newW, newH, len(plan.records))
		return AllocatedRegion{PageIndex: index, Rect: pending, Padding: padding}, true, nil
	}
}

// grownDims doubles the page area, extending height before width, each
// dimension capped by the policy.
func (ps *PageSet) grownDims(w, h int) (int, int) {
	if h < ps.policy.MaxHeight {
		return w, emath.Min(h*2, ps.policy.MaxHeight)
	}
	if w < ps.policy.MaxWidth {
		return emath.Min(w*2, ps.policy.MaxWidth), h
	}
	return w, h
}

type repackPlan struct {
	alloc   *shelfAllocator
	records []*TextureRecord
	rects   []Rect
}

// planRepack trial-packs every live region of the page, largest first,
// plus the pending request into fresh allocator state of the grown size.
// It mutates nothing; a failed plan leaves the page untouched.
func (ps *PageSet) planRepack(pageIndex, newW, newH, width, height, padding int) (repackPlan, Rect, bool) {
	records := ps.source.residentsOn(pageIndex)
	// Largest first to minimize fragmentation; stable keeps handle order
	// on equal areas.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Region.Rect.Area() > records[j].Region.Rect.Area()
	})

	plan := repackPlan{
		alloc:   newShelfAllocator(newW, newH),
		records: records,
		rects:   make([]Rect, len(records)),
	}
	for i, rec := range records {
		r, err := plan.alloc.Allocate(rec.Region.Rect.Width, rec.Region.Rect.Height, rec.Region.Padding)
		if err != nil {
			return repackPlan{}, Rect{}, false
		}
		plan.rects[i] = r
	}
	pending, err := plan.alloc.Allocate(width, height, padding)
	if err != nil {
		return repackPlan{}, Rect{}, false
	}
	return plan, pending, true
}

// commitRepack reads every moving region's pixels out of the old layout,
// resizes the surface, then swaps in the planned allocator state and
// re-uploads. Backend failures here are session-fatal per the error
// policy; bookkeeping stays internally consistent regardless.
func (ps *PageSet) commitRepack(pageIndex, newW, newH int, plan repackPlan) error {
	page := ps.pages[pageIndex]

	pixels := make([][]byte, len(plan.records))
	for i, rec := range plan.records {
		if rec.retained != nil {
			pixels[i] = rec.retained
			continue
		}
		px, err := page.ReadBack(rec.Region.Rect)
		if err != nil {
			return err
		}
		pixels[i] = px
	}

	if err := page.resize(newW, newH); err != nil {
		return err
	}
	page.alloc = plan.alloc

	for i, rec := range plan.records {
		rec.Region.Rect = plan.rects[i]
		if err := page.Upload(rec.Region.Rect, rec.Region.Padding, pixels[i]); err != nil {
			return err
		}
	}

	core.MetricsPageGrown()
	core.MetricsRepacked()
	return nil
}
