package atlas

import (
	"fmt"
	"hash/fnv"
	"math"

	"github.com/calderaengine/caldera/engine/core"
	"github.com/google/uuid"
)

// Handle is the opaque caller-facing identifier for a resident texture.
type Handle = uint32

// InvalidHandle marks an empty registry slot.
const InvalidHandle Handle = math.MaxUint32

// TextureRecord tracks one logical texture's placement. Variant records
// own no region of their own; they alias the storage of their base record
// through VariantOf and carry only a coordinate transform.
type TextureRecord struct {
	Handle     Handle
	LogicalID  string
	Width      int
	Height     int
	Region     AllocatedRegion
	VariantOf  Handle
	Transform  Transform
	Dirty      bool
	RefCount   uint32
	ContentKey uint64
	// retained is the opt-in CPU pixel mirror managed by the sync manager.
	retained []byte
}

func (r *TextureRecord) isVariant() bool {
	return r.VariantOf != InvalidHandle
}

// Placement is the draw-facing view of a handle: which page to bind and
// which normalized coordinates to sample, with the variant transform
// already resolved so callers never special-case variants.
type Placement struct {
	PageIndex int
	UV        UVRect
	Transform Transform
}

type RegistryConfig struct {
	// The maximum number of texture records (variants included) that can
	// be live at once.
	MaxTextureCount uint32
	// Replicated border pixels reserved around every placed image.
	Padding int
}

// Registry is the public map from logical texture identity to current
// placement. Identical pixel content acquired under different logical ids
// shares one allocation; flipped/rotated variants share their base's
// storage through a coordinate transform.
//
// All methods must be called from the single GPU-access thread.
type Registry struct {
	Config  *RegistryConfig
	pages   *PageSet
	records []*TextureRecord
	// content-hash dedup table for non-variant records
	byKey map[uint64]Handle
	// logical id lookups, used by asset hot-reload
	byID map[string]Handle
}

func NewRegistry(config *RegistryConfig, pages *PageSet) (*Registry, error) {
	if config.MaxTextureCount == 0 {
		err := fmt.Errorf("func NewRegistry - config.MaxTextureCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	if config.Padding < 0 {
		return nil, fmt.Errorf("func NewRegistry - config.Padding must be >= 0")
	}

	r := &Registry{
		Config:  config,
		pages:   pages,
		records: make([]*TextureRecord, config.MaxTextureCount),
		byKey:   make(map[uint64]Handle),
		byID:    make(map[string]Handle),
	}
	for i := uint32(0); i < config.MaxTextureCount; i++ {
		r.records[i] = &TextureRecord{Handle: InvalidHandle, VariantOf: InvalidHandle}
	}
	pages.bind(r)
	core.MetricsInitialize()
	return r, nil
}

// Acquire places source pixels into the atlas and returns a stable
// handle. Re-acquiring identical content (same hash and dimensions)
// increments the existing record's reference count instead of allocating
// again. An empty id is replaced with a generated one.
func (r *Registry) Acquire(id string, pixels []byte, width, height int) (Handle, error) {
	return r.AcquireKeyed(id, contentKey(pixels, width, height), pixels, width, height)
}

// AcquireKeyed is Acquire with an explicit dedup key, for callers that
// already track content identity.
func (r *Registry) AcquireKeyed(id string, key uint64, pixels []byte, width, height int) (Handle, error) {
	if width <= 0 || height <= 0 {
		return InvalidHandle, fmt.Errorf("%w: %dx%d source", core.ErrInvalidImage, width, height)
	}
	if len(pixels) != width*height*r.pages.channels {
		return InvalidHandle, fmt.Errorf("%w: %d pixel bytes for %dx%d at %d channels",
			core.ErrInvalidImage, len(pixels), width, height, r.pages.channels)
	}
	if id == "" {
		id = uuid.NewString()
	}

	if h, ok := r.byID[id]; ok {
		rec := r.records[h]
		if rec.Width != width || rec.Height != height {
			return InvalidHandle, fmt.Errorf("%w: id '%s' is resident at %dx%d, not %dx%d",
				core.ErrInvalidImage, id, rec.Width, rec.Height, width, height)
		}
		rec.RefCount++
		return h, nil
	}
	if h, ok := r.byKey[key]; ok {
		rec := r.records[h]
		if rec.Width == width && rec.Height == height {
			rec.RefCount++
			core.MetricsDedupHit()
			core.LogDebug("texture '%s' dedups onto handle %d", id, h)
			return h, nil
		}
	}

	h, err := r.freeSlot()
	if err != nil {
		return InvalidHandle, err
	}

	region, err := r.pages.Place(width, height, r.Config.Padding)
	if err != nil {
		return InvalidHandle, err
	}
	if err := r.pages.Page(region.PageIndex).Upload(region.Rect, region.Padding, pixels); err != nil {
		r.pages.free(region)
		return InvalidHandle, err
	}

	rec := r.records[h]
	*rec = TextureRecord{
		Handle:     h,
		LogicalID:  id,
		Width:      width,
		Height:     height,
		Region:     region,
		VariantOf:  InvalidHandle,
		RefCount:   1,
		ContentKey: key,
	}
	// A key already mapped to a record of other dimensions stays with
	// that first record.
	if _, taken := r.byKey[key]; !taken {
		r.byKey[key] = h
	}
	r.byID[id] = h
	core.MetricsAllocated(int64(width * height * r.pages.channels))
	return h, nil
}

// AcquireVariant registers a flipped/rotated view of an already-resident
// texture. No placement happens: the variant aliases the base record's
// storage and holds a reference on it for as long as the variant lives.
func (r *Registry) AcquireVariant(id string, base Handle, t Transform) (Handle, error) {
	baseRec, err := r.record(base)
	if err != nil {
		return InvalidHandle, err
	}

	// Variants of variants resolve to the root so lookup stays one hop.
	// The new transform runs first, then the base's own mapping.
	root := base
	if baseRec.isVariant() {
		root = baseRec.VariantOf
		t = baseRec.Transform.Compose(t)
	}
	if id == "" {
		id = uuid.NewString()
	}
	if h, ok := r.byID[id]; ok {
		r.records[h].RefCount++
		return h, nil
	}

	h, err := r.freeSlot()
	if err != nil {
		return InvalidHandle, err
	}

	rootRec := r.records[root]
	rec := r.records[h]
	*rec = TextureRecord{
		Handle:    h,
		LogicalID: id,
		Width:     baseRec.Width,
		Height:    baseRec.Height,
		VariantOf: root,
		Transform: t,
		RefCount:  1,
	}
	rootRec.RefCount++
	r.byID[id] = h
	core.MetricsVariantAdded()
	return h, nil
}

// Release drops one reference. At zero a non-variant record returns its
// region to the owning page's allocator; a variant record only drops its
// entry and its reference on the base.
func (r *Registry) Release(h Handle) error {
	rec, err := r.record(h)
	if err != nil {
		return err
	}
	rec.RefCount--
	if rec.RefCount > 0 {
		return nil
	}

	delete(r.byID, rec.LogicalID)
	if rec.isVariant() {
		root := rec.VariantOf
		r.clearSlot(rec)
		core.MetricsVariantRemoved()
		return r.Release(root)
	}

	if owner, ok := r.byKey[rec.ContentKey]; ok && owner == rec.Handle {
		delete(r.byKey, rec.ContentKey)
	}
	r.pages.free(rec.Region)
	core.MetricsFreed(int64(rec.Width * rec.Height * r.pages.channels))
	core.LogDebug("texture '%s' released, region (%d,%d %dx%d) on page %d reclaimed",
		rec.LogicalID, rec.Region.Rect.X, rec.Region.Rect.Y, rec.Region.Rect.Width, rec.Region.Rect.Height, rec.Region.PageIndex)
	r.clearSlot(rec)
	return nil
}

// Lookup resolves a handle to its page and UV rectangle. For variants the
// base record's UV is returned with the variant transform composed in.
func (r *Registry) Lookup(h Handle) (Placement, error) {
	rec, err := r.record(h)
	if err != nil {
		return Placement{}, err
	}
	t := TransformIdentity
	if rec.isVariant() {
		t = rec.Transform
		rec = r.records[rec.VariantOf]
	}
	page := r.pages.Page(rec.Region.PageIndex)
	return Placement{
		PageIndex: rec.Region.PageIndex,
		UV:        uvFor(rec.Region.Rect, page.width, page.height),
		Transform: t,
	}, nil
}

// LookupID resolves a logical id to its live handle.
func (r *Registry) LookupID(id string) (Handle, bool) {
	h, ok := r.byID[id]
	return h, ok
}

// Dimensions returns the handle's logical dimensions. A variant whose
// transform swaps axes reports its base's dimensions transposed.
func (r *Registry) Dimensions(h Handle) (int, int, error) {
	rec, err := r.record(h)
	if err != nil {
		return 0, 0, err
	}
	if rec.Transform&transformSwapBit != 0 {
		return rec.Height, rec.Width, nil
	}
	return rec.Width, rec.Height, nil
}

// Handles returns every live handle in slot order.
func (r *Registry) Handles() []Handle {
	var out []Handle
	for _, rec := range r.records {
		if rec.Handle != InvalidHandle {
			out = append(out, rec.Handle)
		}
	}
	return out
}

// RegistryStats is a point-in-time summary of residency.
type RegistryStats struct {
	LiveRecords    int
	VariantRecords int
	PageCount      int
	// BytesResident counts content pixels only, padding excluded.
	BytesResident int64
	// FreeArea sums the unallocated pixel area across all pages.
	FreeArea int64
}

func (r *Registry) Stats() RegistryStats {
	stats := RegistryStats{PageCount: r.pages.PageCount()}
	for _, rec := range r.records {
		if rec.Handle == InvalidHandle {
			continue
		}
		stats.LiveRecords++
		if rec.isVariant() {
			stats.VariantRecords++
			continue
		}
		stats.BytesResident += int64(rec.Width * rec.Height * r.pages.channels)
	}
	for i := 0; i < r.pages.PageCount(); i++ {
		stats.FreeArea += int64(r.pages.Page(i).alloc.FreeArea())
	}
	return stats
}

func (r *Registry) record(h Handle) (*TextureRecord, error) {
	if h >= Handle(len(r.records)) || r.records[h].Handle == InvalidHandle {
		return nil, fmt.Errorf("%w: %d", core.ErrInvalidHandle, h)
	}
	return r.records[h], nil
}

func (r *Registry) freeSlot() (Handle, error) {
	for i := uint32(0); i < r.Config.MaxTextureCount; i++ {
		if r.records[i].Handle == InvalidHandle {
			return i, nil
		}
	}
	core.LogError("texture registry cannot hold more textures; adjust MaxTextureCount")
	return InvalidHandle, fmt.Errorf("%w: registry at capacity (%d records)", core.ErrAtlasFull, r.Config.MaxTextureCount)
}

func (r *Registry) clearSlot(rec *TextureRecord) {
	*rec = TextureRecord{Handle: InvalidHandle, VariantOf: InvalidHandle}
}

// residentsOn implements the page set's repack view: every live
// non-variant record placed on the given page, in handle order.
func (r *Registry) residentsOn(pageIndex int) []*TextureRecord {
	var out []*TextureRecord
	for _, rec := range r.records {
		if rec.Handle != InvalidHandle && !rec.isVariant() && rec.Region.PageIndex == pageIndex {
			out = append(out, rec)
		}
	}
	return out
}

func contentKey(pixels []byte, width, height int) uint64 {
	hash := fnv.New64a()
	var dims [8]byte
	dims[0] = byte(width)
	dims[1] = byte(width >> 8)
	dims[2] = byte(width >> 16)
	dims[3] = byte(width >> 24)
	dims[4] = byte(height)
	dims[5] = byte(height >> 8)
	dims[6] = byte(height >> 16)
	dims[7] = byte(height >> 24)
	hash.Write(dims[:])
	hash.Write(pixels)
	return hash.Sum64()
}
