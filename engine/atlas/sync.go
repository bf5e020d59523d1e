package atlas

import (
	"fmt"

	"github.com/calderaengine/caldera/engine/core"
)

// SyncManager exposes explicit CPU-GPU pixel synchronization for resident
// textures. The CPU-side mirror is opt-in per handle: static textures
// that are never re-synced cost no extra memory.
//
// State per record: Clean -> (edit) -> Dirty -> (Flush) -> Clean.
// ReadCurrent is a pull and never dirties anything.
type SyncManager struct {
	registry *Registry
}

func NewSyncManager(registry *Registry) *SyncManager {
	return &SyncManager{registry: registry}
}

// Retain installs a CPU pixel mirror for the handle. The buffer becomes
// the flush source and also spares a GPU read-back during repack.
func (sm *SyncManager) Retain(h Handle, pixels []byte) error {
	rec, err := sm.storageRecord(h)
	if err != nil {
		return err
	}
	if len(pixels) != rec.Width*rec.Height*sm.registry.pages.channels {
		return fmt.Errorf("%w: %d pixel bytes for %dx%d mirror", core.ErrInvalidImage, len(pixels), rec.Width, rec.Height)
	}
	rec.retained = pixels
	return nil
}

// Discard drops the CPU mirror; the GPU copy stays authoritative.
func (sm *SyncManager) Discard(h Handle) error {
	rec, err := sm.storageRecord(h)
	if err != nil {
		return err
	}
	rec.retained = nil
	return nil
}

// MarkDirty flags the handle's CPU mirror as ahead of the GPU copy.
func (sm *SyncManager) MarkDirty(h Handle) error {
	rec, err := sm.storageRecord(h)
	if err != nil {
		return err
	}
	rec.Dirty = true
	return nil
}

// SetPixels replaces the CPU mirror and marks the record dirty in one
// step, the common edit path.
func (sm *SyncManager) SetPixels(h Handle, pixels []byte) error {
	if err := sm.Retain(h, pixels); err != nil {
		return err
	}
	return sm.MarkDirty(h)
}

// Flush uploads the CPU mirror into the handle's region, re-applying the
// border padding, and clears the dirty flag. Flushing a clean record is a
// no-op, not an error.
func (sm *SyncManager) Flush(h Handle) error {
	rec, err := sm.storageRecord(h)
	if err != nil {
		return err
	}
	if !rec.Dirty {
		return nil
	}
	if rec.retained == nil {
		return fmt.Errorf("%w: handle %d is dirty but has no retained CPU pixels", core.ErrInvalidImage, h)
	}
	page := sm.registry.pages.Page(rec.Region.PageIndex)
	if err := page.Upload(rec.Region.Rect, rec.Region.Padding, rec.retained); err != nil {
		return err
	}
	rec.Dirty = false
	return nil
}

// ReadCurrent pulls the handle's current GPU pixel content, covering the
// case where rendering wrote into the region out-of-band.
func (sm *SyncManager) ReadCurrent(h Handle) ([]byte, error) {
	rec, err := sm.storageRecord(h)
	if err != nil {
		return nil, err
	}
	page := sm.registry.pages.Page(rec.Region.PageIndex)
	return page.ReadBack(rec.Region.Rect)
}

// storageRecord resolves a handle to the record owning pixel storage;
// sync operations on a variant act on its base.
func (sm *SyncManager) storageRecord(h Handle) (*TextureRecord, error) {
	rec, err := sm.registry.record(h)
	if err != nil {
		return nil, err
	}
	if rec.isVariant() {
		rec = sm.registry.records[rec.VariantOf]
	}
	return rec, nil
}
