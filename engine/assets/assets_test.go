package assets

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calderaengine/caldera/engine/atlas"
	"github.com/calderaengine/caldera/engine/core"
	"github.com/calderaengine/caldera/engine/renderer/software"
)

func writePNG(t *testing.T, path string, width, height int, seed uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x) + seed, G: uint8(y), B: seed, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return img.Pix
}

func newManagerTestRig(t *testing.T) (*atlas.Atlas, *AssetManager) {
	t.Helper()
	cfg := atlas.DefaultConfig()
	cfg.LogLevel = "error"
	a, err := atlas.New(cfg, software.New())
	require.NoError(t, err)
	t.Cleanup(a.Shutdown)

	manager, err := NewAssetManager(a)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return a, manager
}

func TestLoadImageNormalizesToRGBA(t *testing.T) {
	_, manager := newManagerTestRig(t)

	path := filepath.Join(t.TempDir(), "tex.png")
	want := writePNG(t, path, 12, 7, 10)

	img, err := manager.LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, 12, img.Width)
	assert.Equal(t, 7, img.Height)
	assert.Equal(t, want, img.Pixels)
}

func TestLoadImageRejectsGarbage(t *testing.T) {
	_, manager := newManagerTestRig(t)

	path := filepath.Join(t.TempDir(), "junk.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	_, err := manager.LoadImage(path)
	assert.ErrorIs(t, err, core.ErrInvalidImage)

	_, err = manager.LoadImage(filepath.Join(t.TempDir(), "absent.png"))
	assert.Error(t, err)
}

func TestAcquireImagePlacesPixels(t *testing.T) {
	a, manager := newManagerTestRig(t)

	path := filepath.Join(t.TempDir(), "sprite.png")
	want := writePNG(t, path, 16, 16, 1)

	h, err := manager.AcquireImage(path)
	require.NoError(t, err)

	got, err := a.Sync.ReadCurrent(h)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	byID, ok := a.Textures.LookupID(path)
	require.True(t, ok)
	assert.Equal(t, h, byID)

	require.NoError(t, manager.ReleaseImage(path))
	_, err = a.Textures.Lookup(h)
	assert.Error(t, err)
	assert.Error(t, manager.ReleaseImage(path), "double release reports the miss")
}

func TestProcessPendingSameSizeReload(t *testing.T) {
	a, manager := newManagerTestRig(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "sprite.png")
	writePNG(t, path, 16, 16, 1)

	h, err := manager.AcquireImage(path)
	require.NoError(t, err)

	// Overwrite with new content of identical dimensions.
	want := writePNG(t, path, 16, 16, 200)
	manager.handleFileEvent(path)
	manager.ProcessPending()

	got, err := a.Sync.ReadCurrent(h)
	require.NoError(t, err)
	assert.Equal(t, want, got, "same-size reload keeps the handle and region")
}

func TestProcessPendingResizeReplaces(t *testing.T) {
	a, manager := newManagerTestRig(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "sprite.png")
	writePNG(t, path, 16, 16, 1)

	_, err := manager.AcquireImage(path)
	require.NoError(t, err)

	want := writePNG(t, path, 32, 8, 2)
	manager.handleFileEvent(path)
	manager.ProcessPending()

	// The handle may land in the same slot; identity is the logical id.
	fresh, ok := a.Textures.LookupID(path)
	require.True(t, ok)
	width, height, err := a.Textures.Dimensions(fresh)
	require.NoError(t, err)
	assert.Equal(t, 32, width)
	assert.Equal(t, 8, height)

	got, err := a.Sync.ReadCurrent(fresh)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestProcessPendingIgnoresNonResident(t *testing.T) {
	_, manager := newManagerTestRig(t)

	path := filepath.Join(t.TempDir(), "loose.png")
	writePNG(t, path, 8, 8, 1)

	manager.handleFileEvent(path)
	manager.ProcessPending()
	assert.Empty(t, manager.pending)
}

func TestDetermineAssetType(t *testing.T) {
	assert.Equal(t, ResourceTypeImage, determineAssetType("a/b.png"))
	assert.Equal(t, ResourceTypeImage, determineAssetType("b.jpeg"))
	assert.Equal(t, ResourceTypeImage, determineAssetType("c.bmp"))
	assert.Equal(t, ResourceTypeBitmapFont, determineAssetType("d.fnt"))
	assert.Equal(t, ResourceTypeNone, determineAssetType("e.txt"))
}
