package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/calderaengine/caldera/engine/assets/loaders"
	"github.com/calderaengine/caldera/engine/atlas"
	"github.com/calderaengine/caldera/engine/core"
)

type ResourceType int

const (
	ResourceTypeNone ResourceType = iota
	ResourceTypeImage
	ResourceTypeBitmapFont
)

type AssetInfo struct {
	Path       string
	Type       ResourceType
	LastLoaded time.Time
}

// AssetManager indexes an asset directory and keeps image assets that
// were acquired into the atlas in sync with the files on disk. The
// watcher goroutine only marks changed files; ProcessPending applies
// the reloads and must be called from the thread that owns the atlas.
// A reload re-decodes the file; when the dimensions are unchanged the
// pixels are pushed through the sync manager, otherwise the texture is
// released and re-acquired so the atlas can re-place it.
type AssetManager struct {
	atlas       *atlas.Atlas
	imageLoader loaders.ImageLoader
	fontLoader  loaders.BitmapFontLoader

	assets   map[string]AssetInfo
	resident map[string]atlas.Handle
	pending  map[string]struct{}

	mutex sync.RWMutex

	done     chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewAssetManager(a *atlas.Atlas) (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &AssetManager{
		atlas:    a,
		assets:   make(map[string]AssetInfo),
		resident: make(map[string]atlas.Handle),
		pending:  make(map[string]struct{}),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
	}, nil
}

// Watch starts watching the asset directory and all sub-directories and
// begins processing change events.
func (am *AssetManager) Watch(assetsDir string) error {
	if am.isClosed {
		return errors.New("asset manager already closed")
	}
	if err := am.watchRecursive(assetsDir); err != nil {
		return err
	}
	go am.start()
	return nil
}

func (am *AssetManager) Close() error {
	if am.isClosed {
		return nil
	}
	am.isClosed = true
	close(am.done)
	return nil
}

// LoadImage decodes an image file without touching the atlas.
func (am *AssetManager) LoadImage(path string) (*loaders.ImageData, error) {
	return am.imageLoader.Load(path)
}

// LoadBitmapFont parses an AngelCode .fnt descriptor.
func (am *AssetManager) LoadBitmapFont(path string) (*loaders.BitmapFontData, error) {
	return am.fontLoader.Load(path)
}

// AcquireImage decodes the file and acquires it into the atlas under the
// file path as logical id. The handle is tracked for hot reload until
// released.
func (am *AssetManager) AcquireImage(path string) (atlas.Handle, error) {
	img, err := am.imageLoader.Load(path)
	if err != nil {
		return atlas.InvalidHandle, err
	}
	handle, err := am.atlas.Textures.Acquire(path, img.Pixels, img.Width, img.Height)
	if err != nil {
		return atlas.InvalidHandle, err
	}

	am.mutex.Lock()
	am.resident[path] = handle
	am.assets[path] = AssetInfo{Path: path, Type: ResourceTypeImage, LastLoaded: time.Now()}
	am.mutex.Unlock()

	return handle, nil
}

// ReleaseImage drops the manager's reference to a previously acquired
// image.
func (am *AssetManager) ReleaseImage(path string) error {
	am.mutex.Lock()
	handle, ok := am.resident[path]
	delete(am.resident, path)
	am.mutex.Unlock()
	if !ok {
		return fmt.Errorf("image %s is not resident", path)
	}
	return am.atlas.Textures.Release(handle)
}

func (am *AssetManager) start() {
	for {
		select {
		case e := <-am.fsnotify.Events:
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					am.watchRecursive(e.Name)
				}
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				am.handleFileEvent(e.Name)
			}
			if e.Op&fsnotify.Remove != 0 {
				am.removeAsset(e.Name)
				am.fsnotify.Remove(e.Name)
			}

		case e := <-am.fsnotify.Errors:
			core.LogError(e.Error())

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

func (am *AssetManager) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		am.indexAsset(walkPath)
		return nil
	})
}

func (am *AssetManager) indexAsset(path string) {
	assetType := determineAssetType(path)
	if assetType == ResourceTypeNone {
		return
	}
	am.mutex.Lock()
	am.assets[path] = AssetInfo{Path: path, Type: assetType, LastLoaded: time.Now()}
	am.mutex.Unlock()
}

func (am *AssetManager) handleFileEvent(path string) {
	am.indexAsset(path)

	am.mutex.Lock()
	if _, ok := am.resident[path]; ok {
		am.pending[path] = struct{}{}
	}
	am.mutex.Unlock()
}

// ProcessPending reloads every resident asset that changed on disk
// since the last call. It must run on the thread that owns the atlas.
func (am *AssetManager) ProcessPending() {
	am.mutex.Lock()
	paths := make([]string, 0, len(am.pending))
	for path := range am.pending {
		paths = append(paths, path)
	}
	am.pending = make(map[string]struct{})
	am.mutex.Unlock()

	for _, path := range paths {
		am.mutex.RLock()
		handle, ok := am.resident[path]
		am.mutex.RUnlock()
		if !ok {
			continue
		}
		if err := am.reload(path, handle); err != nil {
			core.LogWarn("hot reload of %s failed: %s", path, err.Error())
		}
	}
}

// reload pushes the changed file back into the atlas. Same-size images
// go through the pixel sync path; a size change forces a fresh
// placement.
func (am *AssetManager) reload(path string, handle atlas.Handle) error {
	img, err := am.imageLoader.Load(path)
	if err != nil {
		return err
	}

	width, height, err := am.atlas.Textures.Dimensions(handle)
	if err != nil {
		return err
	}

	if img.Width == width && img.Height == height {
		if err := am.atlas.Sync.SetPixels(handle, img.Pixels); err != nil {
			return err
		}
		return am.atlas.Sync.Flush(handle)
	}

	if err := am.atlas.Textures.Release(handle); err != nil {
		return err
	}
	fresh, err := am.atlas.Textures.Acquire(path, img.Pixels, img.Width, img.Height)
	if err != nil {
		am.mutex.Lock()
		delete(am.resident, path)
		am.mutex.Unlock()
		return err
	}

	am.mutex.Lock()
	am.resident[path] = fresh
	am.mutex.Unlock()
	core.LogDebug("asset %s re-placed as %dx%d", path, img.Width, img.Height)
	return nil
}

func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	delete(am.assets, path)
	am.mutex.Unlock()
}

func determineAssetType(path string) ResourceType {
	switch filepath.Ext(path) {
	case ".png", ".jpg", ".jpeg", ".bmp":
		return ResourceTypeImage
	case ".fnt":
		return ResourceTypeBitmapFont
	default:
		return ResourceTypeNone
	}
}
