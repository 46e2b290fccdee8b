package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/snow/engine/assets/loaders"
	"github.com/spaghettifunk/snow/engine/core"
)

// changedBacklog bounds the number of change notifications waiting for the
// main loop. Further notifications are dropped until it drains.
const changedBacklog = 64

var ErrAssetNotFound = errors.New("asset not found")

type AssetInfo struct {
	Path       string
	Type       loaders.ResourceType
	LastLoaded time.Time
}

// AssetManager indexes the files under an asset directory and, when
// watching, reports shader sources that were created or written.
type AssetManager struct {
	assets  map[string]AssetInfo
	loaders map[loaders.ResourceType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
	changed  chan string
}

func NewAssetManager() *AssetManager {
	am := &AssetManager{
		assets:  make(map[string]AssetInfo),
		loaders: make(map[loaders.ResourceType]Loader),
		changed: make(chan string, changedBacklog),
	}
	am.registerLoader(loaders.ResourceTypeShaderSource, &loaders.ShaderLoader{})
	am.registerLoader(loaders.ResourceTypeSPIRV, &loaders.BinaryLoader{})
	return am
}

// Initialize indexes assetsDir. With watch set, an fsnotify loop keeps the
// index current and publishes changed shader sources on Changed.
func (am *AssetManager) Initialize(assetsDir string, watch bool) error {
	if !watch {
		return am.walk(assetsDir, nil)
	}

	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	am.fsnotify = fsWatch
	am.done = make(chan struct{})
	am.stopped = make(chan struct{})

	if err := am.walk(assetsDir, fsWatch.Add); err != nil {
		fsWatch.Close()
		return err
	}
	go am.start()

	core.LogInfo("Watching '%s' for shader changes.", assetsDir)
	return nil
}

// Changed delivers the paths of shader sources created or written since the
// last receive. It is never closed while the manager is running.
func (am *AssetManager) Changed() <-chan string {
	return am.changed
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType loaders.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// Assets lists the indexed paths of the given type in lexical order.
func (am *AssetManager) Assets(assetType loaders.ResourceType) []string {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	var paths []string
	for path, info := range am.assets {
		if info.Type == assetType {
			paths = append(paths, path)
		}
	}
	slices.Sort(paths)
	return paths
}

// LoadAsset loads an indexed file with the loader registered for its type.
func (am *AssetManager) LoadAsset(path string) (*loaders.Resource, error) {
	path = filepath.Clean(path)

	am.mutex.Lock()
	asset, exists := am.assets[path]
	if exists {
		asset.LastLoaded = time.Now()
		am.assets[path] = asset
	}
	am.mutex.Unlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, path)
	}

	loader, loaderExists := am.loaders[asset.Type]
	if !loaderExists {
		return nil, fmt.Errorf("no loader registered for asset type: %s", asset.Type)
	}
	return loader.Load(path)
}

func (am *AssetManager) UnloadAsset(res *loaders.Resource) error {
	loader, ok := am.loaders[res.Type]
	if !ok {
		return fmt.Errorf("no loader registered for asset type: %s", res.Type)
	}
	return loader.Unload(res)
}

// Shutdown stops the watcher loop, if any.
func (am *AssetManager) Shutdown() error {
	if am.fsnotify == nil || am.isClosed {
		return nil
	}
	am.isClosed = true
	close(am.done)
	<-am.stopped
	return nil
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("Asset watcher: %s", err)

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	path := filepath.Clean(e.Name)

	s, err := os.Stat(path)
	if err == nil && s.IsDir() {
		if e.Has(fsnotify.Create) {
			if err := am.walk(path, am.fsnotify.Add); err != nil {
				core.LogWarn("Cannot watch new directory '%s': %s", path, err)
			}
		}
		return
	}

	switch {
	case e.Has(fsnotify.Create) || e.Has(fsnotify.Write):
		if am.handleFileEvent(path) == loaders.ResourceTypeShaderSource {
			am.notify(path)
		}
	case e.Has(fsnotify.Remove) || e.Has(fsnotify.Rename):
		// Can't stat a deleted path, the watch may or may not exist.
		am.removeAsset(path)
		_ = am.fsnotify.Remove(path)
	}
}

func (am *AssetManager) notify(path string) {
	select {
	case am.changed <- path:
	default:
		core.LogWarn("Dropping change notification for '%s', backlog full.", path)
	}
}

// walk indexes every file under root and calls watch on each directory.
func (am *AssetManager) walk(root string, watch func(string) error) error {
	return filepath.WalkDir(root, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if watch != nil {
				return watch(walkPath)
			}
			return nil
		}
		am.handleFileEvent(filepath.Clean(walkPath))
		return nil
	})
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string) loaders.ResourceType {
	assetType := determineAssetType(path)
	if assetType == loaders.ResourceTypeNone {
		return assetType
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.assets[path] = AssetInfo{
		Path: path,
		Type: assetType,
	}
	return assetType
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, path)
}

func determineAssetType(path string) loaders.ResourceType {
	switch filepath.Ext(path) {
	case ".vert", ".frag":
		return loaders.ResourceTypeShaderSource
	case ".spv":
		return loaders.ResourceTypeSPIRV
	default:
		return loaders.ResourceTypeNone
	}
}
