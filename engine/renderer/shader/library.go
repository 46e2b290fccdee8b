package shader

import (
	"context"
	"path/filepath"
	"slices"
	"sync"

	"github.com/spaghettifunk/snow/engine/core"
	"github.com/spaghettifunk/snow/engine/renderer"
)

// Library keeps the current module for each shader file name. A reload
// that fails leaves the previous module in place.
type Library struct {
	builder *Builder
	dc      *renderer.DeviceContext

	mu      sync.RWMutex
	modules map[string]*Module
}

func NewLibrary(builder *Builder, dc *renderer.DeviceContext) *Library {
	return &Library{
		builder: builder,
		dc:      dc,
		modules: make(map[string]*Module),
	}
}

// Load compiles every path. All modules are built before any is published.
func (l *Library) Load(ctx context.Context, paths ...string) error {
	built, err := l.builder.CompileMany(ctx, l.dc, paths...)
	if err != nil {
		return err
	}
	for _, m := range built {
		l.put(m)
	}
	return nil
}

// Reload recompiles path and swaps it in.
func (l *Library) Reload(ctx context.Context, path string) error {
	m, err := l.builder.Compile(ctx, path, l.dc)
	if err != nil {
		core.LogError("Reloading shader '%s' failed, keeping the previous module: %s", path, err)
		return err
	}
	l.put(m)
	core.LogInfo("Shader '%s' reloaded.", m.Name)
	return nil
}

func (l *Library) put(m *Module) {
	l.mu.Lock()
	old := l.modules[m.Name]
	l.modules[m.Name] = m
	l.mu.Unlock()

	if old != nil {
		old.Destroy()
	}
}

// Get looks a module up by file name ("default.vert") or path.
func (l *Library) Get(name string) (*Module, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.modules[filepath.Base(name)]
	return m, ok
}

func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.modules))
	for name := range l.modules {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Destroy releases every module.
func (l *Library) Destroy() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for name, m := range l.modules {
		m.Destroy()
		delete(l.modules, name)
	}
}
