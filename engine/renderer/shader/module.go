package shader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/google/uuid"
	"github.com/spaghettifunk/snow/engine/assets"
	"github.com/spaghettifunk/snow/engine/assets/loaders"
	"github.com/spaghettifunk/snow/engine/core"
	"github.com/spaghettifunk/snow/engine/renderer"
	"github.com/spaghettifunk/snow/engine/renderer/driver"
	"github.com/spaghettifunk/snow/engine/systems"
)

// Module is a compiled shader stage bound to the device it was created on.
type Module struct {
	ID    uuid.UUID
	Name  string
	Path  string
	Stage Stage
	Code  []uint32

	Inputs  []Variable
	Outputs []Variable

	handle driver.ShaderModule
	device uuid.UUID
}

// Handle returns the native module. It fails with core.ErrForeignDevice
// when dc is not the device the module was built on.
func (m *Module) Handle(dc *renderer.DeviceContext) (driver.ShaderModule, error) {
	if dc == nil || dc.ID != m.device {
		return nil, core.ErrForeignDevice
	}
	if m.handle == nil {
		return nil, fmt.Errorf("shader module %s was destroyed", m.Name)
	}
	return m.handle, nil
}

func (m *Module) Destroy() {
	if m.handle == nil {
		return
	}
	m.handle.Destroy()
	m.handle = nil
}

// Builder compiles, reflects and creates shader modules.
type Builder struct {
	compiler Compiler
	sources  assets.Loader
}

func NewBuilder(compiler Compiler) *Builder {
	return &Builder{
		compiler: compiler,
		sources:  &loaders.ShaderLoader{},
	}
}

// compiled is a reflected module that has no device object yet.
type compiled struct {
	path  string
	stage Stage
	code  []uint32
	iface Interface
}

// Compile builds the module for the source file at path on dc.
func (b *Builder) Compile(ctx context.Context, path string, dc *renderer.DeviceContext) (*Module, error) {
	c, err := b.compile(ctx, path)
	if err != nil {
		return nil, err
	}
	return b.create(c, dc)
}

// compile reads, compiles and reflects path. It does not touch the device.
func (b *Builder) compile(ctx context.Context, path string) (*compiled, error) {
	stage, err := StageFromPath(path)
	if err != nil {
		return nil, err
	}

	res, err := b.sources.Load(path)
	if err != nil {
		return nil, fmt.Errorf("read shader %s: %w", path, err)
	}
	defer b.sources.Unload(res)

	code, err := b.compiler.Compile(ctx, path, res.Data.([]byte), stage)
	if err != nil {
		return nil, err
	}

	iface, err := Reflect(code, stage)
	if err != nil {
		if errors.Is(err, ErrInvalidSPIRV) || errors.Is(err, ErrNoEntryPoint) {
			return nil, &core.ShaderCompileError{Path: path, Diagnostic: err.Error()}
		}
		var formatErr *core.UnsupportedInterfaceFormatError
		if errors.As(err, &formatErr) {
			core.LogError("Shader '%s': %s", path, formatErr)
		}
		return nil, err
	}
	return &compiled{path: path, stage: stage, code: code, iface: iface}, nil
}

func (b *Builder) create(c *compiled, dc *renderer.DeviceContext) (*Module, error) {
	handle, err := dc.Device.CreateShaderModule(c.code)
	if err != nil {
		return nil, fmt.Errorf("create shader module %s: %w", c.path, err)
	}

	m := &Module{
		ID:      uuid.New(),
		Name:    filepath.Base(c.path),
		Path:    c.path,
		Stage:   c.stage,
		Code:    c.code,
		Inputs:  c.iface.Inputs,
		Outputs: c.iface.Outputs,
		handle:  handle,
		device:  dc.ID,
	}
	core.LogDebug("Shader module '%s' (%s) created with %d inputs.", m.Name, m.Stage, len(m.Inputs))
	return m, nil
}

// CompileMany builds paths and returns the modules in the same order.
// Sources are compiled on a job system. Device objects are created on the
// calling goroutine once every source compiled. On failure nothing is left
// alive and the error of the first failing path is returned.
func (b *Builder) CompileMany(ctx context.Context, dc *renderer.DeviceContext, paths ...string) ([]*Module, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	js, err := systems.NewJobSystem(min(len(paths), runtime.NumCPU()), len(paths))
	if err != nil {
		return nil, err
	}

	results := make([]*compiled, len(paths))
	errs := make([]error, len(paths))
	for i, path := range paths {
		js.Submit(systems.JobTask{
			Name: path,
			OnStart: func() error {
				c, err := b.compile(ctx, path)
				if err != nil {
					return err
				}
				results[i] = c
				return nil
			},
			OnFailure: func(err error) { errs[i] = err },
		})
	}
	if err := js.Shutdown(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	modules := make([]*Module, 0, len(paths))
	for _, c := range results {
		m, err := b.create(c, dc)
		if err != nil {
			for _, built := range modules {
				built.Destroy()
			}
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, nil
}

// CompileAll builds every .vert and .frag file in dir, in name order. On
// failure the modules built so far are destroyed.
func (b *Builder) CompileAll(ctx context.Context, dir string, dc *renderer.DeviceContext) ([]*Module, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := StageFromPath(e.Name()); err == nil {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(paths)
	return b.CompileMany(ctx, dc, paths...)
}
