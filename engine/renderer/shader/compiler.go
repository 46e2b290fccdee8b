package shader

import (
	"bytes"
	"context"
	"maps"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/spirv"
	"github.com/spaghettifunk/snow/engine/assets/loaders"
	"github.com/spaghettifunk/snow/engine/core"
)

// Compiler turns shader source into SPIR-V words with a "main" entry point.
// Compilation failures are reported as *core.ShaderCompileError.
type Compiler interface {
	Compile(ctx context.Context, path string, source []byte, stage Stage) ([]uint32, error)
}

// GlslcCompiler runs the glslc binary from the Vulkan SDK. The source is
// fed on stdin and the module is read back from stdout.
type GlslcCompiler struct {
	// Binary defaults to "glslc" looked up in PATH.
	Binary string
	// Defines are passed as -D<name>=<value> in addition to EP=main.
	Defines map[string]string
}

func (c *GlslcCompiler) Compile(ctx context.Context, path string, source []byte, stage Stage) ([]uint32, error) {
	binary := c.Binary
	if binary == "" {
		binary = "glslc"
	}

	args := []string{
		"-fshader-stage=" + stage.glslc(),
		"-fentry-point=" + EntryPoint,
		"-DEP=" + EntryPoint,
	}
	for _, name := range slices.Sorted(maps.Keys(c.Defines)) {
		args = append(args, "-D"+name+"="+c.Defines[name])
	}
	args = append(args, "-o", "-", "-")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = bytes.NewReader(source)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		diagnostic := strings.TrimSpace(strings.ReplaceAll(stderr.String(), "<stdin>", filepath.Base(path)))
		if diagnostic == "" {
			diagnostic = err.Error()
		}
		return nil, &core.ShaderCompileError{Path: path, Diagnostic: diagnostic}
	}

	words, err := loaders.BytesToWords(stdout.Bytes())
	if err != nil {
		return nil, &core.ShaderCompileError{Path: path, Diagnostic: err.Error()}
	}
	return words, nil
}

// NagaCompiler compiles WGSL in-process. The stage still comes from the
// file extension, so a .vert file must declare a @vertex fn main.
type NagaCompiler struct {
	Version spirv.Version
}

func (c *NagaCompiler) Compile(ctx context.Context, path string, source []byte, stage Stage) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := naga.DefaultOptions()
	if c.Version != (spirv.Version{}) {
		opts.SPIRVVersion = c.Version
	}
	// Keep OpName so reflected inputs carry their names.
	opts.Debug = true

	out, err := naga.CompileWithOptions(string(source), opts)
	if err != nil {
		return nil, &core.ShaderCompileError{Path: path, Diagnostic: err.Error()}
	}
	words, err := loaders.BytesToWords(out)
	if err != nil {
		return nil, &core.ShaderCompileError{Path: path, Diagnostic: err.Error()}
	}
	return words, nil
}

// PrecompiledCompiler loads <Dir>/<file>.spv produced ahead of time by the
// build:shaders task. The source text is ignored.
type PrecompiledCompiler struct {
	Dir string
}

func (c *PrecompiledCompiler) Compile(ctx context.Context, path string, source []byte, stage Stage) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	binPath := filepath.Join(c.Dir, filepath.Base(path)+".spv")
	res, err := (&loaders.BinaryLoader{}).Load(binPath)
	if err != nil {
		return nil, &core.ShaderCompileError{Path: path, Diagnostic: err.Error()}
	}
	return res.Data.([]uint32), nil
}

// NewCompiler maps a configuration name to a backend. Unknown names get
// glslc.
func NewCompiler(name, dir string) Compiler {
	switch name {
	case "naga":
		return &NagaCompiler{}
	case "spirv", "precompiled":
		return &PrecompiledCompiler{Dir: filepath.Join(dir, "bin")}
	default:
		return &GlslcCompiler{}
	}
}
