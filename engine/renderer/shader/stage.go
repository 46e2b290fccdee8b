// Package shader turns shader source files into device shader modules with
// reflected vertex input interfaces.
package shader

import (
	"fmt"
	"path/filepath"

	"github.com/gogpu/naga/spirv"
	"github.com/spaghettifunk/snow/engine/core"
)

// EntryPoint is the only entry point name a module may expose.
const EntryPoint = "main"

type Stage int

const (
	StageVertex Stage = iota
	StageFragment
)

// StageFromPath derives the stage from the file extension. Only .vert and
// .frag are accepted.
func StageFromPath(path string) (Stage, error) {
	switch ext := filepath.Ext(path); ext {
	case ".vert":
		return StageVertex, nil
	case ".frag":
		return StageFragment, nil
	default:
		return 0, fmt.Errorf("%w: %q (%s)", core.ErrUnsupportedStage, ext, path)
	}
}

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// glslc returns the -fshader-stage value.
func (s Stage) glslc() string {
	if s == StageFragment {
		return "frag"
	}
	return "vert"
}

func (s Stage) executionModel() spirv.ExecutionModel {
	if s == StageFragment {
		return spirv.ExecutionModelFragment
	}
	return spirv.ExecutionModelVertex
}
