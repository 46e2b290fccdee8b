package shader_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/naga/spirv"
	"github.com/spaghettifunk/snow/engine/assets/loaders"
	"github.com/spaghettifunk/snow/engine/renderer"
	"github.com/spaghettifunk/snow/engine/renderer/driver"
	"github.com/spaghettifunk/snow/engine/renderer/driver/drivertest"
)

// typeFunc declares a type in the module under construction.
type typeFunc func(b *spirv.ModuleBuilder) uint32

func float32Type(b *spirv.ModuleBuilder) uint32 { return b.AddTypeFloat(32) }

func vecType(components uint32) typeFunc {
	return func(b *spirv.ModuleBuilder) uint32 {
		return b.AddTypeVector(b.AddTypeFloat(32), components)
	}
}

type input struct {
	name     string
	location uint32
	typ      typeFunc
	builtin  bool
}

// buildModule returns a module with one entry point, the given inputs and a
// vec4 output at location 0.
func buildModule(t *testing.T, model spirv.ExecutionModel, entry string, inputs ...input) []uint32 {
	t.Helper()
	b := spirv.NewModuleBuilder(spirv.Version1_3)
	b.AddCapability(spirv.CapabilityShader)
	b.SetMemoryModel(spirv.AddressingModelLogical, spirv.MemoryModelGLSL450)

	void := b.AddTypeVoid()
	fnType := b.AddTypeFunction(void)

	var interfaces []uint32
	for _, in := range inputs {
		ptr := b.AddTypePointer(spirv.StorageClassInput, in.typ(b))
		v := b.AddVariable(ptr, spirv.StorageClassInput)
		if in.name != "" {
			b.AddName(v, in.name)
		}
		if in.builtin {
			b.AddDecorate(v, spirv.DecorationBuiltIn, uint32(spirv.BuiltInVertexIndex))
		} else {
			b.AddDecorate(v, spirv.DecorationLocation, in.location)
		}
		interfaces = append(interfaces, v)
	}

	out := b.AddVariable(b.AddTypePointer(spirv.StorageClassOutput, vecType(4)(b)), spirv.StorageClassOutput)
	b.AddName(out, "outColor")
	b.AddDecorate(out, spirv.DecorationLocation, 0)
	interfaces = append(interfaces, out)

	fn := b.AddFunction(fnType, void, spirv.FunctionControlNone)
	b.AddLabel()
	b.AddReturn()
	b.AddFunctionEnd()
	b.AddEntryPoint(model, fn, entry, interfaces)
	if model == spirv.ExecutionModelFragment {
		b.AddExecutionMode(fn, spirv.ExecutionModeOriginUpperLeft)
	}

	words, err := loaders.BytesToWords(b.Build())
	if err != nil {
		t.Fatalf("fixture: %s", err)
	}
	return words
}

func vertexModule(t *testing.T) []uint32 {
	return buildModule(t, spirv.ExecutionModelVertex, "main",
		input{name: "position", location: 0, typ: vecType(2)},
		input{name: "color", location: 1, typ: vecType(3)},
	)
}

func fragmentModule(t *testing.T) []uint32 {
	return buildModule(t, spirv.ExecutionModelFragment, "main",
		input{name: "fragColor", location: 0, typ: vecType(3)},
	)
}

func newDeviceContext(t *testing.T) (*renderer.DeviceContext, *drivertest.Device) {
	t.Helper()
	pd := drivertest.NewPhysicalDevice("gpu", driver.DeviceTypeDiscreteGPU)
	dc, err := renderer.NewDeviceContext(drivertest.NewInstance(pd), drivertest.NewSurface(640, 480), nil)
	if err != nil {
		t.Fatalf("create device context: %s", err)
	}
	return dc, pd.Created
}

func writeSource(t *testing.T, dir, name, source string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
