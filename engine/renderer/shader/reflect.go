package shader

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/naga/spirv"
	"github.com/spaghettifunk/snow/engine/core"
)

var (
	ErrInvalidSPIRV = errors.New("invalid SPIR-V binary")
	ErrNoEntryPoint = errors.New("no entry point named main")
)

// spirvHeaderWords is the size of the module header preceding the first
// instruction.
const spirvHeaderWords = 5

type ScalarType uint8

const (
	ScalarUnknown ScalarType = iota
	ScalarFloat32
)

// Format describes an interface variable: a scalar type and 1 to 4
// components.
type Format struct {
	Scalar     ScalarType
	Components uint32
}

func (f Format) String() string {
	if f.Components == 1 {
		return "float32"
	}
	return fmt.Sprintf("vec%d<f32>", f.Components)
}

type Variable struct {
	Location uint32
	Name     string
	Format   Format
}

// Interface is the reflected input/output interface of an entry point.
// Inputs are ordered by location. Outputs are not reflected and are always
// empty.
type Interface struct {
	Stage   Stage
	Inputs  []Variable
	Outputs []Variable
}

type typeKind uint8

const (
	kindOther typeKind = iota
	kindBool
	kindInt
	kindFloat
	kindVector
	kindMatrix
	kindArray
	kindStruct
	kindPointer
)

type spirvType struct {
	kind    typeKind
	width   uint32
	signed  bool
	elem    uint32 // component, column, element or pointee type
	count   uint32
	storage spirv.StorageClass
}

type spirvVariable struct {
	ptrType uint32
	storage spirv.StorageClass
}

type entryPoint struct {
	model      spirv.ExecutionModel
	interfaces []uint32
}

// module holds the subset of a SPIR-V module needed for reflection.
type module struct {
	types          map[uint32]spirvType
	variables      map[uint32]spirvVariable
	names          map[uint32]string
	locations      map[uint32]uint32
	builtins       map[uint32]bool
	builtinMembers map[uint32]bool
	entryPoints    []entryPoint
}

// Reflect reads the "main" entry point of code and reports its non built-in
// inputs. The entry point's execution model must match stage.
func Reflect(code []uint32, stage Stage) (Interface, error) {
	m, err := parse(code)
	if err != nil {
		return Interface{}, err
	}
	if len(m.entryPoints) == 0 {
		return Interface{}, ErrNoEntryPoint
	}

	idx := slices.IndexFunc(m.entryPoints, func(ep entryPoint) bool {
		return ep.model == stage.executionModel()
	})
	if idx < 0 {
		return Interface{}, fmt.Errorf("%w: entry point %s is %s, expected %s",
			core.ErrUnsupportedStage, EntryPoint, modelName(m.entryPoints[0].model), stage)
	}
	ep := m.entryPoints[idx]

	iface := Interface{Stage: stage}
	for _, id := range ep.interfaces {
		v, ok := m.variables[id]
		if !ok || v.storage != spirv.StorageClassInput {
			continue
		}
		ptr, ok := m.types[v.ptrType]
		if !ok || ptr.kind != kindPointer {
			return Interface{}, fmt.Errorf("%w: variable %d is not a pointer", ErrInvalidSPIRV, id)
		}
		if m.builtins[id] || m.builtinMembers[ptr.elem] {
			continue
		}

		name := m.names[id]
		location, ok := m.locations[id]
		if !ok {
			return Interface{}, fmt.Errorf("%w: input %q has no location", ErrInvalidSPIRV, name)
		}
		format, ok := m.floatFormat(ptr.elem)
		if !ok {
			return Interface{}, &core.UnsupportedInterfaceFormatError{
				Name:     name,
				Location: location,
				Format:   m.describe(ptr.elem),
			}
		}
		iface.Inputs = append(iface.Inputs, Variable{Location: location, Name: name, Format: format})
	}

	slices.SortFunc(iface.Inputs, func(a, b Variable) int {
		return cmp.Compare(a.Location, b.Location)
	})
	return iface, nil
}

func parse(code []uint32) (*module, error) {
	if len(code) < spirvHeaderWords || code[0] != spirv.MagicNumber {
		return nil, fmt.Errorf("%w: bad header", ErrInvalidSPIRV)
	}

	m := &module{
		types:          make(map[uint32]spirvType),
		variables:      make(map[uint32]spirvVariable),
		names:          make(map[uint32]string),
		locations:      make(map[uint32]uint32),
		builtins:       make(map[uint32]bool),
		builtinMembers: make(map[uint32]bool),
	}

	for i := spirvHeaderWords; i < len(code); {
		count := int(code[i] >> 16)
		op := spirv.OpCode(code[i] & 0xffff)
		if count == 0 || i+count > len(code) {
			return nil, fmt.Errorf("%w: truncated instruction at word %d", ErrInvalidSPIRV, i)
		}
		ops := code[i+1 : i+count]
		i += count

		if len(ops) < minOperands(op) {
			return nil, fmt.Errorf("%w: opcode %d has %d operands", ErrInvalidSPIRV, op, len(ops))
		}

		switch op {
		case spirv.OpEntryPoint:
			name, n := literalString(ops[2:])
			if name != EntryPoint {
				continue
			}
			m.entryPoints = append(m.entryPoints, entryPoint{
				model:      spirv.ExecutionModel(ops[0]),
				interfaces: ops[2+n:],
			})
		case spirv.OpName:
			m.names[ops[0]], _ = literalString(ops[1:])
		case spirv.OpDecorate:
			switch spirv.Decoration(ops[1]) {
			case spirv.DecorationLocation:
				if len(ops) > 2 {
					m.locations[ops[0]] = ops[2]
				}
			case spirv.DecorationBuiltIn:
				m.builtins[ops[0]] = true
			}
		case spirv.OpMemberDecorate:
			if spirv.Decoration(ops[2]) == spirv.DecorationBuiltIn {
				m.builtinMembers[ops[0]] = true
			}
		case spirv.OpTypeBool:
			m.types[ops[0]] = spirvType{kind: kindBool}
		case spirv.OpTypeInt:
			m.types[ops[0]] = spirvType{kind: kindInt, width: ops[1], signed: ops[2] != 0}
		case spirv.OpTypeFloat:
			m.types[ops[0]] = spirvType{kind: kindFloat, width: ops[1]}
		case spirv.OpTypeVector:
			m.types[ops[0]] = spirvType{kind: kindVector, elem: ops[1], count: ops[2]}
		case spirv.OpTypeMatrix:
			m.types[ops[0]] = spirvType{kind: kindMatrix, elem: ops[1], count: ops[2]}
		case spirv.OpTypeArray:
			m.types[ops[0]] = spirvType{kind: kindArray, elem: ops[1]}
		case spirv.OpTypeStruct:
			m.types[ops[0]] = spirvType{kind: kindStruct}
		case spirv.OpTypePointer:
			m.types[ops[0]] = spirvType{kind: kindPointer, storage: spirv.StorageClass(ops[1]), elem: ops[2]}
		case spirv.OpVariable:
			m.variables[ops[1]] = spirvVariable{ptrType: ops[0], storage: spirv.StorageClass(ops[2])}
		}
	}
	return m, nil
}

func minOperands(op spirv.OpCode) int {
	switch op {
	case spirv.OpTypeBool, spirv.OpTypeStruct:
		return 1
	case spirv.OpName, spirv.OpTypeFloat, spirv.OpDecorate:
		return 2
	case spirv.OpEntryPoint, spirv.OpMemberDecorate, spirv.OpTypeInt, spirv.OpTypeVector,
		spirv.OpTypeMatrix, spirv.OpTypeArray, spirv.OpTypePointer, spirv.OpVariable:
		return 3
	default:
		return 0
	}
}

// literalString decodes a nul terminated UTF-8 literal and returns the
// number of words it occupies.
func literalString(words []uint32) (string, int) {
	var buf []byte
	for i, w := range words {
		for shift := 0; shift < 32; shift += 8 {
			c := byte(w >> shift)
			if c == 0 {
				return string(buf), i + 1
			}
			buf = append(buf, c)
		}
	}
	return string(buf), len(words)
}

func (m *module) floatFormat(id uint32) (Format, bool) {
	t := m.types[id]
	switch t.kind {
	case kindFloat:
		if t.width == 32 {
			return Format{Scalar: ScalarFloat32, Components: 1}, true
		}
	case kindVector:
		c := m.types[t.elem]
		if c.kind == kindFloat && c.width == 32 && t.count >= 2 && t.count <= 4 {
			return Format{Scalar: ScalarFloat32, Components: t.count}, true
		}
	}
	return Format{}, false
}

func (m *module) describe(id uint32) string {
	t, ok := m.types[id]
	if !ok {
		return "unknown"
	}
	switch t.kind {
	case kindBool:
		return "bool"
	case kindInt:
		if t.signed {
			return fmt.Sprintf("int%d", t.width)
		}
		return fmt.Sprintf("uint%d", t.width)
	case kindFloat:
		return fmt.Sprintf("float%d", t.width)
	case kindVector:
		return fmt.Sprintf("vec%d<%s>", t.count, m.describe(t.elem))
	case kindMatrix:
		return fmt.Sprintf("mat%d<%s>", t.count, m.describe(t.elem))
	case kindArray:
		return fmt.Sprintf("array<%s>", m.describe(t.elem))
	case kindStruct:
		return "struct"
	default:
		return "unknown"
	}
}

func modelName(model spirv.ExecutionModel) string {
	switch model {
	case spirv.ExecutionModelVertex:
		return "vertex"
	case spirv.ExecutionModelFragment:
		return "fragment"
	case spirv.ExecutionModelGLCompute:
		return "compute"
	default:
		return fmt.Sprintf("model(%d)", uint32(model))
	}
}
