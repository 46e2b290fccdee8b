package loaders

// ResourceType selects the loader used for a file.
type ResourceType int

const (
	ResourceTypeNone ResourceType = iota
	// Shader source text (GLSL, or WGSL for the naga compiler).
	ResourceTypeShaderSource
	// Precompiled SPIR-V words.
	ResourceTypeSPIRV
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeShaderSource:
		return "shader source"
	case ResourceTypeSPIRV:
		return "spirv"
	default:
		return "none"
	}
}

/**
 * @brief A generic structure for a resource. All resource loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The name of the resource, the file name without directory. */
	Name string
	/** @brief The full file path of the resource. */
	FullPath string
	Type     ResourceType
	/** @brief The size of the resource data in bytes. */
	DataSize uint64
	/** @brief The resource data: []byte for sources, []uint32 for SPIR-V. */
	Data interface{}
}
