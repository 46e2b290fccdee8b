package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/snow/engine/renderer/driver"
)

type WindowConfig struct {
	// The application name used in windowing.
	Name string `toml:"name"`
	// Window starting position.
	X uint32 `toml:"x"`
	Y uint32 `toml:"y"`
	// Window starting size.
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	// 0 uses the surface minimum.
	ImageCount  uint32 `toml:"image_count"`
	PresentMode string `toml:"present_mode"`
	Validation  bool   `toml:"validation"`
	// The run loop stops after this many frame-fatal errors in a row.
	MaxConsecutiveFailures uint32     `toml:"max_consecutive_failures"`
	ClearColor             [4]float32 `toml:"clear_color"`
}

type ShaderConfig struct {
	Dir string `toml:"dir"`
	// glslc, naga or precompiled.
	Compiler string `toml:"compiler"`
	Watch    bool   `toml:"watch"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type ApplicationConfig struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Shaders  ShaderConfig   `toml:"shaders"`
	Log      LogConfig      `toml:"log"`
}

func DefaultApplicationConfig() *ApplicationConfig {
	return &ApplicationConfig{
		Window: WindowConfig{
			Name:   "Snow Engine",
			X:      100,
			Y:      100,
			Width:  1240,
			Height: 720,
		},
		Renderer: RendererConfig{
			PresentMode:            "fifo",
			MaxConsecutiveFailures: 3,
			ClearColor:             [4]float32{0, 0, 1, 1},
		},
		Shaders: ShaderConfig{
			Dir:      "assets/shaders",
			Compiler: "glslc",
		},
		Log: LogConfig{
			Level: "debug",
		},
	}
}

// LoadApplicationConfig reads the TOML file at path on top of the defaults.
// A missing file yields the defaults.
func LoadApplicationConfig(path string) (*ApplicationConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultApplicationConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	cfg, err := ParseApplicationConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseApplicationConfig decodes data on top of the defaults. Unknown keys
// are rejected.
func ParseApplicationConfig(data []byte) (*ApplicationConfig, error) {
	cfg := DefaultApplicationConfig()
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("unknown configuration keys:\n%s", strict.String())
		}
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ApplicationConfig) Validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height)
	}
	if _, err := driver.ParsePresentMode(c.Renderer.PresentMode); err != nil {
		return err
	}
	if c.Renderer.MaxConsecutiveFailures == 0 {
		return errors.New("max_consecutive_failures must be at least 1")
	}
	switch c.Shaders.Compiler {
	case "glslc", "naga", "spirv", "precompiled":
	default:
		return fmt.Errorf("unknown shader compiler %q", c.Shaders.Compiler)
	}
	return nil
}
