//go:build mage

package main

import (
	"os"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the engine. SNOW_CONFIG defaults to snow.toml.
func (Run) Engine() error {
	mg.Deps(Build.Shaders)

	config := os.Getenv("SNOW_CONFIG")
	if config == "" {
		config = "snow.toml"
	}
	_, err := executeCmd("go", withArgs("run", "."), withEnv("SNOW_CONFIG="+config), withStream())
	return err
}

// Runs the test suite with the race detector.
func (Run) Tests() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream())
	return err
}
