//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
)

const (
	shaderDir    = "assets/shaders"
	shaderOutDir = "assets/shaders/bin"
)

type Build mg.Namespace

// Compiles every .vert and .frag under assets/shaders to SPIR-V in
// assets/shaders/bin.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the engine binary.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", "bin/snow", "."), withStream())
	return err
}

func buildShaders() error {
	sources, err := shaderSources(shaderDir)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		fmt.Printf("No shaders found in %s\n", shaderDir)
		return nil
	}
	if err := os.MkdirAll(shaderOutDir, 0o755); err != nil {
		return err
	}

	for _, src := range sources {
		out := filepath.Join(shaderOutDir, filepath.Base(src)+".spv")
		args := []string{"-DEP=main", src, "-o", out}
		if _, err := executeCmd("glslc", withArgs(args...), withStream()); err != nil {
			return err
		}
	}
	return nil
}

func shaderSources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".vert", ".frag":
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}
