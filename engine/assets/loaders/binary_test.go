package loaders_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/snow/engine/assets/loaders"
)

func TestBytesToWords(t *testing.T) {
	words, err := loaders.BytesToWords([]byte{0x03, 0x02, 0x23, 0x07, 0x01, 0x00, 0x00, 0x00})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(words) != 2 || words[0] != 0x07230203 || words[1] != 1 {
		t.Errorf("words = %#x", words)
	}

	if _, err := loaders.BytesToWords([]byte{1, 2, 3}); err == nil {
		t.Error("expected an error for a truncated stream")
	}
}

func TestBinaryLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.vert.spv")
	if err := os.WriteFile(path, []byte{0x03, 0x02, 0x23, 0x07}, 0o644); err != nil {
		t.Fatal(err)
	}

	bl := &loaders.BinaryLoader{}
	res, err := bl.Load(path)
	if err != nil {
		t.Fatalf("load: %s", err)
	}
	if res.Name != "default.vert.spv" || res.Type != loaders.ResourceTypeSPIRV || res.DataSize != 4 {
		t.Errorf("resource = %+v", res)
	}
	if words := res.Data.([]uint32); words[0] != 0x07230203 {
		t.Errorf("words = %#x", words)
	}

	if err := bl.Unload(res); err != nil || res.Data != nil {
		t.Errorf("unload = %v, data %v", err, res.Data)
	}
}

func TestShaderLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.frag")
	src := "#version 450\nvoid main() {}\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := (&loaders.ShaderLoader{}).Load(path)
	if err != nil {
		t.Fatalf("load: %s", err)
	}
	if string(res.Data.([]byte)) != src || res.Type != loaders.ResourceTypeShaderSource {
		t.Errorf("resource = %+v", res)
	}

	if _, err := (&loaders.ShaderLoader{}).Load(filepath.Join(t.TempDir(), "missing.vert")); !os.IsNotExist(err) {
		t.Errorf("expected a not-exist error, got %v", err)
	}
}
