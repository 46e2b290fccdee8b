package assets_test

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/spaghettifunk/snow/engine/assets"
	"github.com/spaghettifunk/snow/engine/assets/loaders"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestAssetManagerIndex(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "default.vert"), "vert")
	writeFile(t, filepath.Join(dir, "default.frag"), "frag")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	if err := os.Mkdir(filepath.Join(dir, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "bin", "default.vert.spv"), "\x03\x02\x23\x07")

	am := assets.NewAssetManager()
	if err := am.Initialize(dir, false); err != nil {
		t.Fatalf("initialize: %s", err)
	}

	sources := am.Assets(loaders.ResourceTypeShaderSource)
	want := []string{filepath.Join(dir, "default.frag"), filepath.Join(dir, "default.vert")}
	if !slices.Equal(sources, want) {
		t.Errorf("sources = %v, want %v", sources, want)
	}
	if binaries := am.Assets(loaders.ResourceTypeSPIRV); len(binaries) != 1 {
		t.Errorf("binaries = %v, want one", binaries)
	}

	res, err := am.LoadAsset(filepath.Join(dir, "default.vert"))
	if err != nil {
		t.Fatalf("load: %s", err)
	}
	if string(res.Data.([]byte)) != "vert" {
		t.Errorf("data = %q", res.Data)
	}
	if err := am.UnloadAsset(res); err != nil {
		t.Errorf("unload: %s", err)
	}

	if _, err := am.LoadAsset(filepath.Join(dir, "notes.txt")); !errors.Is(err, assets.ErrAssetNotFound) {
		t.Errorf("expected ErrAssetNotFound, got %v", err)
	}
}

func TestAssetManagerWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "default.frag")
	writeFile(t, path, "frag")

	am := assets.NewAssetManager()
	if err := am.Initialize(dir, true); err != nil {
		t.Fatalf("initialize: %s", err)
	}
	defer am.Shutdown()

	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	writeFile(t, path, "frag v2")

	select {
	case got := <-am.Changed():
		if got != path {
			t.Errorf("changed = %s, want %s", got, path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}

	created := filepath.Join(dir, "extra.vert")
	writeFile(t, created, "vert")
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-am.Changed():
			if got != created {
				continue
			}
			if _, err := am.LoadAsset(created); err != nil {
				t.Errorf("created file not indexed: %s", err)
			}
			return
		case <-deadline:
			t.Fatal("no notification for the created file")
		}
	}
}

func TestAssetManagerShutdownWithoutWatch(t *testing.T) {
	am := assets.NewAssetManager()
	if err := am.Initialize(t.TempDir(), false); err != nil {
		t.Fatalf("initialize: %s", err)
	}
	if err := am.Shutdown(); err != nil {
		t.Errorf("shutdown: %s", err)
	}
}
