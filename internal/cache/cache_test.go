package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jsdeps/jsdeps/internal/pkgid"
)

func TestCache_PutGetHas(t *testing.T) {
	dir := t.TempDir()

	c, err := Open(filepath.Join(dir, ".package_cache"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	id := pkgid.ID{Name: "left-pad", Version: "1.0.0"}

	if c.Has(id) {
		t.Fatalf("expected empty cache to not have %s", id)
	}

	src := filepath.Join(dir, "src")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(src, "package.json"), []byte(`{"name":"left-pad"}`), 0o644); err != nil {
		t.Fatalf("writefile failed: %v", err)
	}

	if err := c.Put(id, src); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	if !c.Has(id) {
		t.Fatalf("expected cache to have %s after put", id)
	}

	dest := filepath.Join(dir, "dest")
	if err := c.Get(id, dest); err != nil {
		t.Fatalf("get failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dest, "package.json"))
	if err != nil {
		t.Fatalf("reading copied file: %v", err)
	}

	if string(data) != `{"name":"left-pad"}` {
		t.Fatalf("unexpected copied content: %s", data)
	}
}

func TestCache_PutIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	c, err := Open(filepath.Join(dir, ".package_cache"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	id := pkgid.ID{Name: "chalk", Version: "4.0.0"}

	src := filepath.Join(dir, "src")
	os.MkdirAll(src, 0o755)
	os.WriteFile(filepath.Join(src, "package.json"), []byte(`{}`), 0o644)

	if err := c.Put(id, src); err != nil {
		t.Fatalf("first put failed: %v", err)
	}

	if err := c.Put(id, src); err != nil {
		t.Fatalf("second put should be a no-op, got: %v", err)
	}
}

func TestCache_GetMissing(t *testing.T) {
	dir := t.TempDir()

	c, err := Open(filepath.Join(dir, ".package_cache"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	if err := c.Get(pkgid.ID{Name: "nope", Version: "1.0.0"}, filepath.Join(dir, "dest")); err == nil {
		t.Fatalf("expected error for missing cache entry")
	}
}

func TestCache_Clear(t *testing.T) {
	dir := t.TempDir()

	c, err := Open(filepath.Join(dir, ".package_cache"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	id := pkgid.ID{Name: "chalk", Version: "4.0.0"}

	src := filepath.Join(dir, "src")
	os.MkdirAll(src, 0o755)
	os.WriteFile(filepath.Join(src, "package.json"), []byte(`{}`), 0o644)
	c.Put(id, src)

	if err := c.Clear(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	if c.Has(id) {
		t.Fatalf("expected cache to be empty after clear")
	}
}
