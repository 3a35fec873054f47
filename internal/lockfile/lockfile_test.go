package lockfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jsdeps/jsdeps/internal/manifest"
)

func TestRead_MissingIsEmpty(t *testing.T) {
	d, err := Read(filepath.Join(t.TempDir(), "package-lock.json"))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if len(d.Dependencies) != 0 {
		t.Fatalf("expected empty document, got %v", d.Dependencies)
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "package-lock.json")

	doc := &Document{
		Dependencies: map[string]Entry{
			"left-pad": {Version: "1.3.0"},
			"chalk":    {Version: "4.1.2", Dependencies: map[string]string{"ansi-styles": "4.3.0"}},
		},
	}

	if err := Write(path, doc); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	reloaded, err := Read(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if reloaded.Dependencies["chalk"].Dependencies["ansi-styles"] != "4.3.0" {
		t.Fatalf("unexpected reload: %+v", reloaded.Dependencies["chalk"])
	}
}

func TestWrite_DeterministicKeyOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "package-lock.json")

	doc := &Document{Dependencies: map[string]Entry{
		"zebra": {Version: "1.0.0"},
		"apple": {Version: "2.0.0"},
	}}

	if err := Write(path, doc); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}

	data := string(raw)

	if strings.Index(data, "apple") > strings.Index(data, "zebra") {
		t.Fatalf("expected sorted key order, got:\n%s", data)
	}
}

func TestIsCurrent(t *testing.T) {
	m, err := manifest.Parse([]byte(`{"name":"a","version":"1.0.0","dependencies":{"left-pad":"^1.0.0"}}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	doc := &Document{Dependencies: map[string]Entry{"left-pad": {Version: "^1.0.0"}}}

	if !IsCurrent(doc, m) {
		t.Fatalf("expected lock to be current when the recorded version string matches the manifest range verbatim")
	}

	staleDoc := &Document{Dependencies: map[string]Entry{"left-pad": {Version: "1.3.0"}}}
	if IsCurrent(staleDoc, m) {
		t.Fatalf("expected lock to be stale: a resolved concrete version does not verbatim-match the manifest's range string, even though it satisfies it")
	}

	emptyDoc := &Document{Dependencies: map[string]Entry{}}
	if IsCurrent(emptyDoc, m) {
		t.Fatalf("expected empty lock to be stale")
	}
}
