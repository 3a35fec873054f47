package installer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jsdeps/jsdeps/internal/cache"
	"github.com/jsdeps/jsdeps/internal/manifest"
	"github.com/jsdeps/jsdeps/internal/pkgid"
	"github.com/jsdeps/jsdeps/internal/registry"
	"github.com/jsdeps/jsdeps/internal/resolver"
)

func newFixture(name, version string, deps map[string]string, files map[string]string) (registry.Manifest, map[string]string) {
	var depList []pkgid.Dependency
	for n, r := range deps {
		depList = append(depList, pkgid.Dependency{Name: pkgid.Name(n), Range: r})
	}

	if files == nil {
		files = map[string]string{
			"package.json": `{"name":"` + name + `","version":"` + version + `"}`,
			"README.md":    "readme",
			"LICENSE":      "license",
		}
	}

	return registry.Manifest{Name: pkgid.Name(name), Version: pkgid.Version(version), Dependencies: depList}, files
}

func TestInstall_HoistsTopLevel(t *testing.T) {
	reg := registry.NewFixtureClient()

	mf, files := newFixture("left-pad", "1.3.0", nil, nil)
	reg.Publish(mf, files)

	m, err := manifest.Parse([]byte(`{"name":"app","version":"1.0.0","dependencies":{"left-pad":"^1.0.0"}}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	res := resolver.New(reg).Resolve(context.Background(), m, nil, false, nil)

	root := t.TempDir()

	c, err := cache.Open(filepath.Join(t.TempDir(), ".package_cache"))
	if err != nil {
		t.Fatalf("cache open failed: %v", err)
	}

	report := New(reg, c, 2).Install(context.Background(), res, root)

	if len(report.Failures) != 0 {
		t.Fatalf("expected no failures, got %v", report.Failures)
	}

	if _, err := os.Stat(filepath.Join(root, "left-pad", "package.json")); err != nil {
		t.Fatalf("expected left-pad hoisted to tree root: %v", err)
	}
}

func TestInstall_NestsConflictingVersion(t *testing.T) {
	reg := registry.NewFixtureClient()

	mfB1, filesB1 := newFixture("b", "1.0.0", nil, nil)
	reg.Publish(mfB1, filesB1)

	mfB2, filesB2 := newFixture("b", "2.0.0", nil, nil)
	reg.Publish(mfB2, filesB2)

	mfA, filesA := newFixture("a", "1.0.0", map[string]string{"b": "^1.0.0"}, nil)
	reg.Publish(mfA, filesA)

	m, err := manifest.Parse([]byte(`{"name":"app","version":"1.0.0","dependencies":{"b":"^2.0.0","a":"^1.0.0"}}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	res := resolver.New(reg).Resolve(context.Background(), m, nil, false, nil)

	root := t.TempDir()

	c, err := cache.Open(filepath.Join(t.TempDir(), ".package_cache"))
	if err != nil {
		t.Fatalf("cache open failed: %v", err)
	}

	report := New(reg, c, 2).Install(context.Background(), res, root)

	if len(report.Failures) != 0 {
		t.Fatalf("expected no failures, got %v", report.Failures)
	}

	if _, err := os.Stat(filepath.Join(root, "b", "package.json")); err != nil {
		t.Fatalf("expected top-level b@2.0.0 hoisted: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "a", "node_modules", "b", "package.json")); err != nil {
		t.Fatalf("expected b@1.0.0 nested under a: %v", err)
	}
}

func TestInstall_CacheHitSkipsDownload(t *testing.T) {
	reg := registry.NewFixtureClient()

	mf, files := newFixture("x", "1.0.0", nil, nil)
	reg.Publish(mf, files)

	cacheDir := filepath.Join(t.TempDir(), ".package_cache")

	c, err := cache.Open(cacheDir)
	if err != nil {
		t.Fatalf("cache open failed: %v", err)
	}

	staged := t.TempDir()

	for name, contents := range files {
		os.WriteFile(filepath.Join(staged, name), []byte(contents), 0o644)
	}

	if err := c.Put(pkgid.ID{Name: "x", Version: "1.0.0"}, staged); err != nil {
		t.Fatalf("priming cache failed: %v", err)
	}

	// Wrap the fixture in a client whose DownloadTarball panics, so a
	// download attempt would fail loudly — proving the installer served
	// x from cache.
	noTarballClient := &noDownloadClient{Client: reg}

	m, err := manifest.Parse([]byte(`{"name":"app","version":"1.0.0","dependencies":{"x":"^1.0.0"}}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	res := resolver.New(noTarballClient).Resolve(context.Background(), m, nil, false, nil)

	root := t.TempDir()

	report := New(noTarballClient, c, 2).Install(context.Background(), res, root)

	if len(report.Failures) != 0 {
		t.Fatalf("expected cache hit to avoid download, got failures: %v", report.Failures)
	}

	if _, err := os.Stat(filepath.Join(root, "x", "package.json")); err != nil {
		t.Fatalf("expected x installed from cache: %v", err)
	}
}

// noDownloadClient wraps a Client but fails any DownloadTarball call,
// so a test can prove the installer never called it (cache hit path).
type noDownloadClient struct {
	registry.Client
}

func (n *noDownloadClient) DownloadTarball(ctx context.Context, name pkgid.Name, version pkgid.Version, dest string) error {
	panic("DownloadTarball should not be called on a cache hit")
}
