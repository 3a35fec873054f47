package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jsdeps/jsdeps/internal/depserr"
	"github.com/jsdeps/jsdeps/internal/pkgid"
	"github.com/jsdeps/jsdeps/internal/semrange"
)

// FixtureClient is an in-memory Registry Client used by tests and by
// offline tooling. Grounded on internal/packagemanager/registry.go's
// InMemoryRegistry: a plain map guarded by a mutex, no network, no
// persistence.
type FixtureClient struct {
	mu       sync.RWMutex
	packages map[pkgid.Name]map[pkgid.Version]fixtureEntry
}

type fixtureEntry struct {
	manifest Manifest
	files    map[string]string // relative path -> file contents, for DownloadTarball
}

// NewFixtureClient returns an empty fixture registry.
func NewFixtureClient() *FixtureClient {
	return &FixtureClient{packages: make(map[pkgid.Name]map[pkgid.Version]fixtureEntry)}
}

// Publish registers a version's manifest and the file tree its
// "tarball" would extract to. Dependencies are taken from mf.
func (f *FixtureClient) Publish(mf Manifest, files map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.packages[mf.Name] == nil {
		f.packages[mf.Name] = make(map[pkgid.Version]fixtureEntry)
	}

	if files == nil {
		files = map[string]string{"package.json": fmt.Sprintf(`{"name":%q,"version":%q}`, mf.Name, mf.Version)}
	}

	f.packages[mf.Name][mf.Version] = fixtureEntry{manifest: mf, files: files}
}

// ListVersions implements Client.
func (f *FixtureClient) ListVersions(_ context.Context, name pkgid.Name) ([]pkgid.Version, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	versions, ok := f.packages[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", depserr.ErrPackageNotFound, name)
	}

	out := make([]pkgid.Version, 0, len(versions))
	for v := range versions {
		out = append(out, v)
	}

	semrange.SortAscending(out)

	return out, nil
}

// FetchMetadata implements Client.
func (f *FixtureClient) FetchMetadata(_ context.Context, name pkgid.Name, version pkgid.Version) (Manifest, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	versions, ok := f.packages[name]
	if !ok {
		return Manifest{}, fmt.Errorf("%w: %s", depserr.ErrPackageNotFound, name)
	}

	resolved := version
	if resolved == "latest" || resolved == "" {
		all := make([]pkgid.Version, 0, len(versions))
		for v := range versions {
			all = append(all, v)
		}

		semrange.SortAscending(all)

		if len(all) == 0 {
			return Manifest{}, fmt.Errorf("%w: %s has no published versions", depserr.ErrVersionNotFound, name)
		}

		resolved = all[len(all)-1]
	}

	entry, ok := versions[resolved]
	if !ok {
		return Manifest{}, fmt.Errorf("%w: %s@%s", depserr.ErrVersionNotFound, name, version)
	}

	return entry.manifest, nil
}

// DownloadTarball implements Client by writing the fixture's registered
// file tree directly into targetDir, skipping the tar/gzip round trip.
func (f *FixtureClient) DownloadTarball(_ context.Context, name pkgid.Name, version pkgid.Version, targetDir string) error {
	f.mu.RLock()
	versions, ok := f.packages[name]
	if !ok {
		f.mu.RUnlock()

		return fmt.Errorf("%w: %s", depserr.ErrPackageNotFound, name)
	}

	entry, ok := versions[version]
	f.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s@%s", depserr.ErrVersionNotFound, name, version)
	}

	for rel, contents := range entry.files {
		target := filepath.Join(targetDir, rel)

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("%w: %v", depserr.ErrExtractionFailed, err)
		}

		if err := os.WriteFile(target, []byte(contents), 0o644); err != nil {
			return fmt.Errorf("%w: %v", depserr.ErrExtractionFailed, err)
		}
	}

	return nil
}
