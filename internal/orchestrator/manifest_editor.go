package orchestrator

import (
	"context"
	"fmt"
	"os"

	"github.com/jsdeps/jsdeps/internal/manifest"
	"github.com/jsdeps/jsdeps/internal/pkgid"
	"github.com/jsdeps/jsdeps/internal/registry"
	"github.com/jsdeps/jsdeps/internal/semrange"
)

// ManifestEditor is the manifest-level operation surface named by the
// spec's external interfaces: add/remove/update/list/init. These are
// not part of the core resolve/install pipeline — add only edits the
// manifest in place; no installation happens unless Install is also
// called.
type ManifestEditor interface {
	Add(ctx context.Context, manifestPath, packageSpec string, dev bool) error
	Remove(manifestPath, name string) error
	Update(ctx context.Context, manifestPath, name string) error
	List(manifestPath string) ([]pkgid.Dependency, error)
	Init(manifestPath, name, version string) error
}

// Editor is the default ManifestEditor, backed by a registry client for
// the version lookup add() performs when no range is given.
type Editor struct {
	client registry.Client
}

// NewEditor returns a ManifestEditor backed by client.
func NewEditor(client registry.Client) *Editor {
	return &Editor{client: client}
}

// Add edits the manifest at manifestPath, adding packageSpec
// ("name" or "name@range") to dependencies (or devDependencies if dev).
// If no range was given, it resolves the latest published version via
// the Version Matcher and records a caret range against it.
func (e *Editor) Add(ctx context.Context, manifestPath, packageSpec string, dev bool) error {
	name, rng := splitPackageSpec(packageSpec)

	if rng == "" {
		versions, err := e.client.ListVersions(ctx, pkgid.Name(name))
		if err != nil {
			return fmt.Errorf("listing versions for %s: %w", name, err)
		}

		latestRange, err := semrange.Parse("latest")
		if err != nil {
			return err
		}

		best, ok := semrange.MaxSatisfying(versions, latestRange)
		if !ok {
			return fmt.Errorf("no published versions for %s", name)
		}

		rng = "^" + string(best)
	}

	m, err := manifest.Read(manifestPath)
	if err != nil {
		return err
	}

	if dev {
		m.DevDependencies.Set(name, rng)
	} else {
		m.Dependencies.Set(name, rng)
	}

	return manifest.Write(manifestPath, m)
}

// Remove deletes name from both dependencies and devDependencies.
func (e *Editor) Remove(manifestPath, name string) error {
	m, err := manifest.Read(manifestPath)
	if err != nil {
		return err
	}

	m.Dependencies.Delete(name)
	m.DevDependencies.Delete(name)

	return manifest.Write(manifestPath, m)
}

// Update re-resolves name to the latest published version satisfying
// its existing range, rewriting the range to a caret range on that
// version.
func (e *Editor) Update(ctx context.Context, manifestPath, name string) error {
	m, err := manifest.Read(manifestPath)
	if err != nil {
		return err
	}

	rngStr, ok := m.Dependencies.Get(name)
	isDev := false

	if !ok {
		rngStr, ok = m.DevDependencies.Get(name)
		isDev = true
	}

	if !ok {
		return fmt.Errorf("%s is not a declared dependency", name)
	}

	rng, err := semrange.Parse(rngStr)
	if err != nil {
		return err
	}

	versions, err := e.client.ListVersions(ctx, pkgid.Name(name))
	if err != nil {
		return err
	}

	best, ok := semrange.MaxSatisfying(versions, rng)
	if !ok {
		return fmt.Errorf("no version of %s satisfies %s", name, rngStr)
	}

	newRange := "^" + string(best)
	if isDev {
		m.DevDependencies.Set(name, newRange)
	} else {
		m.Dependencies.Set(name, newRange)
	}

	return manifest.Write(manifestPath, m)
}

// List returns every declared dependency (runtime and dev) in manifest order.
func (e *Editor) List(manifestPath string) ([]pkgid.Dependency, error) {
	m, err := manifest.Read(manifestPath)
	if err != nil {
		return nil, err
	}

	deps := make([]pkgid.Dependency, 0, m.Dependencies.Len()+m.DevDependencies.Len())

	for _, n := range m.Dependencies.Keys() {
		rng, _ := m.Dependencies.Get(n)
		deps = append(deps, pkgid.Dependency{Name: pkgid.Name(n), Range: rng})
	}

	for _, n := range m.DevDependencies.Keys() {
		rng, _ := m.DevDependencies.Get(n)
		deps = append(deps, pkgid.Dependency{Name: pkgid.Name(n), Range: rng})
	}

	return deps, nil
}

// Init writes a fresh manifest at manifestPath with the given identity
// and empty dependency maps. It fails if a manifest already exists.
func (e *Editor) Init(manifestPath, name, version string) error {
	if _, err := os.Stat(manifestPath); err == nil {
		return fmt.Errorf("manifest already exists at %s", manifestPath)
	}

	m, err := manifest.Parse([]byte(`{}`))
	if err != nil {
		return err
	}

	m.Name = name
	m.Version = version

	return manifest.Write(manifestPath, m)
}

// splitPackageSpec splits "name@range" into its parts. A bare name (no
// "@", or a leading "@" for a scoped package with no trailing range)
// yields an empty range, signaling Add to resolve "latest".
func splitPackageSpec(spec string) (name, rng string) {
	start := 0
	if len(spec) > 0 && spec[0] == '@' {
		start = 1
	}

	for i := start; i < len(spec); i++ {
		if spec[i] == '@' {
			return spec[:i], spec[i+1:]
		}
	}

	return spec, ""
}
