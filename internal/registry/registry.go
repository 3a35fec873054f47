// Package registry defines the Registry Client contract and its two
// implementations: HTTPClient (a real npm-shaped registry over HTTPS)
// and FixtureClient (an in-memory registry for tests and offline
// fixtures). Split grounded on the teacher's HTTPRegistry/FileRegistry
// pair in internal/packagemanager/{httpregistry,fileregistry}.go, which
// both implement a single Registry interface.
package registry

import (
	"context"

	"github.com/jsdeps/jsdeps/internal/pkgid"
)

// Manifest is a package version's published metadata: its dependencies
// and where to fetch its tarball.
type Manifest struct {
	Name         pkgid.Name
	Version      pkgid.Version
	Dependencies []pkgid.Dependency
	TarballURL   string
	Integrity    string // optional expected digest, e.g. "sha256-<hex>"; empty if registry doesn't supply one
}

// Client is the Registry Client of the spec: list_versions,
// fetch_metadata, download_tarball. All operations are idempotent; the
// client performs no retry policy of its own beyond what's noted per
// implementation.
type Client interface {
	// ListVersions returns every published version of name.
	ListVersions(ctx context.Context, name pkgid.Name) ([]pkgid.Version, error)
	// FetchMetadata returns the manifest for (name, version). version
	// may be the literal "latest".
	FetchMetadata(ctx context.Context, name pkgid.Name, version pkgid.Version) (Manifest, error)
	// DownloadTarball downloads and extracts the package's tarball into
	// targetDir, which on success contains at least a manifest file.
	DownloadTarball(ctx context.Context, name pkgid.Name, version pkgid.Version, targetDir string) error
}
