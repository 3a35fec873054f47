// Package depserr defines the error taxonomy shared by the resolver,
// installer, registry, cache, and lock-file components. Every fallible
// operation returns (or wraps) one of these sentinels so a caller can
// classify a failure with errors.Is without depending on a concrete type.
package depserr

import "errors"

var (
	// ErrManifestMissing means the manifest path does not exist. Fatal.
	ErrManifestMissing = errors.New("manifest missing")
	// ErrManifestInvalid means the manifest exists but does not parse. Fatal.
	ErrManifestInvalid = errors.New("manifest invalid")

	// ErrInvalidRange means a version-range expression failed to parse.
	ErrInvalidRange = errors.New("invalid version range")

	// ErrPackageNotFound means the registry has no such package name.
	ErrPackageNotFound = errors.New("package not found")
	// ErrVersionNotFound means no version satisfies the requested range.
	ErrVersionNotFound = errors.New("version not found")
	// ErrRegistryUnavailable means a transport-level failure talking to the registry.
	ErrRegistryUnavailable = errors.New("registry unavailable")

	// ErrDownloadFailed means a tarball could not be retrieved.
	ErrDownloadFailed = errors.New("download failed")
	// ErrExtractionFailed means a tarball could not be extracted.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrIntegrityMismatch means a computed digest did not match an expected one.
	ErrIntegrityMismatch = errors.New("integrity mismatch")

	// ErrStructureViolation means an installed package's on-disk layout is malformed.
	ErrStructureViolation = errors.New("structure violation")
	// ErrDependencyMissing means a package's declared dependency is not installed under it.
	ErrDependencyMissing = errors.New("dependency missing")

	// ErrLockConflict means the lock references a version no longer in the registry.
	ErrLockConflict = errors.New("lock references unavailable version")
)

// Cycle is a diagnostic, not a fatal error: the spec requires it be
// reported but tolerated, so resolver code should log it rather than
// return it as an operation failure. Error formats the path.
type Cycle struct {
	Path []string // package@version identifiers, from the repeated node's first occurrence on the branch to its repeat.
}

func (c *Cycle) Error() string {
	s := "circular dependency detected: "
	for i, p := range c.Path {
		if i > 0 {
			s += " -> "
		}
		s += p
	}

	return s
}
