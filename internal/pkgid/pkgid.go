// Package pkgid defines the opaque package identifiers shared across the
// resolver, installer, cache, and lock-file components. Keeping the
// (name, version) pair as a small comparable struct — rather than a
// concatenated string key — lets package names contain "@" or "/"
// (scoped names) without ambiguity, and lets it serve directly as a map
// key per the "opaque handle" guidance in the design notes.
package pkgid

import "fmt"

// Name is an opaque package name token, possibly scoped ("@scope/name").
type Name string

// Version is a semantic-version string, or a non-semver fallback token.
type Version string

// ID is a PackageId: the pair that uniquely identifies one concrete,
// published version of a package.
type ID struct {
	Name    Name
	Version Version
}

// String renders the canonical "name@version" form used in diagnostics
// and cycle reports.
func (id ID) String() string {
	return fmt.Sprintf("%s@%s", id.Name, id.Version)
}

// Dependency is an edge: a required name and the range string that
// constrains it. The range's exact text is preserved for round-tripping
// to the manifest.
type Dependency struct {
	Name  Name
	Range string
}
