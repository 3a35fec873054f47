// Package lockfile reads and writes the deterministic lock document: one
// resolved version per top-level package name, plus each package's own
// resolved child versions, so a repeat install can reuse the locked root
// versions verbatim instead of re-resolving their ranges. The roots' own
// dependencies are still resolved against the registry. Grounded on
// internal/packagemanager/lockfile.go's Lockfile/LockEntry/
// GenerateLockfile/VerifyLockfile, adapted from that package's
// CID-addressed single-registry model to the name+version keyed
// document shape of this project's ResolutionMap.
package lockfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/jsdeps/jsdeps/internal/manifest"
	"github.com/jsdeps/jsdeps/internal/pkgid"
)

// Entry is one locked package: its resolved version and the versions it
// in turn resolved its own dependencies to.
type Entry struct {
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Document is the full lock file:
// {"dependencies": {name: {"version": ..., "dependencies": {...}}}}.
type Document struct {
	Dependencies map[string]Entry `json:"dependencies"`
}

// Read loads a lock document from path. A missing file is not an error:
// it returns an empty Document so resolution proceeds from scratch.
func Read(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Document{Dependencies: map[string]Entry{}}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading lockfile %s: %w", path, err)
	}

	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing lockfile %s: %w", path, err)
	}

	if d.Dependencies == nil {
		d.Dependencies = map[string]Entry{}
	}

	return &d, nil
}

// Write renders d to path with stable, sorted key order and 2-space
// indent, so repeated writes of an unchanged resolution produce an
// identical file.
func Write(path string, d *Document) error {
	names := make([]string, 0, len(d.Dependencies))
	for n := range d.Dependencies {
		names = append(names, n)
	}

	sort.Strings(names)

	var buf bytes.Buffer

	buf.WriteString("{\n  \"dependencies\": {")

	for i, name := range names {
		if i > 0 {
			buf.WriteByte(',')
		}

		buf.WriteString("\n    ")

		nameB, _ := json.Marshal(name)
		buf.Write(nameB)
		buf.WriteString(": ")

		entryB, err := marshalEntrySorted(d.Dependencies[name])
		if err != nil {
			return fmt.Errorf("encoding lockfile entry %s: %w", name, err)
		}

		buf.Write(entryB)
	}

	if len(names) > 0 {
		buf.WriteString("\n  ")
	}

	buf.WriteString("}\n}\n")

	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func marshalEntrySorted(e Entry) ([]byte, error) {
	depNames := make([]string, 0, len(e.Dependencies))
	for n := range e.Dependencies {
		depNames = append(depNames, n)
	}

	sort.Strings(depNames)

	var buf bytes.Buffer

	buf.WriteString("{ \"version\": ")

	vb, err := json.Marshal(e.Version)
	if err != nil {
		return nil, err
	}

	buf.Write(vb)

	if len(depNames) > 0 {
		buf.WriteString(", \"dependencies\": {")

		for i, n := range depNames {
			if i > 0 {
				buf.WriteByte(',')
			}

			buf.WriteString(" ")

			nb, _ := json.Marshal(n)
			buf.Write(nb)
			buf.WriteString(": ")

			db, err := json.Marshal(e.Dependencies[n])
			if err != nil {
				return nil, err
			}

			buf.Write(db)
		}

		buf.WriteString(" }")
	}

	buf.WriteString(" }")

	return buf.Bytes(), nil
}

// FromResolution builds a Document from a resolver's top-level
// selection and the full id->dependency-versions map it produced.
func FromResolution(topLevel map[pkgid.Name]pkgid.Version, childVersions map[pkgid.ID]map[pkgid.Name]pkgid.Version) *Document {
	d := &Document{Dependencies: map[string]Entry{}}

	for name, version := range topLevel {
		e := Entry{Version: string(version)}

		if children, ok := childVersions[pkgid.ID{Name: name, Version: version}]; ok && len(children) > 0 {
			e.Dependencies = make(map[string]string, len(children))
			for cn, cv := range children {
				e.Dependencies[string(cn)] = string(cv)
			}
		}

		d.Dependencies[string(name)] = e
	}

	return d
}

// IsCurrent reports whether d still matches m's direct dependency
// declarations: every name in m.Dependencies must be locked, and the
// lock's recorded version string must equal the manifest's requested
// range string verbatim — not range-satisfaction, literal string
// equality. This matches the original tool's is_lock_file_current
// exactly (see original_source/src/lock_file_manager.py), quirky as it
// is: a manifest range of "^1.0.0" against a locked "1.3.0" is judged
// stale even though 1.3.0 satisfies ^1.0.0, because the two strings
// differ. devDependencies are deliberately not checked here — also
// carried over from the original tool's behavior, which never
// considered the lock stale on account of dev-only packages.
func IsCurrent(d *Document, m *manifest.Manifest) bool {
	for _, name := range m.Dependencies.Keys() {
		rng, _ := m.Dependencies.Get(name)

		entry, ok := d.Dependencies[name]
		if !ok {
			return false
		}

		if entry.Version != rng {
			return false
		}
	}

	return true
}
