// Package cache implements the content-addressed package Cache: a
// filesystem store keyed by (name, version) that the installer consults
// before asking the Registry Client to download a tarball. Grounded on
// internal/build/cache.go's FSCache: every write lands in a temp
// location first and is moved into place with os.Rename, so a reader
// never observes a partially written entry, and the directory is
// addressed by a stable hash of the package identity rather than the
// raw name (which may contain "@" or "/" for scoped packages).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jsdeps/jsdeps/internal/depserr"
	"github.com/jsdeps/jsdeps/internal/obslog"
	"github.com/jsdeps/jsdeps/internal/pkgid"
)

var log = obslog.New("cache")

// Cache is the on-disk content-addressed store of extracted package
// trees, one entry per (name, version).
type Cache struct {
	root string
}

// Open returns a Cache rooted at dir, creating it if necessary.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("opening cache at %s: %w", dir, err)
	}

	return &Cache{root: dir}, nil
}

// key derives the cache directory name for a package identity: a
// 128-bit hex digest of "{name}@{version}", per the cache layout. A
// hash rather than the raw name avoids filesystem-hostile characters in
// scoped package names ("@scope/name") and keeps path length bounded;
// the cache is advisory and re-downloadable, so a truncated,
// non-cryptographic-strength digest is adequate.
func key(id pkgid.ID) string {
	sum := sha256.Sum256([]byte(id.String()))

	return hex.EncodeToString(sum[:16])
}

func (c *Cache) entryDir(id pkgid.ID) string {
	return filepath.Join(c.root, key(id))
}

// Has reports whether id is already cached.
func (c *Cache) Has(id pkgid.ID) bool {
	_, err := os.Stat(c.entryDir(id))

	return err == nil
}

// Get copies the cached tree for id into destDir, which must not yet
// exist. It returns depserr.ErrPackageNotFound if id is not cached.
func (c *Cache) Get(id pkgid.ID, destDir string) error {
	src := c.entryDir(id)

	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("%w: %s not in cache", depserr.ErrPackageNotFound, id)
	}

	return copyTree(src, destDir)
}

// Put atomically stores srcDir (an already-materialized package tree)
// under id. A concurrent Put for the same id is safe: the loser's
// temp directory is discarded once the winner's rename lands.
func (c *Cache) Put(id pkgid.ID, srcDir string) error {
	final := c.entryDir(id)

	if _, err := os.Stat(final); err == nil {
		return nil // already cached by a previous or concurrent run
	}

	tmp, err := os.MkdirTemp(c.root, "put-*")
	if err != nil {
		return fmt.Errorf("creating cache temp dir: %w", err)
	}

	if err := copyTree(srcDir, tmp); err != nil {
		os.RemoveAll(tmp)

		return fmt.Errorf("staging cache entry for %s: %w", id, err)
	}

	if err := os.Rename(tmp, final); err != nil {
		// Lost the race to a concurrent Put for the same id: the
		// destination now exists, so discard our staged copy.
		if _, statErr := os.Stat(final); statErr == nil {
			os.RemoveAll(tmp)

			return nil
		}

		os.RemoveAll(tmp)

		return fmt.Errorf("committing cache entry for %s: %w", id, err)
	}

	log.Infof("cached %s", id)

	return nil
}

// Clear removes every entry from the cache.
func (c *Cache) Clear() error {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}

	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(c.root, e.Name())); err != nil {
			return fmt.Errorf("clearing cache entry %s: %w", e.Name(), err)
		}
	}

	return nil
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		target := filepath.Join(dst, rel)

		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		return os.WriteFile(target, data, info.Mode())
	})
}
