// Package orchestrator sequences manifest read, lock consult,
// resolution, installation, and lock rewrite into the single `install`
// entry point the CLI layer (an external collaborator, out of scope
// here) calls into. Grounded on manager.go's Manager.ResolveAndFetch,
// which plays the same sequencing role for the teacher's package
// manager, generalized to this project's resolver/installer/lockfile
// split.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jsdeps/jsdeps/internal/cache"
	"github.com/jsdeps/jsdeps/internal/installer"
	"github.com/jsdeps/jsdeps/internal/lockfile"
	"github.com/jsdeps/jsdeps/internal/manifest"
	"github.com/jsdeps/jsdeps/internal/obslog"
	"github.com/jsdeps/jsdeps/internal/pkgid"
	"github.com/jsdeps/jsdeps/internal/registry"
	"github.com/jsdeps/jsdeps/internal/resolver"
)

var log = obslog.New("orchestrator")

// InstallResult is the structured outcome of Install: the resolution
// map, the insertion-ordered traversal (installation order), and a
// per-root success/failure summary — the CLI layer maps this into an
// exit code.
type InstallResult struct {
	Resolution map[pkgid.ID]*resolver.Node
	Order      []pkgid.ID
	TopLevel   map[pkgid.Name]pkgid.Version
	Cycles     []string
	Report     *installer.Report
	Failed     map[pkgid.Name]error
}

// Orchestrator owns the components an Install run needs.
type Orchestrator struct {
	client registry.Client
}

// New returns an Orchestrator backed by client.
func New(client registry.Client) *Orchestrator {
	return &Orchestrator{client: client}
}

// Install runs manifest read -> lock consult -> resolve -> install ->
// lock rewrite for the manifest at manifestPath, materializing the
// resolved tree under treeRoot. specific restricts resolution/install
// to the named top-level packages when non-empty (targeted install).
// visualize/forceVisualize are accepted for interface parity with the
// spec's orchestrator signature but are no-ops here: ASCII tree
// rendering and animated progress are explicitly out of scope.
func (o *Orchestrator) Install(ctx context.Context, manifestPath, treeRoot string, specific []string, visualize, forceVisualize bool) (*InstallResult, error) {
	_ = visualize
	_ = forceVisualize

	m, err := manifest.Read(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	lockPath := filepath.Join(filepath.Dir(manifestPath), "package-lock.json")

	doc, err := lockfile.Read(lockPath)
	if err != nil {
		return nil, fmt.Errorf("reading lock: %w", err)
	}

	locked, lockCurrent := lockedVersionsFor(doc, m)

	subset := make(map[pkgid.Name]bool, len(specific))
	for _, s := range specific {
		subset[pkgid.Name(s)] = true
	}

	res := resolver.New(o.client).Resolve(ctx, m, locked, lockCurrent, subset)

	for _, c := range res.Cycles {
		log.Warnf("%s", c.Error())
	}

	cacheRoot := filepath.Join(filepath.Dir(treeRoot), ".package_cache")

	c, err := cache.Open(cacheRoot)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	in := installer.New(o.client, c, ioConcurrency())

	report := in.Install(ctx, res, treeRoot)

	childVersions := make(map[pkgid.ID]map[pkgid.Name]pkgid.Version, len(res.Resolution))
	for id, node := range res.Resolution {
		childVersions[id] = node.Dependencies
	}

	newDoc := lockfile.FromResolution(res.TopLevel, childVersions)
	if err := lockfile.Write(lockPath, newDoc); err != nil {
		return nil, fmt.Errorf("writing lock: %w", err)
	}

	cycles := make([]string, 0, len(res.Cycles))
	for _, c := range res.Cycles {
		cycles = append(cycles, c.Error())
	}

	return &InstallResult{
		Resolution: res.Resolution,
		Order:      res.Order,
		TopLevel:   res.TopLevel,
		Cycles:     cycles,
		Report:     report,
		Failed:     res.Failed,
	}, nil
}

// lockedVersionsFor checks the lock's freshness against m and, if
// current, returns its {name: version} map for seeding resolution roots
// without range re-resolution.
func lockedVersionsFor(doc *lockfile.Document, m *manifest.Manifest) (resolver.LockedVersions, bool) {
	current := lockfile.IsCurrent(doc, m)

	locked := make(resolver.LockedVersions, len(doc.Dependencies))
	for name, entry := range doc.Dependencies {
		locked[pkgid.Name(name)] = pkgid.Version(entry.Version)
	}

	return locked, current
}
