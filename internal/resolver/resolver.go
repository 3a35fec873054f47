// Package resolver implements the core dependency resolution algorithm:
// a depth-first traversal from the manifest's roots that produces a
// ResolutionMap, a TopLevelSelection, and a first-seen traversal order.
// Architecturally grounded on internal/packagemanager/resolver.go's
// Resolver (a struct closing over a registry client and a constraint
// matcher) and internal/packagemanager/manager.go's optional concurrent
// metadata prefetch, but the algorithm itself — DFS with a path-local
// cycle set distinct from the resolution map, first-seen-wins top-level
// selection, per-subtree failure containment — follows this project's
// own resolution semantics rather than the teacher's backtracking
// constraint solver.
package resolver

import (
	"context"
	"sort"
	"sync"

	"github.com/jsdeps/jsdeps/internal/depserr"
	"github.com/jsdeps/jsdeps/internal/manifest"
	"github.com/jsdeps/jsdeps/internal/obslog"
	"github.com/jsdeps/jsdeps/internal/pkgid"
	"github.com/jsdeps/jsdeps/internal/registry"
	"github.com/jsdeps/jsdeps/internal/semrange"
)

var log = obslog.New("resolver")

// Node is one resolved package in the ResolutionMap: its own resolved
// dependency versions and the set of parents that reach it.
type Node struct {
	Dependencies map[pkgid.Name]pkgid.Version
	Parents      map[pkgid.ID]bool
}

// Result is the resolver's output: the full resolution map, the
// first-seen version chosen for each top-level name, and the
// insertion-ordered traversal — installation order matches this order.
type Result struct {
	Resolution map[pkgid.ID]*Node
	TopLevel   map[pkgid.Name]pkgid.Version
	Order      []pkgid.ID
	Cycles     []*depserr.Cycle
	// Failed records names whose subtree was abandoned after a contained
	// failure; resolution of siblings still proceeds.
	Failed map[pkgid.Name]error
}

// LockedVersions supplies a prior lock's {name: version} map, consulted
// by a root frontier entry before asking the Version Matcher to pick
// one: a locked version is reused verbatim rather than re-resolved.
// Non-root entries never consult it (see resolveVersion).
type LockedVersions map[pkgid.Name]pkgid.Version

// frontierEntry is one pending (name, range) edge to resolve, with its
// parent PackageId if this isn't a root.
type frontierEntry struct {
	name   pkgid.Name
	rng    string
	parent *pkgid.ID
}

// Resolver runs the traversal against a Registry Client.
type Resolver struct {
	client registry.Client
}

// New returns a Resolver backed by client.
func New(client registry.Client) *Resolver {
	return &Resolver{client: client}
}

// Resolve runs the algorithm described in the design notes: it seeds
// the frontier either from a current lock (lockCurrent true, bypassing
// range resolution for roots) or from the manifest's dependencies ∪
// devDependencies, then walks depth-first. subset, if non-empty,
// restricts the roots considered (targeted install).
func (r *Resolver) Resolve(ctx context.Context, m *manifest.Manifest, locked LockedVersions, lockCurrent bool, subset map[pkgid.Name]bool) *Result {
	res := &Result{
		Resolution: make(map[pkgid.ID]*Node),
		TopLevel:   make(map[pkgid.Name]pkgid.Version),
		Failed:     make(map[pkgid.Name]error),
	}

	roots := r.seedRoots(m, locked, lockCurrent, subset)

	for _, root := range roots {
		r.walk(ctx, res, root, locked, nil)
	}

	return res
}

// seedRoots builds the initial frontier. When lockCurrent is true and no
// subset was requested, it reads straight from the lock's name->version
// map, bypassing range resolution entirely for roots (but their own
// transitive dependencies are still walked from the registry). locked is
// a plain Go map, so its names are sorted before building entries —
// otherwise the lock-hit path would seed roots in a different,
// randomized order on every run, breaking the first-seen-wins rule that
// decides TopLevelSelection (and, in turn, hoisted-vs-nested placement)
// whenever two locked roots share a transitive dependency.
func (r *Resolver) seedRoots(m *manifest.Manifest, locked LockedVersions, lockCurrent bool, subset map[pkgid.Name]bool) []frontierEntry {
	if lockCurrent && len(subset) == 0 && len(locked) > 0 {
		names := make([]string, 0, len(locked))
		for name := range locked {
			names = append(names, string(name))
		}

		sort.Strings(names)

		entries := make([]frontierEntry, 0, len(names))
		for _, n := range names {
			entries = append(entries, frontierEntry{name: pkgid.Name(n), rng: string(locked[pkgid.Name(n)])})
		}

		return entries
	}

	order := make([]string, 0, m.Dependencies.Len()+m.DevDependencies.Len())
	seen := make(map[string]bool)

	for _, n := range m.Dependencies.Keys() {
		if !seen[n] {
			order = append(order, n)
			seen[n] = true
		}
	}

	for _, n := range m.DevDependencies.Keys() {
		if !seen[n] {
			order = append(order, n)
			seen[n] = true
		}
	}

	entries := make([]frontierEntry, 0, len(order))

	for _, n := range order {
		if len(subset) > 0 && !subset[n] {
			continue
		}

		rng, ok := m.Dependencies.Get(n)
		if !ok {
			rng, _ = m.DevDependencies.Get(n)
		}

		entries = append(entries, frontierEntry{name: pkgid.Name(n), rng: rng})
	}

	return entries
}

// walk resolves one frontier entry and recurses into its dependencies,
// returning the concrete version it settled on (empty if resolution
// failed). path is the ordered list of PackageIds on the current DFS
// branch, root first, used only for cycle detection; it is distinct
// from res.Resolution. The caller's slice is never mutated — each level
// appends and passes a new slice header, so sibling recursions don't
// observe each other's push/pop.
func (r *Resolver) walk(ctx context.Context, res *Result, entry frontierEntry, locked LockedVersions, path []pkgid.ID) pkgid.Version {
	version, err := r.resolveVersion(ctx, entry, locked)
	if err != nil {
		log.Warnf("abandoning subtree for %s: %v", entry.name, err)
		res.Failed[entry.name] = err

		return ""
	}

	id := pkgid.ID{Name: entry.name, Version: version}

	if pathIndex := indexOf(path, id); pathIndex != -1 {
		cyc := &depserr.Cycle{Path: idsToStrings(append(append([]pkgid.ID{}, path[pathIndex:]...), id))}
		res.Cycles = append(res.Cycles, cyc)
		log.Warnf("%s", cyc.Error())

		if entry.parent != nil {
			ensureNode(res, id).Parents[*entry.parent] = true
		}

		return version // already on this branch: do not re-expand
	}

	node, firstSeen := res.Resolution[id]
	if !firstSeen {
		node = &Node{Dependencies: map[pkgid.Name]pkgid.Version{}, Parents: map[pkgid.ID]bool{}}
		res.Resolution[id] = node
		res.Order = append(res.Order, id)

		if _, exists := res.TopLevel[entry.name]; !exists {
			res.TopLevel[entry.name] = version
		}
	}

	if entry.parent != nil {
		node.Parents[*entry.parent] = true
	}

	if firstSeen {
		return version // children already expanded when this id was first reached
	}

	mf, err := r.client.FetchMetadata(ctx, entry.name, version)
	if err != nil {
		log.Warnf("abandoning subtree for %s@%s: %v", entry.name, version, err)
		res.Failed[entry.name] = err

		return version
	}

	childPath := append(append([]pkgid.ID{}, path...), id)

	for _, dep := range mf.Dependencies {
		child := id

		childVersion := r.walk(ctx, res, frontierEntry{name: dep.Name, rng: dep.Range, parent: &child}, locked, childPath)
		if childVersion != "" {
			node.Dependencies[dep.Name] = childVersion
		}
	}

	return version
}

func ensureNode(res *Result, id pkgid.ID) *Node {
	n, ok := res.Resolution[id]
	if !ok {
		n = &Node{Dependencies: map[pkgid.Name]pkgid.Version{}, Parents: map[pkgid.ID]bool{}}
		res.Resolution[id] = n
	}

	return n
}

func indexOf(path []pkgid.ID, id pkgid.ID) int {
	for i, p := range path {
		if p == id {
			return i
		}
	}

	return -1
}

func idsToStrings(ids []pkgid.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}

	return out
}

// resolveVersion picks a concrete version for entry: a root entry's
// locked version is reused verbatim if present, otherwise the Version
// Matcher's greatest satisfying version from the registry's published
// list. Only roots consult the lock — matching
// original_source/src/dependency_resolver.py's resolve_dependencies,
// which passes use_locked only into its own top-level resolve_package
// calls and never into the recursive descent for a package's own
// dependencies. Reusing a locked version for non-root entries would
// collapse every nested edge to a name onto the lock's single recorded
// version, losing the distinct-versions-per-name diamond-with-conflict
// case the resolver is supposed to preserve.
func (r *Resolver) resolveVersion(ctx context.Context, entry frontierEntry, locked LockedVersions) (pkgid.Version, error) {
	if entry.parent == nil {
		if v, ok := locked[entry.name]; ok {
			return v, nil
		}
	}

	rng, err := semrange.Parse(entry.rng)
	if err != nil {
		return "", err
	}

	versions, err := r.client.ListVersions(ctx, entry.name)
	if err != nil {
		return "", err
	}

	best, ok := semrange.MaxSatisfying(versions, rng)
	if !ok {
		return "", depserr.ErrVersionNotFound
	}

	return best, nil
}

// PrefetchMetadata concurrently warms the registry client's internal
// caching (e.g. HTTPClient's singleflight-backed packument fetch) for a
// known set of names before a full resolve, adapted from manager.go's
// registry.List fan-out. It starts one goroutine per name; the fan-out
// is not bounded. Resolve does not require this to have been called; it
// is a pure optimization.
func PrefetchMetadata(ctx context.Context, client registry.Client, names []pkgid.Name) {
	var wg sync.WaitGroup

	for _, n := range names {
		wg.Add(1)

		go func(name pkgid.Name) {
			defer wg.Done()

			if _, err := client.ListVersions(ctx, name); err != nil {
				log.Warnf("prefetch failed for %s: %v", name, err)
			}
		}(n)
	}

	wg.Wait()
}
