// Package installer materializes a resolver.Result onto disk: top-level
// packages at {root}/{name}, version-conflicted packages nested under
// their parent's node_modules, fetched from cache when possible.
// Grounded on manager.go's errgroup.WithContext parallel Find+Fetch
// fan-out and its mutex-serialized bookkeeping, applied to this
// project's placement rule rather than the teacher's flat
// content-addressed store.
package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jsdeps/jsdeps/internal/cache"
	"github.com/jsdeps/jsdeps/internal/obslog"
	"github.com/jsdeps/jsdeps/internal/pkgid"
	"github.com/jsdeps/jsdeps/internal/registry"
	"github.com/jsdeps/jsdeps/internal/resolver"
	"github.com/jsdeps/jsdeps/internal/validator"
)

var log = obslog.New("installer")

// Report summarizes one Install run: every attempted placement and
// whatever validation or fetch failures occurred along the way.
// Failures are collected, not fatal — a single package failing to
// install does not abort the remaining installations.
type Report struct {
	Installed []string // destination paths written successfully
	Failures  map[pkgid.ID]error
	Validated map[string]validator.Result
}

// Installer writes a resolved dependency tree to disk.
type Installer struct {
	client      registry.Client
	cache       *cache.Cache
	concurrency int

	mu           sync.Mutex
	installedSet map[string]bool // keyed by destination path
}

// New returns an Installer. concurrency bounds the number of packages
// fetched in parallel; values below 1 are treated as 1.
func New(client registry.Client, c *cache.Cache, concurrency int) *Installer {
	if concurrency < 1 {
		concurrency = 1
	}

	return &Installer{client: client, cache: c, concurrency: concurrency, installedSet: map[string]bool{}}
}

// Install places every PackageId in res.Order under root, following the
// placement rule: a package whose name's TopLevelSelection equals this
// id's version lands at {root}/{name}; otherwise it's nested once under
// each of its parents at {parent}/node_modules/{name}.
func (in *Installer) Install(ctx context.Context, res *resolver.Result, root string) *Report {
	report := &Report{Failures: map[pkgid.ID]error{}, Validated: map[string]validator.Result{}}

	var reportMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.concurrency)

	for _, id := range res.Order {
		id := id
		node := res.Resolution[id]

		g.Go(func() error {
			destinations := in.destinationsFor(id, node, res.TopLevel, root)

			for _, dest := range destinations {
				if err := in.installOne(gctx, id, dest); err != nil {
					log.Errorf("installing %s at %s: %v", id, dest, err)

					reportMu.Lock()
					report.Failures[id] = err
					reportMu.Unlock()

					continue // a placement failure doesn't block sibling placements
				}

				reportMu.Lock()
				report.Installed = append(report.Installed, dest)
				reportMu.Unlock()

				result := validator.Validate(dest, expectedDependencyNames(node))
				if !result.Pass {
					log.Warnf("validation failed for %s: %v", dest, result.Issues)
				}

				reportMu.Lock()
				report.Validated[dest] = result
				reportMu.Unlock()
			}

			return nil // per-package failures are contained, never aborting the group
		})
	}

	_ = g.Wait() // errors are already captured per-package in report.Failures

	sort.Strings(report.Installed)

	return report
}

// destinationsFor computes every path id should be materialized at.
func (in *Installer) destinationsFor(id pkgid.ID, node *resolver.Node, topLevel map[pkgid.Name]pkgid.Version, root string) []string {
	if topLevel[id.Name] == id.Version {
		return []string{filepath.Join(root, string(id.Name))}
	}

	parents := make([]pkgid.ID, 0, len(node.Parents))
	for p := range node.Parents {
		parents = append(parents, p)
	}

	sort.Slice(parents, func(i, j int) bool { return parents[i].String() < parents[j].String() })

	dests := make([]string, 0, len(parents))

	for _, parent := range parents {
		dests = append(dests, filepath.Join(root, string(parent.Name), "node_modules", string(id.Name)))
	}

	return dests
}

func (in *Installer) installOne(ctx context.Context, id pkgid.ID, dest string) error {
	in.mu.Lock()

	if in.installedSet[dest] {
		in.mu.Unlock()

		return nil
	}

	in.installedSet[dest] = true
	in.mu.Unlock()

	if in.cache.Has(id) {
		return in.cache.Get(id, dest)
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}

	if err := in.client.DownloadTarball(ctx, id.Name, id.Version, dest); err != nil {
		return err
	}

	if err := in.cache.Put(id, dest); err != nil {
		log.Warnf("caching %s failed: %v", id, err)
	}

	return nil
}

func expectedDependencyNames(node *resolver.Node) []string {
	if node == nil {
		return nil
	}

	names := make([]string, 0, len(node.Dependencies))
	for n := range node.Dependencies {
		names = append(names, string(n))
	}

	sort.Strings(names)

	return names
}
