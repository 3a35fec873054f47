// Package semrange implements the Version Matcher: parsing version-range
// expressions, testing whether a version satisfies one, and picking the
// greatest satisfying version from a candidate set. It wraps
// github.com/Masterminds/semver/v3 the way the teacher's resolver and
// lock-file code does (see internal/packagemanager/resolver.go's
// parseConstraint/mustSemver), adding the "latest" sentinel and a
// plain-string fallback for non-semver tokens that the upstream library
// has no notion of.
package semrange

import (
	"fmt"
	"sort"
	"strings"

	semver "github.com/Masterminds/semver/v3"

	"github.com/jsdeps/jsdeps/internal/depserr"
	"github.com/jsdeps/jsdeps/internal/pkgid"
)

// Range is a parsed version-range expression. The original text is kept
// for round-tripping to the manifest; matching always goes through the
// normalized form.
type Range struct {
	raw         string
	latest      bool
	constraints *semver.Constraints
	exact       bool // fallback: satisfied only by an identical string
}

// String returns the original range text, for writing back to a manifest.
func (r Range) String() string { return r.raw }

// Parse parses a range expression. It fails with depserr.ErrInvalidRange
// for an empty string or a string that looks like a malformed comparator
// expression; any other non-semver token is accepted as an exact-match
// fallback range (e.g. a dist-tag, branch name, or commit-ish).
func Parse(expr string) (Range, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return Range{}, fmt.Errorf("%w: empty range", depserr.ErrInvalidRange)
	}

	if trimmed == "latest" || trimmed == "*" {
		return Range{raw: trimmed, latest: true}, nil
	}

	if c, err := semver.NewConstraint(trimmed); err == nil {
		return Range{raw: trimmed, constraints: c}, nil
	}

	if looksLikeComparatorExpr(trimmed) {
		return Range{}, fmt.Errorf("%w: %q", depserr.ErrInvalidRange, expr)
	}

	return Range{raw: trimmed, exact: true}, nil
}

func looksLikeComparatorExpr(s string) bool {
	if strings.ContainsAny(s, "<>=^~") {
		return true
	}

	return strings.Contains(s, "||") || strings.Contains(s, ",")
}

// Satisfies reports whether version satisfies range. The "latest"
// sentinel is satisfied by every version. A version string that is not
// valid semver falls back to exact textual equality against the range.
func Satisfies(version pkgid.Version, r Range) bool {
	if r.latest {
		return true
	}

	if r.constraints != nil {
		sv, err := semver.NewVersion(string(version))
		if err != nil {
			return string(version) == r.raw
		}

		return r.constraints.Check(sv)
	}

	return string(version) == r.raw
}

// MaxSatisfying returns the greatest version in versions that satisfies
// r, under semver ordering (major, minor, patch, then pre-release). Pairs
// where either side fails to parse as semver fall back to descending
// lexicographic order, per spec.
func MaxSatisfying(versions []pkgid.Version, r Range) (pkgid.Version, bool) {
	var candidates []pkgid.Version

	for _, v := range versions {
		if Satisfies(v, r) {
			candidates = append(candidates, v)
		}
	}

	if len(candidates) == 0 {
		return "", false
	}

	sort.Slice(candidates, func(i, j int) bool {
		return greaterVersion(candidates[i], candidates[j])
	})

	return candidates[0], true
}

// SortAscending sorts versions in place, ascending, using the same
// semver-or-lexicographic ordering as MaxSatisfying.
func SortAscending(versions []pkgid.Version) {
	sort.Slice(versions, func(i, j int) bool {
		return greaterVersion(versions[j], versions[i])
	})
}

// greaterVersion reports whether a orders ahead of b: by semver if both
// parse, else lexicographically descending.
func greaterVersion(a, b pkgid.Version) bool {
	av, aErr := semver.NewVersion(string(a))
	bv, bErr := semver.NewVersion(string(b))

	if aErr == nil && bErr == nil {
		return av.GreaterThan(bv)
	}

	return string(a) > string(b)
}
