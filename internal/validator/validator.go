// Package validator checks an installed package's on-disk layout
// against its declared identity and dependency set, without mutating
// the filesystem. Grounded on the original package_validator.py's
// required-file and dependency-presence checks, carried into Go the way
// internal/packagemanager/input_validation.go structures its checks
// (a fixed set of rules, each contributing a named violation) scaled
// down to this project's structural — not security — validation need.
package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// requiredFiles are the top-level files every installed package must
// carry, independent of manifest filename conventions: a manifest, a
// readme, a license.
var requiredFiles = []string{"package.json", "README.md", "LICENSE"}

// Result is one package's validation outcome.
type Result struct {
	Pass   bool
	Issues []string
	Digest string // content digest of the package tree; informational unless checked against an expected value
}

// manifestShape is the minimal set of manifest fields validated.
type manifestShape struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Validate checks packagePath's manifest and required files and
// confirms every name in expectedDeps exists under
// packagePath/node_modules/<name> with its own parseable manifest. It
// does not check the manifest's name or version; ValidateExpecting does.
func Validate(packagePath string, expectedDeps []string) Result {
	return ValidateExpecting(packagePath, "", "", expectedDeps, "")
}

// ValidateExpecting is Validate with explicit expected identity and
// integrity digest; empty strings skip that check.
func ValidateExpecting(packagePath, expectedName, expectedVersion string, expectedDeps []string, expectedDigest string) Result {
	var issues []string

	manifestPath := filepath.Join(packagePath, "package.json")

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		issues = append(issues, fmt.Sprintf("structure violation: missing manifest at %s", manifestPath))
	} else {
		var shape manifestShape
		if err := json.Unmarshal(data, &shape); err != nil {
			issues = append(issues, fmt.Sprintf("structure violation: manifest at %s does not parse: %v", manifestPath, err))
		} else {
			if expectedName != "" && shape.Name != expectedName {
				issues = append(issues, fmt.Sprintf("structure violation: manifest name %q != expected %q", shape.Name, expectedName))
			}

			if expectedVersion != "" && shape.Version != expectedVersion {
				issues = append(issues, fmt.Sprintf("structure violation: manifest version %q != expected %q", shape.Version, expectedVersion))
			}
		}
	}

	for _, f := range requiredFiles {
		if _, err := os.Stat(filepath.Join(packagePath, f)); err != nil {
			issues = append(issues, fmt.Sprintf("structure violation: missing required file %s", f))
		}
	}

	digest, err := digestTree(packagePath)
	if err != nil {
		issues = append(issues, fmt.Sprintf("structure violation: could not hash package tree: %v", err))
	} else if expectedDigest != "" && digest != expectedDigest {
		issues = append(issues, fmt.Sprintf("integrity mismatch: expected %s, got %s", expectedDigest, digest))
	}

	for _, dep := range expectedDeps {
		depManifest := filepath.Join(packagePath, "node_modules", dep, "package.json")

		depData, err := os.ReadFile(depManifest)
		if err != nil {
			issues = append(issues, fmt.Sprintf("dependency missing: %s not installed under %s", dep, packagePath))

			continue
		}

		var depShape manifestShape
		if err := json.Unmarshal(depData, &depShape); err != nil {
			issues = append(issues, fmt.Sprintf("dependency missing: manifest of %s under %s does not parse: %v", dep, packagePath, err))
		}
	}

	return Result{Pass: len(issues) == 0, Issues: issues, Digest: digest}
}

// digestTree hashes every non-directory entry under root in sorted
// relative path order, feeding each file's relative path followed by
// its bytes into one SHA-256.
func digestTree(root string) (string, error) {
	var paths []string

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() {
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return relErr
			}

			paths = append(paths, rel)
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	sort.Strings(paths)

	h := sha256.New()

	for _, rel := range paths {
		data, err := os.ReadFile(filepath.Join(root, rel))
		if err != nil {
			return "", err
		}

		h.Write([]byte(rel))
		h.Write(data)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
