package validator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePackage(t *testing.T, dir, name, version string) {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	manifest := `{"name":"` + name + `","version":"` + version + `"}`

	for file, contents := range map[string]string{
		"package.json": manifest,
		"README.md":    "readme",
		"LICENSE":      "license",
	} {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(contents), 0o644); err != nil {
			t.Fatalf("writing %s: %v", file, err)
		}
	}
}

func TestValidate_Pass(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, "left-pad", "1.0.0")

	result := Validate(dir, nil)
	if !result.Pass {
		t.Fatalf("expected pass, got issues: %v", result.Issues)
	}
}

func TestValidate_MissingRequiredFile(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(dir, 0o755)
	os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"name":"a","version":"1.0.0"}`), 0o644)

	result := Validate(dir, nil)
	if result.Pass {
		t.Fatalf("expected failure for missing README/LICENSE")
	}
}

func TestValidate_DependencyMissing(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, "a", "1.0.0")

	result := Validate(dir, []string{"b"})
	if result.Pass {
		t.Fatalf("expected failure for missing dependency b")
	}

	found := false

	for _, issue := range result.Issues {
		if strings.Contains(issue, "dependency missing") {
			found = true
		}
	}

	if !found {
		t.Fatalf("expected a dependency missing issue, got: %v", result.Issues)
	}
}

func TestValidate_DependencyPresent(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, "a", "1.0.0")
	writePackage(t, filepath.Join(dir, "node_modules", "b"), "b", "2.0.0")

	result := Validate(dir, []string{"b"})
	if !result.Pass {
		t.Fatalf("expected pass, got issues: %v", result.Issues)
	}
}

func TestValidateExpecting_IdentityMismatch(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, "a", "1.0.0")

	result := ValidateExpecting(dir, "a", "2.0.0", nil, "")
	if result.Pass {
		t.Fatalf("expected failure for version mismatch")
	}
}
