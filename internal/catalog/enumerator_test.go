package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileEnumeratorReadsManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := `[
		{"names": ["repo-a", "suite", "case"], "type": "sim-test", "es5": true},
		{"names": ["repo-a"], "type": "build", "brand": "phet"}
	]`
	if err := os.WriteFile(filepath.Join(dir, "tests.json"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}

	descriptors, err := NewFileEnumerator().Enumerate(dir, []string{"repo-a"})
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(descriptors) != 2 {
		t.Fatalf("want 2 descriptors, got %d", len(descriptors))
	}
	if descriptors[0].Type != "sim-test" || !descriptors[0].ES5 {
		t.Fatalf("unexpected first descriptor: %+v", descriptors[0])
	}
}

func TestFileEnumeratorMissingManifest(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewFileEnumerator().Enumerate(dir, nil); err == nil {
		t.Fatalf("want error for missing manifest")
	}
}
