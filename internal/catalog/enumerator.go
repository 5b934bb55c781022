package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/phetsims/aqua/internal/snapshot"
)

// manifestFile is the file a materialized snapshot directory carries at
// its root, listing every Test to run against it. Per SPEC_FULL.md §1's
// expansion of spec.md's "an external test-list generator" collaborator.
const manifestFile = "tests.json"

// FileEnumerator implements Enumerator by reading a JSON array of
// snapshot.Descriptor from {snapshotDir}/tests.json, the manifest the
// repository build step is expected to have written during materialization.
type FileEnumerator struct{}

// NewFileEnumerator returns a FileEnumerator.
func NewFileEnumerator() *FileEnumerator { return &FileEnumerator{} }

// Enumerate reads and decodes the manifest. repos is accepted for
// interface conformance but unused: the manifest is self-describing.
func (FileEnumerator) Enumerate(snapshotDir string, _ []string) ([]snapshot.Descriptor, error) {
	path := filepath.Join(snapshotDir, manifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading test manifest %s: %w", path, err)
	}
	var descriptors []snapshot.Descriptor
	if err := json.Unmarshal(data, &descriptors); err != nil {
		return nil, fmt.Errorf("decoding test manifest %s: %w", path, err)
	}
	return descriptors, nil
}
