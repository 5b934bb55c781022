// Package snapshot implements the immutable Snapshot/Test data model and
// the retention ring described by spec.md §3 and §4.1.
package snapshot

import (
	"fmt"
	"sync"
	"time"
)

// Descriptor is the shape an external test enumerator produces per
// spec.md §6: given the repository layout, it returns a JSON array of
// these for a snapshot.
type Descriptor struct {
	Names             []string          `json:"names"`
	Type              Type              `json:"type"`
	Brand             Brand             `json:"brand,omitempty"`
	BuildDependencies []BuildDependency `json:"buildDependencies,omitempty"`
	ES5               bool              `json:"es5"`
}

// Snapshot is an immutable, timestamped, on-disk copy of all active
// repositories together with the list of Tests enumerated against that
// copy. Once created, Shas, Repos and Tests never change; Exists
// transitions from true to false exactly once, when remove() completes.
type Snapshot struct {
	Timestamp int64             // monotonically non-decreasing, ms since epoch
	Name      string            // "snapshot-{timestamp}"
	Directory string            // absolute path of the on-disk materialization, empty once removed
	Shas      map[string]string // repo name -> resolved revision
	Repos     []string          // ordered set of repo names included
	Tests     []*Test           // ordered sequence, owned by this Snapshot

	mu     sync.RWMutex
	exists bool
}

// New builds a Snapshot from repository SHAs and enumerator descriptors.
// The returned Snapshot is fully formed and immutable except for its
// Exists flag, its Directory (cleared on removal) and its Tests'
// Count/Complete/Success fields.
func New(timestamp int64, directory string, repos []string, shas map[string]string, descriptors []Descriptor) *Snapshot {
	name := fmt.Sprintf("snapshot-%d", timestamp)
	s := &Snapshot{
		Timestamp: timestamp,
		Name:      name,
		Directory: directory,
		Shas:      shas,
		Repos:     repos,
		exists:    true,
	}
	s.Tests = make([]*Test, 0, len(descriptors))
	for _, d := range descriptors {
		s.Tests = append(s.Tests, &Test{
			Names:             d.Names,
			Type:              d.Type,
			Brand:             d.Brand,
			ES5:               d.ES5,
			BuildDependencies: d.BuildDependencies,
			mu:                &s.mu,
			ownerName:         name,
		})
	}
	return s
}

// Exists reports whether the on-disk directory still exists. It flips to
// false exactly once, when remove completes.
func (s *Snapshot) Exists() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exists
}

// CreatedAt returns the snapshot's creation instant.
func (s *Snapshot) CreatedAt() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// Age returns how long ago the snapshot was created.
func (s *Snapshot) Age() time.Duration {
	return time.Since(s.CreatedAt())
}

// markRemoved flips Exists to false and clears Directory. Callers must
// have already deleted the on-disk directory (see remove in ring.go,
// which calls Remover.RemoveDirectory first).
func (s *Snapshot) markRemoved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exists = false
	s.Directory = ""
}
