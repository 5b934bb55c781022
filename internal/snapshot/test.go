package snapshot

import "sync"

// Type identifies the kind of runnable or buildable unit a Test
// represents. Browser types are the ones dispatched to headless
// clients; lint and build are never dispatched by next-test, are marked
// complete when a result for them arrives through test-result, and only
// gate other tests' availability.
type Type string

const (
	TypeSimTest      Type = "sim-test"
	TypeQUnitTest    Type = "qunit-test"
	TypePageloadTest Type = "pageload-test"
	TypeWrapperTest  Type = "wrapper-test"
	TypeLint         Type = "lint"
	TypeBuild        Type = "build"
)

// IsBrowserType reports whether t is dispatched to a headless browser
// client (as opposed to the lint and build types).
func (t Type) IsBrowserType() bool {
	switch t {
	case TypeSimTest, TypeQUnitTest, TypePageloadTest, TypeWrapperTest:
		return true
	default:
		return false
	}
}

// Brand is an optional tag used for build-gated dispatch, e.g.
// distinguishing a PhET sim build from its PhET-iO build.
type Brand string

const (
	BrandPhet   Brand = "phet"
	BrandPhetIO Brand = "phet-io"
)

// BuildDependency is a (repo, brand) pair that must correspond to a
// successfully completed build Test before a dependent browser Test
// becomes dispatchable.
type BuildDependency struct {
	Repo  string `json:"repo"`
	Brand Brand  `json:"brand"`
}

// Test is a single runnable unit identified by a dotted-path name and a
// type. It belongs to exactly one Snapshot and is destroyed with it;
// Snapshot is carried as an identifier (see ownerName) rather than a
// direct back-reference, per spec.md §9's systems-language guidance.
type Test struct {
	Names []string `json:"names"`
	Type  Type     `json:"type"`
	Brand Brand    `json:"brand,omitempty"`

	// ES5 reports whether this test may run on legacy (ES5-only) clients.
	ES5 bool `json:"es5"`

	BuildDependencies []BuildDependency `json:"buildDependencies,omitempty"`

	// mu guards Count, Complete and Success. All Tests belonging to the
	// same Snapshot share their owning Snapshot's mutex rather than one
	// per Test: the dispatcher's "pick lowest count, then increment"
	// step already has to look across every sibling Test, so a single
	// per-Snapshot lock avoids extra lock ordering without adding
	// contention beyond what that step already needs.
	mu *sync.RWMutex

	// Count is the number of times this test has been handed to a
	// client since snapshot creation (browser-type tests only).
	Count int `json:"count"`

	// Complete/Success are used for lint and build types.
	Complete bool `json:"complete"`
	Success  bool `json:"success"`

	// ownerName is the name of the owning Snapshot.
	ownerName string
}

// Path returns the dotted-path identity of this test, e.g. "repo.suite.case".
func (t *Test) Path() string {
	out := t.Names[0]
	for _, n := range t.Names[1:] {
		out += "." + n
	}
	return out
}

// SnapshotName returns the name of the owning Snapshot.
func (t *Test) SnapshotName() string { return t.ownerName }

// GetCount returns the current dispatch count under the owning
// Snapshot's lock.
func (t *Test) GetCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Count
}

// IncrementCount atomically increments Count and returns the new value.
func (t *Test) IncrementCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Count++
	return t.Count
}

// MarkComplete sets Complete/Success under the owning Snapshot's lock.
func (t *Test) MarkComplete(success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Complete = true
	t.Success = success
}

// IsCompleteSuccess reports Complete && Success under the lock.
func (t *Test) IsCompleteSuccess() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Complete && t.Success
}
