// Package catalog implements the per-Snapshot test classification and
// availability predicates of spec.md §4.2.
package catalog

import "github.com/phetsims/aqua/internal/snapshot"

// Enumerator produces the set of Tests to run against a materialized
// snapshot directory. Implemented by the external test-list generator;
// spec.md §6 specifies only its JSON contract.
type Enumerator interface {
	Enumerate(snapshotDir string, repos []string) ([]snapshot.Descriptor, error)
}

// BuildIndex is an auxiliary per-snapshot index from (repo, brand) to
// its build Test, maintained alongside the Test slice so
// IsBrowserAvailable's dependency scan is O(1) per dependency instead of
// O(tests). Grounded on internal/service/cache.go's pattern of keeping
// an index next to the source of truth rather than re-scanning it.
type BuildIndex struct {
	byRepoBrand map[string]map[snapshot.Brand]*snapshot.Test
}

// NewBuildIndex builds a BuildIndex over s's build-type Tests.
func NewBuildIndex(s *snapshot.Snapshot) *BuildIndex {
	idx := &BuildIndex{byRepoBrand: make(map[string]map[snapshot.Brand]*snapshot.Test)}
	for _, test := range s.Tests {
		if test.Type != snapshot.TypeBuild {
			continue
		}
		if len(test.Names) == 0 {
			continue
		}
		repo := test.Names[0]
		if idx.byRepoBrand[repo] == nil {
			idx.byRepoBrand[repo] = make(map[snapshot.Brand]*snapshot.Test)
		}
		idx.byRepoBrand[repo][test.Brand] = test
	}
	return idx
}

// Satisfied reports whether the build dependency (repo, brand) has
// completed successfully in this snapshot.
func (idx *BuildIndex) Satisfied(dep snapshot.BuildDependency) bool {
	byBrand, ok := idx.byRepoBrand[dep.Repo]
	if !ok {
		return false
	}
	build, ok := byBrand[dep.Brand]
	if !ok {
		return false
	}
	return build.IsCompleteSuccess()
}

// IsBrowserAvailable implements spec.md §4.2's availability predicate
// for browser-dispatched tests.
func IsBrowserAvailable(idx *BuildIndex, test *snapshot.Test, es5Only bool) bool {
	if !test.Type.IsBrowserType() {
		return false
	}
	if es5Only && !test.ES5 {
		return false
	}
	for _, dep := range test.BuildDependencies {
		if !idx.Satisfied(dep) {
			return false
		}
	}
	return true
}

// IsLocallyAvailable reports whether test is a lint or build test that
// has not yet completed.
func IsLocallyAvailable(test *snapshot.Test) bool {
	switch test.Type {
	case snapshot.TypeLint, snapshot.TypeBuild:
		return !test.Complete
	default:
		return false
	}
}

// AvailableBrowserTests returns every browser Test in s that currently
// passes IsBrowserAvailable, given a BuildIndex already built for s.
func AvailableBrowserTests(s *snapshot.Snapshot, idx *BuildIndex, es5Only bool) []*snapshot.Test {
	out := make([]*snapshot.Test, 0, len(s.Tests))
	for _, test := range s.Tests {
		if IsBrowserAvailable(idx, test, es5Only) {
			out = append(out, test)
		}
	}
	return out
}
