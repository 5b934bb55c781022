package cycler

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/phetsims/aqua/internal/results"
	"github.com/phetsims/aqua/internal/ringstore"
	"github.com/phetsims/aqua/internal/snapshot"
)

// fakeChecker is a scripted RepoChecker for testing the cycler's
// stability-gating algorithm without touching git or npm.
type fakeChecker struct {
	repos       []string
	stale       map[string]bool
	shas        map[string]string
	pullCalls   int
	removeCalls int
}

func (f *fakeChecker) ReposToCheck() []string { return f.repos }
func (f *fakeChecker) IsStale(_ context.Context, repo string) (bool, error) {
	return f.stale[repo], nil
}
func (f *fakeChecker) Pull(_ context.Context, repo string) error {
	f.pullCalls++
	f.stale[repo] = false
	return nil
}
func (f *fakeChecker) CloneMissing(context.Context) ([]string, error)         { return nil, nil }
func (f *fakeChecker) HasPackageManifest(string) bool                        { return false }
func (f *fakeChecker) NpmUpdate(context.Context, string) error               { return nil }
func (f *fakeChecker) HeadSHA(_ context.Context, repo string) (string, error) { return f.shas[repo], nil }
func (f *fakeChecker) RepoDir(repo string) string                            { return "/repos/" + repo }
func (f *fakeChecker) RemoveDirectory(string) error                          { f.removeCalls++; return nil }

type fakeEnumerator struct{ descriptors []snapshot.Descriptor }

func (f *fakeEnumerator) Enumerate(string, []string) ([]snapshot.Descriptor, error) {
	return f.descriptors, nil
}

func newTestCycler(checker *fakeChecker, enumerator *fakeEnumerator) (*Cycler, *snapshot.Ring, *results.Tree) {
	fs := afero.NewMemMapFs()
	for _, repo := range checker.repos {
		_ = afero.WriteFile(fs, checker.RepoDir(repo)+"/README.md", []byte("x"), 0o644)
	}
	ring := snapshot.NewRing()
	tree := results.NewTree()
	c := New(checker, enumerator, ring, tree, "/ct-snapshots", zerolog.Nop(), WithFilesystem(fs))
	return c, ring, tree
}

// TestStabilityGating covers spec.md §8 property 2: a stale iteration
// never produces a snapshot, and the very next stable iteration does.
func TestStabilityGating(t *testing.T) {
	checker := &fakeChecker{
		repos: []string{"repo-a"},
		stale: map[string]bool{"repo-a": true},
		shas:  map[string]string{"repo-a": "aaa"},
	}
	enumerator := &fakeEnumerator{descriptors: []snapshot.Descriptor{
		{Names: []string{"repo-a", "t"}, Type: snapshot.TypeSimTest, ES5: true},
	}}
	c, ring, _ := newTestCycler(checker, enumerator)

	ctx := context.Background()
	if err := c.iterate(ctx); err != nil {
		t.Fatalf("iterate (stale): %v", err)
	}
	if ring.Len() != 0 {
		t.Fatalf("want no snapshot while stale, got ring length %d", ring.Len())
	}
	if checker.pullCalls != 1 {
		t.Fatalf("want 1 pull call, got %d", checker.pullCalls)
	}

	// repo is no longer stale (Pull cleared it); this iteration observes
	// an empty stale set for the first time and must create a snapshot.
	if err := c.iterate(ctx); err != nil {
		t.Fatalf("iterate (stable): %v", err)
	}
	if ring.Len() != 1 {
		t.Fatalf("want 1 snapshot after reaching stability, got %d", ring.Len())
	}

	// a further stable iteration with wasStale already false must not
	// create another snapshot.
	if err := c.iterate(ctx); err != nil {
		t.Fatalf("iterate (still stable): %v", err)
	}
	if ring.Len() != 1 {
		t.Fatalf("want ring length unchanged at 1, got %d", ring.Len())
	}
}

// TestSeedSurvivesStatusUpdates covers SPEC_FULL.md's warm-restart cache
// section: the restored summary must keep showing up in StatusString()
// across ordinary iterate() status transitions, not just immediately
// after Seed is called.
func TestSeedSurvivesStatusUpdates(t *testing.T) {
	checker := &fakeChecker{
		repos: []string{"repo-a"},
		stale: map[string]bool{},
		shas:  map[string]string{"repo-a": "aaa"},
	}
	enumerator := &fakeEnumerator{}
	c, _, _ := newTestCycler(checker, enumerator)

	c.Seed([]ringstore.Entry{
		{Name: "snapshot-100", Timestamp: 100},
		{Name: "snapshot-50", Timestamp: 50},
	})
	if !strings.Contains(c.StatusString(), "restored 2 snapshot(s)") {
		t.Fatalf("want restored summary immediately after Seed, got %q", c.StatusString())
	}

	if err := c.iterate(context.Background()); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if !strings.Contains(c.StatusString(), "restored 2 snapshot(s)") {
		t.Fatalf("want restored summary to survive a status transition, got %q", c.StatusString())
	}
}

func TestCreateSnapshotRecordsShas(t *testing.T) {
	checker := &fakeChecker{
		repos: []string{"repo-a", "repo-b"},
		stale: map[string]bool{},
		shas:  map[string]string{"repo-a": "aaa", "repo-b": "bbb"},
	}
	enumerator := &fakeEnumerator{}
	c, _, _ := newTestCycler(checker, enumerator)

	snap, err := c.createSnapshot(context.Background(), checker.repos)
	if err != nil {
		t.Fatalf("createSnapshot: %v", err)
	}
	if snap.Shas["repo-a"] != "aaa" || snap.Shas["repo-b"] != "bbb" {
		t.Fatalf("unexpected shas: %+v", snap.Shas)
	}
}
