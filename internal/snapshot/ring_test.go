package snapshot

import (
	"testing"
	"time"
)

type noopRemover struct{ calls int }

func (n *noopRemover) RemoveDirectory(string) error { n.calls++; return nil }

type noopPurger struct{ purged []string }

func (p *noopPurger) PurgeSnapshot(name string) { p.purged = append(p.purged, name) }

func mkSnapshot(ts int64) *Snapshot {
	return New(ts, "/tmp/ct-snapshots/x", []string{"repo-a"}, map[string]string{"repo-a": "deadbeef"}, []Descriptor{
		{Names: []string{"repo-a", "suite", "case"}, Type: TypeSimTest, ES5: true},
	})
}

// TestMonotoneTimestamps covers spec.md §8 property 1.
func TestMonotoneTimestamps(t *testing.T) {
	r := NewRing()
	s1 := mkSnapshot(1000)
	s2 := mkSnapshot(2000)
	r.Prepend(s1)
	r.Prepend(s2)

	got := r.Snapshots()
	if len(got) != 2 {
		t.Fatalf("want 2 snapshots, got %d", len(got))
	}
	if got[0].Timestamp != s2.Timestamp {
		t.Fatalf("want newest first, got %+v", got)
	}
	if s1.Timestamp > s2.Timestamp {
		t.Fatalf("s1 inserted before s2 must have timestamp <= s2's")
	}
}

// TestRetentionBound covers spec.md §8 property 6 / E6.
func TestRetentionBound(t *testing.T) {
	r := NewRing()
	base := time.Now().UnixMilli()
	for i := 0; i < 72; i++ {
		r.Prepend(mkSnapshot(base + int64(i)))
	}
	rm := &noopRemover{}
	purger := &noopPurger{}

	r.EnforceActiveWindow(rm)
	r.EnforceRetention(purger)

	if got := r.Len(); got != MaxRetained {
		t.Fatalf("want ring length %d after retention, got %d", MaxRetained, got)
	}
	if len(purger.purged) != 2 {
		t.Fatalf("want 2 purged snapshots, got %d: %v", len(purger.purged), purger.purged)
	}
}

// TestActiveWindowRetiresBeyondThree checks that only the first
// NumActiveSnapshots snapshots keep an on-disk directory.
func TestActiveWindowRetiresBeyondThree(t *testing.T) {
	r := NewRing()
	for i := 0; i < 6; i++ {
		r.Prepend(mkSnapshot(int64(i)))
	}
	rm := &noopRemover{}
	r.EnforceActiveWindow(rm)

	items := r.Snapshots()
	for i, s := range items {
		if i < NumActiveSnapshots {
			if !s.Exists() {
				t.Fatalf("snapshot at index %d should still exist", i)
			}
		} else {
			if s.Exists() {
				t.Fatalf("snapshot at index %d should have been retired", i)
			}
		}
	}
	if rm.calls != len(items)-NumActiveSnapshots {
		t.Fatalf("want %d RemoveDirectory calls, got %d", len(items)-NumActiveSnapshots, rm.calls)
	}
}

// TestOldRemovedTailIsPopped exercises the §9 retention predicate with an
// already-removed, aged-out tail even when the ring is far under
// MaxRetained.
func TestOldRemovedTailIsPopped(t *testing.T) {
	r := NewRing()
	old := mkSnapshot(time.Now().Add(-3 * 24 * time.Hour).UnixMilli())
	_ = old.remove(&noopRemover{})
	r.Prepend(old)
	r.Prepend(mkSnapshot(time.Now().UnixMilli()))

	purger := &noopPurger{}
	r.EnforceRetention(purger)

	if r.Len() != 1 {
		t.Fatalf("want 1 snapshot remaining, got %d", r.Len())
	}
	if len(purger.purged) != 1 || purger.purged[0] != old.Name {
		t.Fatalf("want old snapshot purged, got %v", purger.purged)
	}
}

func TestTestCountIncrement(t *testing.T) {
	s := mkSnapshot(1)
	test := s.Tests[0]
	if test.GetCount() != 0 {
		t.Fatalf("want initial count 0, got %d", test.GetCount())
	}
	if got := test.IncrementCount(); got != 1 {
		t.Fatalf("want 1, got %d", got)
	}
	if got := test.IncrementCount(); got != 2 {
		t.Fatalf("want 2, got %d", got)
	}
}
