package results

import "testing"

func TestInsertAndLookup(t *testing.T) {
	tree := NewTree()
	tree.Insert([]string{"foo", "bar"}, Record{Passed: true, SnapshotName: "snapshot-1700000000000", Message: "ok"})

	root := tree.Snapshot()
	foo, ok := root.Children["foo"]
	if !ok {
		t.Fatal("want child 'foo'")
	}
	bar, ok := foo.Children["bar"]
	if !ok {
		t.Fatal("want child 'bar'")
	}
	if len(bar.Results) != 1 || !bar.Results[0].Passed || bar.Results[0].Message != "ok" {
		t.Fatalf("unexpected results at foo.bar: %+v", bar.Results)
	}
}

// TestPurgeSnapshot covers spec.md §8 property 7.
func TestPurgeSnapshot(t *testing.T) {
	tree := NewTree()
	tree.Insert([]string{"a", "b"}, Record{SnapshotName: "snapshot-1"})
	tree.Insert([]string{"a", "c"}, Record{SnapshotName: "snapshot-1"})
	tree.Insert([]string{"a", "c"}, Record{SnapshotName: "snapshot-2"})

	tree.PurgeSnapshot("snapshot-1")

	if n := tree.CountForSnapshot("snapshot-1"); n != 0 {
		t.Fatalf("want 0 records left for snapshot-1, got %d", n)
	}
	if n := tree.CountForSnapshot("snapshot-2"); n != 1 {
		t.Fatalf("want 1 record left for snapshot-2, got %d", n)
	}

	// empty nodes are allowed to persist.
	root := tree.Snapshot()
	if _, ok := root.Children["a"].Children["b"]; !ok {
		t.Fatal("empty node a.b should still exist after purge")
	}
}

func TestEmptyTreeHasEmptyRoot(t *testing.T) {
	tree := NewTree()
	root := tree.Snapshot()
	if len(root.Children) != 0 || len(root.Results) != 0 {
		t.Fatalf("want empty root, got %+v", root)
	}
}
