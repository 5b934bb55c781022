package snapshot

import (
	"sync"
	"time"
)

const (
	// MaxRetained bounds the ring's total length (spec.md §3).
	MaxRetained = 70
	// MaxRemovedAge bounds how long an already-removed (no on-disk
	// directory) snapshot may linger at the tail before being popped.
	MaxRemovedAge = 2 * 24 * time.Hour
	// NumActiveSnapshots is how many of the newest snapshots keep their
	// on-disk directory materialized.
	NumActiveSnapshots = 3
)

// Remover removes a Snapshot's on-disk directory. Implemented by
// internal/reposvc; injected so Ring stays testable without touching a
// filesystem.
type Remover interface {
	RemoveDirectory(dir string) error
}

// Purger removes every ResultRecord belonging to a retired Snapshot.
// Implemented by internal/results.Tree.
type Purger interface {
	PurgeSnapshot(snapshotName string)
}

// Ring is the ordered sequence of Snapshots, newest first, described by
// spec.md §3. All mutation happens from the single cycler goroutine;
// reads may happen concurrently from HTTP handlers, so access is guarded
// by an RWMutex and readers are handed a copy of the slice header so
// they never observe a torn append/pop.
type Ring struct {
	mu    sync.RWMutex
	items []*Snapshot
}

// NewRing returns an empty Ring.
func NewRing() *Ring {
	return &Ring{}
}

// Prepend pushes s onto the front of the ring (newest first).
func (r *Ring) Prepend(s *Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append([]*Snapshot{s}, r.items...)
}

// Snapshots returns a stable, independently-iterable copy of the current
// ring contents. Readers may observe any valid prefix/suffix
// configuration, never a torn one, because the copy happens under the
// read lock.
func (r *Ring) Snapshots() []*Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Snapshot, len(r.items))
	copy(out, r.items)
	return out
}

// Len returns the current ring length.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Newest returns the newest snapshot, or nil if the ring is empty.
func (r *Ring) Newest() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.items) == 0 {
		return nil
	}
	return r.items[0]
}

// TwoNewest returns the newest and second-newest snapshots. The second
// return value is nil if there is no second snapshot.
func (r *Ring) TwoNewest() (newest, second *Snapshot) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.items) == 0 {
		return nil, nil
	}
	if len(r.items) == 1 {
		return r.items[0], nil
	}
	return r.items[0], r.items[1]
}

// ByName looks up a Snapshot by its Name.
func (r *Ring) ByName(name string) *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.items {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// EnforceActiveWindow calls remove on every snapshot beyond index
// NumActiveSnapshots-1 that still has an on-disk directory. spec.md
// §4.1 step 5 only ever needs to retire the one snapshot that just fell
// out of the active window, but this is safe to call unconditionally
// after every Prepend.
func (r *Ring) EnforceActiveWindow(rm Remover) {
	r.mu.RLock()
	victims := make([]*Snapshot, 0, 1)
	for i := NumActiveSnapshots; i < len(r.items); i++ {
		if r.items[i].Exists() {
			victims = append(victims, r.items[i])
		}
	}
	r.mu.RUnlock()

	for _, s := range victims {
		_ = s.remove(rm)
	}
}

// remove deletes s's on-disk directory and flips Exists to false. The
// Snapshot record itself remains in the ring for historical reporting.
func (s *Snapshot) remove(rm Remover) error {
	s.mu.RLock()
	dir := s.Directory
	already := !s.exists
	s.mu.RUnlock()
	if already {
		return nil
	}
	if dir != "" {
		if err := rm.RemoveDirectory(dir); err != nil {
			return err
		}
	}
	s.markRemoved()
	return nil
}

// EnforceRetention pops the tail of the ring while the retention
// predicate from spec.md §4.1/§9 holds, purging each popped snapshot's
// results. The OR-join between "too many retained" and "tail is old and
// already removed" is preserved literally, per spec.md §9's explicit
// instruction not to silently resolve the ambiguity by picking AND.
func (r *Ring) EnforceRetention(purger Purger) {
	for {
		r.mu.RLock()
		n := len(r.items)
		if n == 0 {
			r.mu.RUnlock()
			return
		}
		tail := r.items[n-1]
		r.mu.RUnlock()

		tooMany := n > MaxRetained
		tailStale := tail.Age() > MaxRemovedAge && !tail.Exists()
		if !tooMany && !tailStale {
			return
		}

		r.mu.Lock()
		if len(r.items) == 0 || r.items[len(r.items)-1] != tail {
			// ring changed concurrently; re-evaluate from the top.
			r.mu.Unlock()
			continue
		}
		r.items = r.items[:len(r.items)-1]
		r.mu.Unlock()

		if purger != nil {
			purger.PurgeSnapshot(tail.Name)
		}
	}
}
