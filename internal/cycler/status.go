package cycler

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Stage names the cycler's current activity, exposed verbatim through
// /aquaserver/snapshot-status per spec.md §4.3.
type Stage string

const (
	StageIdle      Stage = "idle"
	StageChecking  Stage = "checking repositories for staleness"
	StagePulling   Stage = "pulling stale repositories"
	StageCloning   Stage = "cloning missing repositories"
	StageNpmUpdate Stage = "running npm update"
	StageSnapshot  Stage = "materializing snapshot"
	StageEnumerate Stage = "enumerating tests"
	StageRetaining Stage = "retiring old snapshots"
	StageErrored   Stage = "error"
)

// RestoredSummary describes what a ringstore.Store had on disk at
// startup, before the first new snapshot of this run completes. It is
// preserved across Status updates by Cycler.setStatus; see Cycler.Seed.
type RestoredSummary struct {
	Count      int
	NewestName string
	NewestAt   time.Time
}

// Status is the cycler's structured status, supplementing spec.md's
// single human-readable string (see String()) with fields in-process
// callers can read through Cycler.Status(). No HTTP endpoint returns
// these fields; /aquaserver/snapshot-status carries only String().
type Status struct {
	Stage     Stage
	Since     time.Time
	WasStale  bool
	LastError string
	Restored  *RestoredSummary
}

// String renders the single human string spec.md §4.3's
// /aquaserver/snapshot-status response carries, with human-readable
// elapsed times via go-humanize rather than raw durations.
func (s Status) String() string {
	out := string(s.Stage)
	if s.LastError != "" {
		out = string(StageErrored) + ": " + s.LastError
	}
	if !s.Since.IsZero() {
		out += fmt.Sprintf(" (since %s)", humanize.Time(s.Since))
	}
	if s.Restored != nil {
		out += fmt.Sprintf(" [restored %d snapshot(s) from previous run, newest %s %s]",
			s.Restored.Count, s.Restored.NewestName, humanize.Time(s.Restored.NewestAt))
	}
	return out
}

// box is an atomically-swapped holder, matching spec.md §5's "relaxed
// memory ordering acceptable" guidance for snapshotStatus.
type box struct {
	v atomic.Pointer[Status]
}

func newBox() *box {
	b := &box{}
	s := Status{Stage: StageIdle, Since: time.Now()}
	b.v.Store(&s)
	return b
}

func (b *box) set(s Status) { b.v.Store(&s) }

func (b *box) get() Status { return *b.v.Load() }
