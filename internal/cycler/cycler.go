// Package cycler implements the snapshot cycler background loop of
// spec.md §4.1: detect repository stability, materialize a Snapshot,
// retire old ones.
//
// Grounded on the teacher's cmd/root.go run()/runCollector() goroutine
// shape (context-cancelled loop, zerolog event logging) and
// internal/service/cache.go's ticker-driven janitor.
package cycler

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/phetsims/aqua/internal/catalog"
	"github.com/phetsims/aqua/internal/reposvc"
	"github.com/phetsims/aqua/internal/results"
	"github.com/phetsims/aqua/internal/ringstore"
	"github.com/phetsims/aqua/internal/snapshot"
)

// DefaultPollInterval is how often the cycler runs one iteration of
// spec.md §4.1's algorithm when not overridden by config.
const DefaultPollInterval = 20 * time.Second

// RepoChecker is everything the cycler needs from the external git/npm
// collaborators of spec.md §1. *reposvc.Checker implements it against
// real git/npm binaries; tests substitute a fake.
type RepoChecker interface {
	snapshot.Remover

	ReposToCheck() []string
	IsStale(ctx context.Context, repo string) (bool, error)
	Pull(ctx context.Context, repo string) error
	CloneMissing(ctx context.Context) ([]string, error)
	HasPackageManifest(repo string) bool
	NpmUpdate(ctx context.Context, repo string) error
	HeadSHA(ctx context.Context, repo string) (string, error)
	RepoDir(repo string) string
}

// Cycler runs the background loop described by spec.md §4.1.
type Cycler struct {
	checker       RepoChecker
	enumerator    catalog.Enumerator
	ring          *snapshot.Ring
	resultTree    *results.Tree
	ringStore     *ringstore.Store // optional; nil disables warm-restart metadata
	fs            afero.Fs
	snapshotsRoot string

	pollInterval time.Duration
	log          zerolog.Logger

	status   *box
	wasStale bool
}

// Option configures a Cycler.
type Option func(*Cycler)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Cycler) { c.pollInterval = d }
}

// WithRingStore attaches optional warm-restart metadata persistence.
func WithRingStore(rs *ringstore.Store) Option {
	return func(c *Cycler) { c.ringStore = rs }
}

// WithFilesystem overrides the afero.Fs used for snapshot materialization.
func WithFilesystem(fs afero.Fs) Option {
	return func(c *Cycler) { c.fs = fs }
}

// New builds a Cycler. snapshotsRoot is the "ct-snapshots" directory
// under which every "{timestamp}/{repo}" materialization is written.
func New(
	checker RepoChecker,
	enumerator catalog.Enumerator,
	ring *snapshot.Ring,
	resultTree *results.Tree,
	snapshotsRoot string,
	log zerolog.Logger,
	opts ...Option,
) *Cycler {
	c := &Cycler{
		checker:       checker,
		enumerator:    enumerator,
		ring:          ring,
		resultTree:    resultTree,
		fs:            afero.NewOsFs(),
		snapshotsRoot: snapshotsRoot,
		pollInterval:  DefaultPollInterval,
		log:           log.With().Str("component", "cycler").Logger(),
		status:        newBox(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status returns the cycler's current structured status.
func (c *Cycler) Status() Status { return c.status.get() }

// StatusString implements dispatcher.StatusProvider, exposing the single
// human-readable string spec.md §4.3's /aquaserver/snapshot-status wants.
func (c *Cycler) StatusString() string { return c.status.get().String() }

// Seed reports the ring metadata a ringstore.Store loaded on startup, so
// /aquaserver/snapshot-status can describe prior history before the first
// new snapshot of this run completes (SPEC_FULL.md's warm-restart cache).
// It never rehydrates the ring itself, only the reporting string.
func (c *Cycler) Seed(entries []ringstore.Entry) {
	if len(entries) == 0 {
		return
	}
	newest := entries[0] // ringstore.LoadAll returns newest-first
	prev := c.status.get()
	prev.Restored = &RestoredSummary{
		Count:      len(entries),
		NewestName: newest.Name,
		NewestAt:   time.UnixMilli(newest.Timestamp),
	}
	c.status.set(prev)
}

// setStatus replaces the transient fields of the cycler's status while
// carrying forward whatever Seed previously recorded.
func (c *Cycler) setStatus(stage Stage, wasStale bool, lastErr string) {
	c.status.set(Status{
		Stage:     stage,
		Since:     time.Now(),
		WasStale:  wasStale,
		LastError: lastErr,
		Restored:  c.status.get().Restored,
	})
}

// Run executes spec.md §4.1's loop until ctx is cancelled. Each
// iteration's errors are logged and swallowed: the cycler never
// terminates except on ctx cancellation or process exit, per spec.md
// §4.1's failure semantics.
func (c *Cycler) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.iterate(ctx); err != nil {
				c.log.Error().Err(err).Msg("snapshot cycler iteration failed")
				c.setStatus(StageErrored, c.wasStale, err.Error())
			}
		}
	}
}

// iterate runs exactly one iteration of spec.md §4.1's algorithm.
func (c *Cycler) iterate(ctx context.Context) error {
	c.setStatus(StageChecking, c.wasStale, "")

	repos := c.checker.ReposToCheck()
	var staleRepos []string
	for _, repo := range repos {
		stale, err := c.checker.IsStale(ctx, repo)
		if err != nil {
			return fmt.Errorf("checking staleness of %s: %w", repo, err)
		}
		if stale {
			staleRepos = append(staleRepos, repo)
		}
	}

	if len(staleRepos) > 0 {
		c.wasStale = true

		c.setStatus(StagePulling, true, "")
		for _, repo := range staleRepos {
			if err := c.checker.Pull(ctx, repo); err != nil {
				return fmt.Errorf("pulling %s: %w", repo, err)
			}
		}

		c.setStatus(StageCloning, true, "")
		clonedRepos, err := c.checker.CloneMissing(ctx)
		if err != nil {
			return fmt.Errorf("cloning missing repos: %w", err)
		}

		c.setStatus(StageNpmUpdate, true, "")
		for _, repo := range uniqueStrings(staleRepos, clonedRepos) {
			if !c.checker.HasPackageManifest(repo) {
				continue
			}
			if err := c.checker.NpmUpdate(ctx, repo); err != nil {
				return fmt.Errorf("npm update %s: %w", repo, err)
			}
		}

		// not stable yet: do not create a snapshot this iteration.
		return nil
	}

	if !c.wasStale {
		// already stable last time we checked; nothing to do.
		c.setStatus(StageIdle, false, "")
		return nil
	}

	// we just reached a stable point after changes: create a snapshot.
	c.wasStale = false
	snap, err := c.createSnapshot(ctx, repos)
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}

	c.ring.Prepend(snap)
	if c.ringStore != nil {
		entry := ringstore.Entry{
			Name:      snap.Name,
			Timestamp: snap.Timestamp,
			Repos:     snap.Repos,
			Shas:      snap.Shas,
			TestCount: len(snap.Tests),
		}
		if err := c.ringStore.Put(entry); err != nil {
			c.log.Warn().Err(err).Str("snapshot", snap.Name).Msg("failed to persist ring metadata")
		}
	}

	c.setStatus(StageRetaining, false, "")
	c.ring.EnforceRetention(c.resultTree)
	c.ring.EnforceActiveWindow(c.checker)
	if c.ringStore != nil {
		cutoff := time.Now().Add(-snapshot.MaxRemovedAge).UnixMilli()
		if err := c.ringStore.DeleteBefore(cutoff); err != nil {
			c.log.Warn().Err(err).Msg("failed to prune ring metadata")
		}
	}

	c.setStatus(StageIdle, false, "")
	return nil
}

// createSnapshot materializes a new Snapshot: record timestamp, copy
// every active repo's working tree, record SHAs, invoke the enumerator.
func (c *Cycler) createSnapshot(ctx context.Context, repos []string) (*snapshot.Snapshot, error) {
	c.setStatus(StageSnapshot, c.wasStale, "")

	timestamp := time.Now().UnixMilli()
	dir := filepath.Join(c.snapshotsRoot, fmt.Sprintf("%d", timestamp))

	shas := make(map[string]string, len(repos))
	for _, repo := range repos {
		sha, err := c.checker.HeadSHA(ctx, repo)
		if err != nil {
			return nil, fmt.Errorf("reading HEAD sha for %s: %w", repo, err)
		}
		shas[repo] = sha

		src := c.checker.RepoDir(repo)
		dst := filepath.Join(dir, repo)
		if err := reposvc.CopyDirectory(c.fs, src, dst); err != nil {
			return nil, fmt.Errorf("copying %s: %w", repo, err)
		}
	}

	c.setStatus(StageEnumerate, c.wasStale, "")
	descriptors, err := c.enumerator.Enumerate(dir, repos)
	if err != nil {
		return nil, fmt.Errorf("enumerating tests: %w", err)
	}

	return snapshot.New(timestamp, dir, repos, shas, descriptors), nil
}

func uniqueStrings(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
