// Package reposvc implements the external git/filesystem/package-manager
// collaborators spec.md §1 treats as opaque: isStale, gitPull,
// cloneMissingRepos, npmUpdate and copyDirectory. It shells out to the
// git and npm binaries the way restic's release helpers shell out to
// git from Go (helpers/prepare-release, helpers/run-integration-tests).
package reposvc

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Checker is the set of git/npm/filesystem operations the snapshot
// cycler calls as opaque, external operations.
type Checker struct {
	// ReposRoot is the parent directory containing every sibling
	// repository (the "common parent directory" of spec.md §1).
	ReposRoot string
	// SelfRepo is excluded from every repository enumeration.
	SelfRepo string
	// KnownRepos lists the repos expected to be checked out under
	// ReposRoot. CloneMissing clones whichever of these are absent.
	KnownRepos []string
	// RemoteBranch is the tracking branch checked for staleness, e.g. "origin/main".
	RemoteBranch string
	// RemoteBase is the base URL new repositories are cloned from, e.g.
	// "https://github.com/phetsims". CloneMissing joins it with
	// "/{repo}.git" for each missing repo.
	RemoteBase string

	log zerolog.Logger
}

// New returns a Checker logging through the given logger.
func New(reposRoot, selfRepo string, knownRepos []string, remoteBranch, remoteBase string, log zerolog.Logger) *Checker {
	return &Checker{
		ReposRoot:    reposRoot,
		SelfRepo:     selfRepo,
		KnownRepos:   knownRepos,
		RemoteBranch: remoteBranch,
		RemoteBase:   remoteBase,
		log:          log.With().Str("component", "reposvc").Logger(),
	}
}

// ReposToCheck returns the active repositories minus the self-repo, per
// spec.md §4.1 step 1.
func (c *Checker) ReposToCheck() []string {
	out := make([]string, 0, len(c.KnownRepos))
	for _, r := range c.KnownRepos {
		if r == c.SelfRepo {
			continue
		}
		if _, err := os.Stat(filepath.Join(c.ReposRoot, r)); err == nil {
			out = append(out, r)
		}
	}
	return out
}

func (c *Checker) repoDir(repo string) string {
	return filepath.Join(c.ReposRoot, repo)
}

// RepoDir returns repo's absolute working-tree directory under ReposRoot.
func (c *Checker) RepoDir(repo string) string {
	return c.repoDir(repo)
}

func (c *Checker) git(ctx context.Context, repo string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.repoDir(repo)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", errors.Wrapf(err, "git %s (repo %s): %s", strings.Join(args, " "), repo, string(out))
	}
	return strings.TrimSpace(string(out)), nil
}

// IsStale reports whether repo's local tracking branch is behind its
// remote, per spec.md §4.1 step 2.
func (c *Checker) IsStale(ctx context.Context, repo string) (bool, error) {
	if _, err := c.git(ctx, repo, "fetch", "--quiet"); err != nil {
		return false, err
	}
	local, err := c.git(ctx, repo, "rev-parse", "HEAD")
	if err != nil {
		return false, err
	}
	remote, err := c.git(ctx, repo, "rev-parse", c.RemoteBranch)
	if err != nil {
		return false, err
	}
	return local != remote, nil
}

// Pull fast-forwards repo's working tree to its remote tracking branch,
// per spec.md §4.1 step 3.
func (c *Checker) Pull(ctx context.Context, repo string) error {
	_, err := c.git(ctx, repo, "merge", "--ff-only", c.RemoteBranch)
	return err
}

// HeadSHA returns repo's current HEAD revision.
func (c *Checker) HeadSHA(ctx context.Context, repo string) (string, error) {
	return c.git(ctx, repo, "rev-parse", "HEAD")
}

// CloneMissing clones every KnownRepos entry not already present under
// ReposRoot from RemoteBase, returning the repos it cloned.
func (c *Checker) CloneMissing(ctx context.Context) ([]string, error) {
	var cloned []string
	for _, repo := range c.KnownRepos {
		dir := c.repoDir(repo)
		if _, err := os.Stat(dir); err == nil {
			continue
		}
		url := strings.TrimRight(c.RemoteBase, "/") + "/" + repo + ".git"
		cmd := exec.CommandContext(ctx, "git", "clone", "--quiet", url, dir)
		out, err := cmd.CombinedOutput()
		if err != nil {
			return cloned, errors.Wrapf(err, "git clone %s: %s", repo, string(out))
		}
		cloned = append(cloned, repo)
		c.log.Info().Str("repo", repo).Msg("cloned missing repository")
	}
	return cloned, nil
}

// HasPackageManifest reports whether repo has a package.json.
func (c *Checker) HasPackageManifest(repo string) bool {
	_, err := os.Stat(filepath.Join(c.repoDir(repo), "package.json"))
	return err == nil
}

// NpmUpdate runs `npm update` in repo's directory, per spec.md §4.1 step 3.
func (c *Checker) NpmUpdate(ctx context.Context, repo string) error {
	cmd := exec.CommandContext(ctx, "npm", "update", "--no-audit", "--no-fund")
	cmd.Dir = c.repoDir(repo)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "npm update (repo %s): %s", repo, string(out))
	}
	return nil
}

// RemoveDirectory deletes dir. Implements snapshot.Remover.
func (c *Checker) RemoveDirectory(dir string) error {
	if dir == "" {
		return nil
	}
	return os.RemoveAll(dir)
}
