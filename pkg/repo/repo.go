// Package repo ties the host VCS, the event log, and the config layer
// together into a single handle the rest of the overlay core operates
// against: Context resolves a working directory to its git
// directory and hash algorithm, opens (or creates) the event log database
// under it, and loads branchless.* config, resolving that context once
// at startup and threading it through every later call.
package repo

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/antgroup/branchless/modules/config"
	"github.com/antgroup/branchless/modules/eventlog"
	"github.com/antgroup/branchless/modules/git"
	"github.com/antgroup/branchless/modules/oid"
)

// Context is a resolved repository: paths, hash algorithm, event store, and
// settings, opened once per command invocation.
type Context struct {
	WorktreePath string
	GitDir       string
	Algo         oid.Algo

	Store    *eventlog.Store
	Settings *config.Settings
}

const eventLogFileName = "branchless.db"

// Open resolves worktreePath to its git directory, detects the repository's
// hash algorithm, and opens the event log database and branchless config
// underneath the git directory. Callers must call Close when done.
func Open(ctx context.Context, worktreePath string) (*Context, error) {
	gitDir := git.RevParseRepoPath(ctx, worktreePath)
	if gitDir == "" {
		return nil, fmt.Errorf("repo: %q is not inside a git repository", worktreePath)
	}

	algo, err := git.HashFormatResult(gitDir)
	if err != nil {
		return nil, fmt.Errorf("repo: detect hash algorithm: %w", err)
	}

	store, err := eventlog.Open(filepath.Join(gitDir, eventLogFileName))
	if err != nil {
		return nil, fmt.Errorf("repo: open event log: %w", err)
	}

	cfg, err := config.Load(filepath.Join(gitDir, "config"))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("repo: load config: %w", err)
	}

	return &Context{
		WorktreePath: worktreePath,
		GitDir:       gitDir,
		Algo:         oidAlgoOf(algo),
		Store:        store,
		Settings:     config.NewSettings(cfg),
	}, nil
}

// Close releases the event log database handle.
func (c *Context) Close() error {
	return c.Store.Close()
}

// oidAlgoOf maps modules/git's HashAlgo onto modules/oid's Algo; the two
// enumerate the same set independently (oid must not import modules/git,
// see modules/oid's package doc) so the mapping lives here, at the one
// point both packages are already in scope.
func oidAlgoOf(h git.HashAlgo) oid.Algo {
	switch h {
	case git.HashAlgoSHA1:
		return oid.AlgoSHA1
	case git.HashAlgoSHA256:
		return oid.AlgoSHA256
	default:
		return oid.AlgoUnknown
	}
}
