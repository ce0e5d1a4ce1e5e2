package hooks

import (
	"context"
	"fmt"

	"github.com/antgroup/branchless/modules/eventlog"
	"github.com/antgroup/branchless/modules/git"
	"github.com/antgroup/branchless/modules/oid"
)

// keepRefName returns the private reachability-pinning ref created for a
// newly created commit, so the host VCS's own gc sees the commit as
// reachable without it needing a branch or tag.
func keepRefName(c oid.NonZeroOid) string {
	return "refs/branchless/keep/" + c.String()
}

// handlePostCommitCommon is the shared body of post-commit, post-merge, and
// post-applypatch: the host VCS calls post-commit after an ordinary commit
// but not after a merge or an applied patch, so each of those hooks needs
// its own entry point even though the work they do is identical.
func handlePostCommitCommon(ctx context.Context, store *eventlog.Store, gitDir, worktreePath string, algo oid.Algo, now float64, hookName string) error {
	headHex, _, err := git.RevParseCurrentEx(ctx, nil, worktreePath)
	if err != nil {
		return fmt.Errorf("hooks: %s: resolve HEAD: %w", hookName, err)
	}
	if headHex == "" {
		// A strange situation (no commit yet), but not an error.
		return nil
	}
	commit, err := git.ParseRev(ctx, gitDir, headHex)
	if err != nil {
		return fmt.Errorf("hooks: %s: look up HEAD commit: %w", hookName, err)
	}
	commitOid, err := oid.ParseNonZero(commit.Hash)
	if err != nil {
		return fmt.Errorf("hooks: %s: parse HEAD oid: %w", hookName, err)
	}

	if err := git.UpdateRef(ctx, gitDir, keepRefName(commitOid), "", commitOid.String(), true); err != nil {
		return fmt.Errorf("hooks: %s: pin %s reachable: %w", hookName, commitOid, err)
	}

	if HasExtraPostRewriteHook(gitDir) {
		return AddDeferredCommit(gitDir, commitOid)
	}

	txID, err := store.MakeTransactionID(ctx, now, hookName)
	if err != nil {
		return fmt.Errorf("hooks: %s: make transaction: %w", hookName, err)
	}
	event := eventlog.CommitEvent(txID, now, commitOid)
	return store.AddEvents(ctx, []eventlog.Event{event})
}

// HandlePostCommit implements Git's `post-commit` hook.
func HandlePostCommit(ctx context.Context, store *eventlog.Store, gitDir, worktreePath string, algo oid.Algo, now float64) error {
	return handlePostCommitCommon(ctx, store, gitDir, worktreePath, algo, now, "post-commit")
}

// HandlePostMerge implements Git's `post-merge` hook: Git does not invoke
// post-commit after a merge commit, so this needs to exist as its own
// entry point even though the body is identical.
func HandlePostMerge(ctx context.Context, store *eventlog.Store, gitDir, worktreePath string, algo oid.Algo, now float64, isSquash bool) error {
	return handlePostCommitCommon(ctx, store, gitDir, worktreePath, algo, now, "post-merge")
}

// HandlePostApplypatch implements Git's `post-applypatch` hook (`git am`).
func HandlePostApplypatch(ctx context.Context, store *eventlog.Store, gitDir, worktreePath string, algo oid.Algo, now float64) error {
	return handlePostCommitCommon(ctx, store, gitDir, worktreePath, algo, now, "post-applypatch")
}
