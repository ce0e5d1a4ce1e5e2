// Package hooks implements the hook-driven state machine: the callbacks Git
// invokes on checkout, commit, merge, reference update, and rewrite, wired
// up by `branchless init` and installed as executables under `.git/hooks`.
// Each handler translates one Git hook invocation into eventlog.Event
// records and, during a rebase, into the rewritten-list/deferred-commits
// bookkeeping the post-rewrite hook later consumes.
package hooks

import (
	"os"
	"path/filepath"
)

const (
	stateDirName        = "branchless"
	rewrittenListName    = "rewritten-list"
	deferredCommitsName  = "deferred-commits"
	origHeadOidFileName  = "branchless_original_head_oid"
	origHeadNameFileName = "branchless_original_head"
	updatedHeadFileName  = "branchless_updated_head"
	extraPostRewriteName = "branchless_do_extra_post_rewrite"
)

// StateDir returns the directory this package uses to stash bookkeeping
// files across hook invocations within a single rebase, rooted under the
// repository's git directory (gitDir, as returned by `git rev-parse
// --git-dir`). Besides the rewritten-list/deferred-commits files tracked
// here, pkg/rewrite keeps its on-disk rebase metadata (rebase.toml) in
// this same directory, which is created on first use.
func StateDir(gitDir string) string {
	return filepath.Join(gitDir, stateDirName)
}

func ensureStateDir(gitDir string) (string, error) {
	dir := StateDir(gitDir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

func rewrittenListPath(gitDir string) string {
	return filepath.Join(StateDir(gitDir), rewrittenListName)
}

func deferredCommitsPath(gitDir string) string {
	return filepath.Join(StateDir(gitDir), deferredCommitsName)
}
