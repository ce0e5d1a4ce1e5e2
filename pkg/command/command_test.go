// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/antgroup/branchless/modules/oid"
	"github.com/antgroup/branchless/pkg/repo"
	"github.com/stretchr/testify/require"
)

// initCommandTestRepo builds:
//
//	base -- feat1 -- feat2       (current branch "feat")
//
// a single linear chain, and returns a Globals pointed at the worktree plus
// each commit's OID, matching pkg/rewrite's own test-repo builders.
func initCommandTestRepo(t *testing.T) (g *Globals, commits map[string]oid.Oid, run func(args ...string) string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not on PATH")
	}
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	run = func(args ...string) string {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(cmd.Environ(),
			"HOME="+dir,
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
		return string(out)
	}
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	commit := func(name, content, message string) oid.Oid {
		write(name, content)
		run("add", name)
		run("commit", "-q", "-m", message)
		return oid.MustParse(strings.TrimSpace(run("rev-parse", "HEAD")))
	}

	run("init", "-q", "-b", "feat")
	run("config", "user.name", "test")
	run("config", "user.email", "test@example.com")

	commits = map[string]oid.Oid{}
	commits["base"] = commit("base.txt", "base\n", "base")
	commits["feat1"] = commit("feat1.txt", "feat1\n", "feat1")
	commits["feat2"] = commit("feat2.txt", "feat2\n", "feat2")

	return &Globals{CWD: dir}, commits, run
}

func openTestRepo(t *testing.T, g *Globals) *repo.Context {
	t.Helper()
	r, err := repo.Open(context.Background(), g.CWD)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}
