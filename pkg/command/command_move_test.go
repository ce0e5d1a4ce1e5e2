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
	"time"

	"github.com/antgroup/branchless/modules/eventlog"
	"github.com/antgroup/branchless/modules/oid"
	"github.com/stretchr/testify/require"
)

// initDivergingTestRepo builds:
//
//	base -- ours1 -- ours2       (current branch "ours")
//	  \
//	   dest1 -- dest2            (branch "dest")
//
// so Move/Restack tests can relocate ours1..ours2 onto dest territory.
func initDivergingTestRepo(t *testing.T) (g *Globals, commits map[string]oid.Oid, run func(args ...string) string) {
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

	run("init", "-q", "-b", "ours")
	run("config", "user.name", "test")
	run("config", "user.email", "test@example.com")

	commits = map[string]oid.Oid{}
	commits["base"] = commit("shared.txt", "shared\n", "base")
	commits["ours1"] = commit("ours1.txt", "ours1\n", "ours1")
	commits["ours2"] = commit("ours2.txt", "ours2\n", "ours2")
	run("checkout", "-q", "-b", "dest", "base")
	commits["dest1"] = commit("dest1.txt", "dest1\n", "dest1")
	commits["dest2"] = commit("dest2.txt", "dest2\n", "dest2")
	run("checkout", "-q", "ours")

	return &Globals{CWD: dir}, commits, run
}

func TestMoveRelocatesChainOntoDest(t *testing.T) {
	g, commits, run := initDivergingTestRepo(t)

	c := &Move{Source: commits["ours1"].String(), Dest: commits["dest2"].String()}
	require.NoError(t, c.Run(g))

	log := run("log", "--format=%s", "HEAD")
	lines := strings.Split(strings.TrimSpace(log), "\n")
	require.Equal(t, []string{"ours2", "ours1", "dest2", "dest1", "base"}, lines)
}

func TestMoveByBranchNameResolvesRevision(t *testing.T) {
	g, _, run := initDivergingTestRepo(t)

	c := &Move{Source: "ours^", Dest: "dest"}
	require.NoError(t, c.Run(g))

	log := run("log", "--format=%s", "HEAD")
	require.Contains(t, strings.Split(strings.TrimSpace(log), "\n"), "ours1")
}

func TestMoveNothingToMoveIsNoop(t *testing.T) {
	g, commits, _ := initDivergingTestRepo(t)

	c := &Move{Source: commits["ours1"].String(), Dest: commits["base"].String()}
	require.NoError(t, c.Run(g))
}

func TestRestackReattachesAbandonedCommit(t *testing.T) {
	g, commits, run := initDivergingTestRepo(t)
	ctx := context.Background()
	r := openTestRepo(t, g)

	// Simulate an external amend of ours1 (e.g. the host VCS's own
	// `commit --amend`) that rewrote it to a new OID without moving
	// ours2 along, then record that rewrite the way the post-commit
	// hook would.
	run("checkout", "-q", commits["ours1"].String())
	require.NoError(t, os.WriteFile(filepath.Join(g.CWD, "ours1.txt"), []byte("ours1-amended\n"), 0o644))
	run("add", "ours1.txt")
	run("commit", "-q", "--amend", "-m", "ours1 (amended)")
	amended := oid.MustParse(strings.TrimSpace(run("rev-parse", "HEAD")))
	run("checkout", "-q", "ours")

	now := float64(time.Now().Unix())
	txID, err := r.Store.MakeTransactionID(ctx, now, "amend")
	require.NoError(t, err)
	event := eventlog.RewriteEvent(txID, now, oid.FromOid(commits["ours1"]), oid.FromNonZero(amended))
	require.NoError(t, r.Store.AddEvents(ctx, []eventlog.Event{event}))

	rc := &Restack{}
	require.NoError(t, rc.Run(g))

	log := run("log", "--format=%s", "HEAD")
	require.Contains(t, strings.Split(strings.TrimSpace(log), "\n"), "ours2")
}
