package rewrite

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/antgroup/branchless/modules/oid"
	"github.com/stretchr/testify/require"
)

// initPatchIDTestRepo creates a throwaway repository with a base commit and
// one child commit that changes a single file, returning both OIDs.
func initPatchIDTestRepo(t *testing.T) (gitDir string, base, sameDiff oid.Oid) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not on PATH")
	}
	dir := t.TempDir()
	run := func(args ...string) string {
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
	run("init", "-q")
	run("config", "user.name", "test")
	run("config", "user.email", "test@example.com")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("base\n"), 0o644))
	run("add", "f.txt")
	run("commit", "-q", "-m", "base")
	baseHex := trimNL(run("rev-parse", "HEAD"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("base\nchange\n"), 0o644))
	run("add", "f.txt")
	run("commit", "-q", "-m", "first application")
	firstHex := trimNL(run("rev-parse", "HEAD"))

	gd := trimNL(run("rev-parse", "--git-dir"))
	if !filepath.IsAbs(gd) {
		gd = filepath.Join(dir, gd)
	}
	return gd, oid.MustParse(baseHex), oid.MustParse(firstHex)
}

func TestComputePatchIDMatchesIdenticalDiff(t *testing.T) {
	gitDir, base, first := initPatchIDTestRepo(t)

	id1, err := computePatchID(context.Background(), gitDir, oid.AlgoSHA1, first, base)
	require.NoError(t, err)

	id2, err := computePatchID(context.Background(), gitDir, oid.AlgoSHA1, first, base)
	require.NoError(t, err)
	require.Equal(t, id1, id2)
	require.NotEqual(t, PatchID{}, id1)
}

func TestComputePatchIDDiffersAcrossDifferentChanges(t *testing.T) {
	gitDir, base, first := initPatchIDTestRepo(t)

	id1, err := computePatchID(context.Background(), gitDir, oid.AlgoSHA1, first, base)
	require.NoError(t, err)

	id2, err := computePatchID(context.Background(), gitDir, oid.AlgoSHA1, base, oid.Oid{})
	require.NoError(t, err)

	require.NotEqual(t, id1, id2)
}

func TestPatchIDCacheMemoizes(t *testing.T) {
	gitDir, base, first := initPatchIDTestRepo(t)
	cache, err := NewPatchIDCache(16)
	require.NoError(t, err)

	id1, err := cache.PatchIDOf(context.Background(), gitDir, oid.AlgoSHA1, first, base)
	require.NoError(t, err)
	id2, err := cache.PatchIDOf(context.Background(), gitDir, oid.AlgoSHA1, first, base)
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestPatchIDsOfComputesEveryEntry(t *testing.T) {
	gitDir, base, first := initPatchIDTestRepo(t)
	cache, err := NewPatchIDCache(16)
	require.NoError(t, err)

	entries := []commitParent{
		{Commit: base, Parent: oid.Oid{}},
		{Commit: first, Parent: base},
	}
	ids, err := cache.PatchIDsOf(context.Background(), gitDir, oid.AlgoSHA1, entries, 2)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	require.Contains(t, ids, base)
	require.Contains(t, ids, first)
}

func trimNL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
