package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// initTreeMergeTestRepo creates a throwaway repository and returns its
// git directory along with a small helper to run further git commands in
// it, following the same os/exec-based, gracefully-skipping pattern as
// pkg/rewrite/patchid_test.go.
func initTreeMergeTestRepo(t *testing.T) (dir, gitDir string, run func(args ...string) string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not on PATH")
	}
	dir = t.TempDir()
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
	run("init", "-q")
	run("config", "user.name", "test")
	run("config", "user.email", "test@example.com")

	gd := strings.TrimSpace(run("rev-parse", "--git-dir"))
	if !filepath.IsAbs(gd) {
		gd = filepath.Join(dir, gd)
	}
	return dir, gd, run
}

func writeAndCommit(t *testing.T, dir string, run func(args ...string) string, path, content, message string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, path), []byte(content), 0o644))
	run("add", path)
	run("commit", "-q", "-m", message)
	return strings.TrimSpace(run("rev-parse", "HEAD"))
}

func treeOf(t *testing.T, run func(args ...string) string, commit string) string {
	t.Helper()
	return strings.TrimSpace(run("rev-parse", commit+"^{tree}"))
}

func TestMergeTreesNonOverlappingChanges(t *testing.T) {
	dir, gitDir, run := initTreeMergeTestRepo(t)

	base := writeAndCommit(t, dir, run, "a.txt", "a\n", "base")
	run("checkout", "-q", "-b", "ours")
	ours := writeAndCommit(t, dir, run, "b.txt", "b\n", "ours adds b")
	run("checkout", "-q", "-b", "theirs", base)
	theirs := writeAndCommit(t, dir, run, "c.txt", "c\n", "theirs adds c")

	ctx := context.Background()
	mergedTree, conflicts, err := MergeTrees(ctx, gitDir, treeOf(t, run, base), treeOf(t, run, ours), treeOf(t, run, theirs))
	require.NoError(t, err)
	require.Empty(t, conflicts)
	require.NotEmpty(t, mergedTree)

	listing := run("ls-tree", "--name-only", mergedTree)
	require.Contains(t, listing, "a.txt")
	require.Contains(t, listing, "b.txt")
	require.Contains(t, listing, "c.txt")
}

func TestMergeTreesConflictingEdits(t *testing.T) {
	dir, gitDir, run := initTreeMergeTestRepo(t)

	base := writeAndCommit(t, dir, run, "a.txt", "line one\nline two\nline three\n", "base")
	run("checkout", "-q", "-b", "ours")
	ours := writeAndCommit(t, dir, run, "a.txt", "line one changed by ours\nline two\nline three\n", "ours edits a")
	run("checkout", "-q", "-b", "theirs", base)
	theirs := writeAndCommit(t, dir, run, "a.txt", "line one changed by theirs\nline two\nline three\n", "theirs edits a")

	ctx := context.Background()
	_, conflicts, err := MergeTrees(ctx, gitDir, treeOf(t, run, base), treeOf(t, run, ours), treeOf(t, run, theirs))
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Equal(t, "a.txt", conflicts[0].Path)
}

func TestCommitTreeCreatesCommitWithGivenIdentity(t *testing.T) {
	dir, gitDir, run := initTreeMergeTestRepo(t)
	base := writeAndCommit(t, dir, run, "a.txt", "a\n", "base")

	when, err := time.Parse(time.RFC3339, "2024-01-02T03:04:05Z")
	require.NoError(t, err)
	author := Signature{Name: "Author Name", Email: "author@example.com", When: when}
	committer := Signature{Name: "Committer Name", Email: "committer@example.com", When: when}

	newOid, err := CommitTree(context.Background(), gitDir, treeOf(t, run, base), []string{base}, author, committer, "a new commit")
	require.NoError(t, err)
	require.NotEmpty(t, newOid)

	show := run("show", "-s", "--format=%an <%ae>", newOid)
	require.Contains(t, show, "Author Name <author@example.com>")
}
