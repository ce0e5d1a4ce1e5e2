package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/antgroup/branchless/modules/git"
	"github.com/antgroup/branchless/modules/oid"
	"github.com/stretchr/testify/require"
)

func TestOidAlgoOfMapsEveryHashAlgo(t *testing.T) {
	require.Equal(t, oid.AlgoSHA1, oidAlgoOf(git.HashAlgoSHA1))
	require.Equal(t, oid.AlgoSHA256, oidAlgoOf(git.HashAlgoSHA256))
	require.Equal(t, oid.AlgoUnknown, oidAlgoOf(git.HashAlgoUNKNOWN))
}

// TestOpenOwnCheckout opens this module's own checkout the way any
// `branchless` command does on startup. It requires a real `git` binary and
// a git directory above this file, matching modules/git's own
// TestRepoIsBare, which makes the same assumption rather than mocking it
// out.
func TestOpenOwnCheckout(t *testing.T) {
	_, filename, _, _ := runtime.Caller(0)
	worktree := filepath.Dir(filename)
	gitDir := git.RevParseRepoPath(context.Background(), worktree)
	if gitDir == "" {
		t.Skip("not inside a git checkout")
	}

	dbDir := t.TempDir()
	t.Setenv("HOME", dbDir)
	ctx, err := Open(context.Background(), worktree)
	if err != nil {
		fmt.Fprintf(os.Stderr, "repo.Open: %v\n", err)
		t.Skip("repo.Open failed in this environment")
	}
	defer ctx.Close()
	require.NotEmpty(t, ctx.GitDir)
}
