package git

import (
	"context"
	"fmt"

	"github.com/antgroup/branchless/modules/command"
)

// CheckoutRev checks out rev (a commit OID, branch name, or "ORIG_HEAD")
// into repoPath's working copy, detaching HEAD unless rev is a branch ref.
func CheckoutRev(ctx context.Context, repoPath, rev string) error {
	stderr := command.NewStderr()
	cmd := command.NewFromOptions(ctx, &command.RunOpts{RepoPath: repoPath, Stderr: stderr}, "git", "checkout", "--quiet", rev, "--")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git checkout %s: %w (%s)", rev, err, stderr.String())
	}
	return nil
}

// DeleteRef removes reference, verifying it still points at oldRev first.
func DeleteRef(ctx context.Context, repoPath, reference, oldRev string) error {
	stderr := command.NewStderr()
	cmd := command.NewFromOptions(ctx, &command.RunOpts{RepoPath: repoPath, Stderr: stderr}, "git", "update-ref", "-d", "--", reference, oldRev)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git update-ref -d %s: %w (%s)", reference, err, stderr.String())
	}
	return nil
}
