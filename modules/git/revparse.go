package git

import (
	"context"
	"strings"

	"github.com/antgroup/branchless/modules/command"
)

// RevParseCurrent resolves HEAD to its symbolic full name, eg refs/heads/master.
func RevParseCurrent(ctx context.Context, environ []string, repoPath string) (string, error) {
	cmd := command.NewFromOptions(ctx, &command.RunOpts{RepoPath: repoPath, Environ: environ},
		"git", "rev-parse", "--symbolic-full-name", "HEAD")
	line, err := cmd.OneLine()
	if err != nil {
		return ReferenceNameDefault, err
	}
	return line, nil
}

// RevParseCurrentEx resolves HEAD to both its OID and its symbolic full name.
func RevParseCurrentEx(ctx context.Context, environ []string, repoPath string) (string, string, error) {
	cmd := command.NewFromOptions(ctx, &command.RunOpts{RepoPath: repoPath, Environ: environ},
		"git", "rev-parse", "HEAD", "--symbolic-full-name", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "", ReferenceNameDefault, err
	}
	hash, refname, _ := strings.Cut(string(output), "\n")
	return hash, strings.TrimSpace(refname), nil
}
