// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/antgroup/branchless/modules/git"
	"github.com/antgroup/branchless/pkg/repo"
)

// Init installs the hook shims that turn this binary into the overlay's
// adapter: one tiny shell script per hook name, each exec'ing this same
// binary's "hook" subcommand, rather than shipping one binary per hook.
type Init struct {
	Worktree string `arg:"" optional:"" name:"worktree" help:"Repository worktree to install into" default:"."`
}

var hookNames = []string{
	"post-checkout",
	"post-commit",
	"post-merge",
	"post-applypatch",
	"post-rewrite",
	"reference-transaction",
	"pre-auto-gc",
}

func (c *Init) Run(g *Globals) error {
	worktree := c.Worktree
	if worktree == "" {
		worktree = "."
	}
	ctx := context.Background()
	gitDir := git.RevParseRepoPath(ctx, worktree)
	if gitDir == "" {
		diev("'%s' is not inside a git repository", worktree)
		return ErrArgRequired
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("command: resolve executable path: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return fmt.Errorf("command: resolve executable path: %w", err)
	}

	hooksDir := filepath.Join(gitDir, "hooks")
	if err := os.MkdirAll(hooksDir, 0755); err != nil {
		return fmt.Errorf("command: create hooks directory: %w", err)
	}
	for _, name := range hookNames {
		path := filepath.Join(hooksDir, name)
		script := fmt.Sprintf("#!/bin/sh\nexec %q hook %s \"$@\"\n", exe, name)
		if err := os.WriteFile(path, []byte(script), 0755); err != nil {
			return fmt.Errorf("command: install %s hook: %w", name, err)
		}
	}

	r, err := repo.Open(ctx, worktree)
	if err != nil {
		return fmt.Errorf("command: open repository: %w", err)
	}
	defer r.Close() // nolint

	fmt.Fprintf(os.Stdout, "Initialized branchless in %s\n", gitDir)
	return nil
}
