// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"

	"github.com/antgroup/branchless/modules/oid"
	"github.com/antgroup/branchless/pkg/repo"
	"github.com/antgroup/branchless/pkg/rewrite"
)

// Reword replaces a single commit's message in place, by building a
// rebase plan that moves the commit and its descendants onto the commit's
// own first parent, with a StepReword step for the commit itself.
type Reword struct {
	Commit  string `arg:"" name:"commit" help:"Commit whose message should change"`
	Message string `arg:"" name:"message" help:"Replacement commit message"`
	OnDisk  bool   `name:"on-disk" help:"Apply via the host VCS's interactive rebase instead of in memory"`
	Force   bool   `name:"force-rewrite-public-commits" help:"Allow rewriting commits already reachable from the main branch"`
}

func (c *Reword) Run(g *Globals) error {
	ctx := context.Background()
	worktree := g.CWD
	if worktree == "" {
		worktree = "."
	}
	r, err := repo.Open(ctx, worktree)
	if err != nil {
		return fmt.Errorf("reword: open repository: %w", err)
	}
	defer r.Close() // nolint

	target, err := resolveToNonZeroOid(ctx, r, c.Commit)
	if err != nil {
		return fmt.Errorf("reword: resolve %q: %w", c.Commit, err)
	}

	snap, err := r.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("reword: build snapshot: %w", err)
	}
	parents := snap.Parents(snap.SetOf(target.Oid())).Oids()
	if len(parents) == 0 {
		return fmt.Errorf("reword: %s is a root commit with no parent to rebuild onto", target)
	}
	dest, err := oid.NewNonZero(parents[0])
	if err != nil {
		return fmt.Errorf("reword: %w", err)
	}

	cache, err := rewrite.NewPatchIDCache(4096)
	if err != nil {
		return fmt.Errorf("reword: new patch id cache: %w", err)
	}
	perms := rewrite.NewRebasePlanPermissions(c.Force)
	reqs := rewrite.BuildRequests{
		Moves:   []rewrite.MoveRequest{{Source: target, Dest: dest}},
		Rewords: map[oid.Oid]string{target.Oid(): c.Message},
	}
	workers := r.Settings.WorkerCount(4)

	plan, err := rewrite.BuildRebasePlan(ctx, snap, r.GitDir, r.Algo, perms, reqs, cache, workers)
	if err != nil {
		return fmt.Errorf("reword: %w", err)
	}
	return runPlan(ctx, r, plan, c.OnDisk, "reword")
}
