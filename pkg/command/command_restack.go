// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"

	"github.com/antgroup/branchless/modules/dag"
	"github.com/antgroup/branchless/modules/eventlog"
	"github.com/antgroup/branchless/modules/oid"
	"github.com/antgroup/branchless/pkg/repo"
	"github.com/antgroup/branchless/pkg/rewrite"
)

// Restack reattaches every abandoned commit (one whose ancestor was
// rewritten but which was never itself moved along) onto its rewritten
// ancestor's new location, using find_abandoned_children against the
// event log replayed for the current snapshot.
type Restack struct {
	OnDisk bool `name:"on-disk" help:"Apply the rebase via the host VCS's interactive rebase instead of in memory"`
	Force  bool `name:"force-rewrite-public-commits" help:"Allow rewriting commits already reachable from the main branch"`
}

func (c *Restack) Run(g *Globals) error {
	ctx := context.Background()
	worktree := g.CWD
	if worktree == "" {
		worktree = "."
	}
	r, err := repo.Open(ctx, worktree)
	if err != nil {
		return fmt.Errorf("restack: open repository: %w", err)
	}
	defer r.Close() // nolint

	snap, err := r.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("restack: build snapshot: %w", err)
	}
	cursor, err := r.Store.LatestCursor(ctx)
	if err != nil {
		return fmt.Errorf("restack: latest cursor: %w", err)
	}
	events, err := r.Store.GetEventsUpTo(ctx, cursor)
	if err != nil {
		return fmt.Errorf("restack: replay events: %w", err)
	}

	moves, err := abandonedMoves(snap, events)
	if err != nil {
		return fmt.Errorf("restack: %w", err)
	}
	if len(moves) == 0 {
		fmt.Fprintln(os.Stdout, "No abandoned commits to restack.")
		return nil
	}

	cache, err := rewrite.NewPatchIDCache(4096)
	if err != nil {
		return fmt.Errorf("restack: new patch id cache: %w", err)
	}
	perms := rewrite.NewRebasePlanPermissions(c.Force)
	workers := r.Settings.WorkerCount(4)

	plan, err := rewrite.BuildRebasePlan(ctx, snap, r.GitDir, r.Algo, perms, rewrite.BuildRequests{Moves: moves}, cache, workers)
	if err != nil {
		return fmt.Errorf("restack: %w", err)
	}
	if plan.IsEmpty() {
		fmt.Fprintln(os.Stdout, "No abandoned commits to restack.")
		return nil
	}
	return runPlan(ctx, r, plan, c.OnDisk, "restack")
}

// abandonedMoves finds, for every rewrite recorded in events, the commits
// left behind by that rewrite and issues one MoveRequest per abandoned
// commit onto the rewrite's terminal target.
func abandonedMoves(snap *dag.Snapshot, events []eventlog.Event) ([]rewrite.MoveRequest, error) {
	rewrittenOlds := make(map[oid.Oid]bool)
	for _, e := range events {
		if e.Kind != eventlog.KindRewrite {
			continue
		}
		if old, ok := e.OldOid.Oid(); ok {
			rewrittenOlds[old] = true
		}
	}

	var moves []rewrite.MoveRequest
	seenSources := make(map[oid.Oid]bool)
	for old := range rewrittenOlds {
		target := dag.FindRewriteTarget(events, old)
		newOid, ok := target.Oid()
		if !ok {
			// The commit was dropped entirely; its children have nowhere
			// to land and are left abandoned for the user to handle.
			continue
		}
		abandoned := snap.FindAbandonedChildren(events, old)
		for _, child := range abandoned.Oids() {
			if seenSources[child] {
				continue
			}
			source, err := oid.NewNonZero(child)
			if err != nil {
				continue
			}
			dest, err := oid.NewNonZero(newOid)
			if err != nil {
				continue
			}
			seenSources[child] = true
			moves = append(moves, rewrite.MoveRequest{Source: source, Dest: dest})
		}
	}
	return moves, nil
}
