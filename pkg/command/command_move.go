// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/antgroup/branchless/modules/eventlog"
	"github.com/antgroup/branchless/modules/git"
	"github.com/antgroup/branchless/modules/oid"
	"github.com/antgroup/branchless/pkg/repo"
	"github.com/antgroup/branchless/pkg/rewrite"
)

// Move relocates Source and every one of its descendants onto Dest:
// build a rebase plan from the current snapshot, then apply it either in
// memory (the default) or by delegating to the host VCS's own interactive
// rebase when OnDisk is set.
type Move struct {
	Source string `arg:"" name:"source" help:"Commit to move, and everything beneath it"`
	Dest   string `arg:"" name:"dest" help:"Commit to move Source onto"`
	OnDisk bool   `name:"on-disk" help:"Apply the rebase via the host VCS's interactive rebase instead of in memory"`
	Force  bool   `name:"force-rewrite-public-commits" help:"Allow rewriting commits already reachable from the main branch"`
}

func (c *Move) Run(g *Globals) error {
	ctx := context.Background()
	worktree := g.CWD
	if worktree == "" {
		worktree = "."
	}
	r, err := repo.Open(ctx, worktree)
	if err != nil {
		return fmt.Errorf("move: open repository: %w", err)
	}
	defer r.Close() // nolint

	source, err := resolveToNonZeroOid(ctx, r, c.Source)
	if err != nil {
		return fmt.Errorf("move: resolve source %q: %w", c.Source, err)
	}
	dest, err := resolveToNonZeroOid(ctx, r, c.Dest)
	if err != nil {
		return fmt.Errorf("move: resolve dest %q: %w", c.Dest, err)
	}

	snap, err := r.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("move: build snapshot: %w", err)
	}

	cache, err := rewrite.NewPatchIDCache(4096)
	if err != nil {
		return fmt.Errorf("move: new patch id cache: %w", err)
	}
	perms := rewrite.NewRebasePlanPermissions(c.Force)
	reqs := rewrite.BuildRequests{Moves: []rewrite.MoveRequest{{Source: source, Dest: dest}}}
	workers := r.Settings.WorkerCount(4)

	plan, err := rewrite.BuildRebasePlan(ctx, snap, r.GitDir, r.Algo, perms, reqs, cache, workers)
	if err != nil {
		return fmt.Errorf("move: %w", err)
	}
	if plan.IsEmpty() {
		fmt.Fprintln(os.Stdout, "Nothing to move.")
		return nil
	}

	return runPlan(ctx, r, plan, c.OnDisk, "move")
}

// resolveToNonZeroOid parses arg as an OID, falling back to resolving it as
// a revision (branch name, HEAD, etc.) via the host VCS when it isn't one.
func resolveToNonZeroOid(ctx context.Context, r *repo.Context, arg string) (oid.NonZeroOid, error) {
	if n, err := oid.ParseNonZero(arg); err == nil {
		return n, nil
	}
	hex, err := git.ReferenceTarget(ctx, r.GitDir, arg)
	if err != nil {
		return oid.NonZeroOid{}, err
	}
	return oid.ParseNonZero(hex)
}

// runPlan applies plan using the configured execution mode and, for
// ExecuteInMemory, performs the bookkeeping a hook would otherwise have
// done, since no post-rewrite hook fires when the working copy is never
// touched: record a Rewrite event per rewritten commit, move every branch
// pointing at a rewritten commit, and check out the resulting head.
func runPlan(ctx context.Context, r *repo.Context, plan *rewrite.RebasePlan, onDisk bool, opName string) error {
	mode := rewrite.ExecuteInMemory
	if onDisk {
		mode = rewrite.ExecuteOnDisk
	}
	opts := rewrite.ExecuteOptions{Mode: mode, PreserveTimestamps: r.Settings.RestackPreserveTimestamps()}
	result, err := rewrite.Execute(ctx, r.GitDir, r.Algo, plan, opts)
	if err != nil {
		return fmt.Errorf("%s: %w", opName, err)
	}
	if onDisk {
		// The host VCS's own rebase sequencer drives the working copy and
		// its post-rewrite hook performs the event-log bookkeeping and
		// branch/HEAD fixups once it completes.
		return nil
	}
	return finalizeInMemoryRewrite(ctx, r, result, opName)
}

func finalizeInMemoryRewrite(ctx context.Context, r *repo.Context, result *rewrite.ExecuteResult, opName string) error {
	now := float64(time.Now().Unix())
	txID, err := r.Store.MakeTransactionID(ctx, now, opName)
	if err != nil {
		return fmt.Errorf("%s: make transaction: %w", opName, err)
	}
	events := make([]eventlog.Event, 0, len(result.RewrittenOids))
	for old, next := range result.RewrittenOids {
		events = append(events, eventlog.RewriteEvent(txID, now, oid.FromOid(old), next))
	}
	if err := r.Store.AddEvents(ctx, events); err != nil {
		return fmt.Errorf("%s: record rewrite events: %w", opName, err)
	}

	if err := moveBranches(ctx, r.GitDir, result.RewrittenOids); err != nil {
		return fmt.Errorf("%s: move branches: %w", opName, err)
	}

	if headOid, ok := result.HeadOid.Oid(); ok {
		if err := checkoutRev(ctx, r.GitDir, headOid.String()); err != nil {
			return fmt.Errorf("%s: checkout: %w", opName, err)
		}
	}
	return nil
}
