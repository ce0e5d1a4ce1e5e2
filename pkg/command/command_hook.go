// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/antgroup/branchless/modules/git"
	"github.com/antgroup/branchless/modules/oid"
	"github.com/antgroup/branchless/pkg/hooks"
	"github.com/antgroup/branchless/pkg/repo"
)

// Hook is the thin adapter `branchless init` wires into .git/hooks/*: it
// reads each hook's argv/stdin contract and dispatches to the
// corresponding pkg/hooks handler. Cooperating-protocol orchestration that
// isn't pure event-log bookkeeping — moving branches and checking out the
// updated HEAD once a rebase's post-rewrite hook fires — lives here rather
// than in pkg/hooks, since it is adapter responsibility.
type Hook struct {
	Name string   `arg:"" name:"name" help:"Hook name, as invoked by the host VCS"`
	Args []string `arg:"" optional:"" name:"args" help:"Hook-specific positional arguments"`
}

func (c *Hook) Run(g *Globals) error {
	ctx := context.Background()
	worktree := g.CWD
	if worktree == "" {
		worktree = "."
	}
	r, err := repo.Open(ctx, worktree)
	if err != nil {
		return fmt.Errorf("hook %s: open repository: %w", c.Name, err)
	}
	defer r.Close() // nolint

	now := float64(time.Now().Unix())
	switch c.Name {
	case "post-checkout":
		if len(c.Args) < 3 {
			diev("post-checkout: expected <prev> <curr> <is-branch-checkout>")
			return ErrArgRequired
		}
		isBranch := c.Args[2] == "1"
		return hooks.HandlePostCheckout(ctx, r.Store, r.Algo, now, c.Args[0], c.Args[1], isBranch)
	case "post-commit":
		return hooks.HandlePostCommit(ctx, r.Store, r.GitDir, r.WorktreePath, r.Algo, now)
	case "post-merge":
		isSquash := len(c.Args) > 0 && c.Args[0] == "1"
		return hooks.HandlePostMerge(ctx, r.Store, r.GitDir, r.WorktreePath, r.Algo, now, isSquash)
	case "post-applypatch":
		return hooks.HandlePostApplypatch(ctx, r.Store, r.GitDir, r.WorktreePath, r.Algo, now)
	case "post-rewrite":
		if len(c.Args) < 1 {
			diev("post-rewrite: expected <kind>")
			return ErrArgRequired
		}
		return runPostRewrite(ctx, r, now, c.Args[0])
	case "reference-transaction":
		if len(c.Args) < 1 {
			diev("reference-transaction: expected <state>")
			return ErrArgRequired
		}
		_, err := hooks.HandleReferenceTransaction(ctx, r.Store, r.Algo, r.GitDir, now, c.Args[0], os.Stdin)
		return err
	case "pre-auto-gc":
		return hooks.HandlePreAutoGC(ctx, r.Store, r.GitDir)
	default:
		diev("unknown hook %q", c.Name)
		return ErrArgRequired
	}
}

// runPostRewrite implements the post-rewrite hook's event-log bookkeeping
// (HandlePostRewrite) and, when an on-disk rebase registered the
// cooperating protocol (RegisterExtraPostRewriteHook), its final step:
// move every branch pointing at a rewritten commit and check out the
// updated HEAD.
func runPostRewrite(ctx context.Context, r *repo.Context, now float64, kind string) error {
	cooperating := hooks.HasExtraPostRewriteHook(r.GitDir)

	rewrittenListInput, err := hooks.ReadRewrittenListEntries(r.Algo, os.Stdin)
	if err != nil {
		return fmt.Errorf("post-rewrite: %w", err)
	}
	rewritten, err := hooks.HandlePostRewrite(ctx, r.Store, r.Algo, r.GitDir, now, kind, cooperating, rewrittenListInput)
	if err != nil {
		return fmt.Errorf("post-rewrite: %w", err)
	}
	if !cooperating {
		return nil
	}

	byOid := make(map[oid.Oid]oid.Zeroable, len(rewritten))
	for old, next := range rewritten {
		byOid[old.Oid()] = next
	}
	if err := moveBranches(ctx, r.GitDir, byOid); err != nil {
		return fmt.Errorf("post-rewrite: move branches: %w", err)
	}
	if err := checkoutUpdatedHeadAfterHookRewrite(ctx, r.GitDir, r.Algo, rewritten); err != nil {
		return fmt.Errorf("post-rewrite: checkout updated HEAD: %w", err)
	}
	return nil
}

func moveBranches(ctx context.Context, gitDir string, rewritten map[oid.Oid]oid.Zeroable) error {
	if len(rewritten) == 0 {
		return nil
	}
	refs, err := git.ParseReferences(ctx, gitDir, git.OrderNone)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if ref.IsSymbolic || !ref.Name.IsBranch() {
			continue
		}
		target, err := oid.Parse(ref.Target)
		if err != nil {
			continue
		}
		nz, err := oid.NewNonZero(target)
		if err != nil {
			continue
		}
		newOid, ok := rewritten[nz.Oid()]
		if !ok {
			continue
		}
		if newOid.IsZero() {
			if err := git.DeleteRef(ctx, gitDir, ref.Name.String(), ref.Target); err != nil {
				return err
			}
			continue
		}
		newNz, ok := newOid.Oid()
		if !ok {
			continue
		}
		if err := git.UpdateRef(ctx, gitDir, ref.Name.String(), ref.Target, newNz.String(), true); err != nil {
			return err
		}
	}
	return nil
}

func checkoutUpdatedHeadAfterHookRewrite(ctx context.Context, gitDir string, algo oid.Algo, rewritten map[oid.NonZeroOid]oid.Zeroable) error {
	if updated, ok, err := hooks.LoadUpdatedHeadOid(gitDir); err != nil {
		return err
	} else if ok {
		return checkoutRev(ctx, gitDir, updated.String())
	}

	orig, err := hooks.LoadOriginalHeadInfo(algo, gitDir)
	if err != nil {
		return err
	}
	if orig.ReferenceName != "" {
		if _, err := git.ReferenceTarget(ctx, gitDir, string(orig.ReferenceName)); err == nil {
			return checkoutRev(ctx, gitDir, string(orig.ReferenceName))
		}
	}
	if origOid, ok := orig.Oid.NonZero(); ok {
		if newOid, ok := rewritten[origOid]; ok {
			if nz, ok := newOid.Oid(); ok {
				return checkoutRev(ctx, gitDir, nz.String())
			}
		}
		return checkoutRev(ctx, gitDir, origOid.String())
	}
	return checkoutRev(ctx, gitDir, "ORIG_HEAD")
}

func checkoutRev(ctx context.Context, gitDir, rev string) error {
	return git.CheckoutRev(ctx, gitDir, rev)
}
