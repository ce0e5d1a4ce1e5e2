// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"time"

	"github.com/antgroup/branchless/modules/eventlog"
	"github.com/antgroup/branchless/pkg/repo"
)

// Hide marks a commit obsolete directly, with no rebase involved: it drops
// out of the default smartlog view until Unhide or a rewrite resurrects it.
type Hide struct {
	Commit string `arg:"" name:"commit" help:"Commit to hide"`
}

func (c *Hide) Run(g *Globals) error {
	return recordObsoleteEvent(g, c.Commit, true)
}

// Unhide reverses a prior Hide (or a rewrite's implicit obsolescence
// marking), making the commit visible in the smartlog again.
type Unhide struct {
	Commit string `arg:"" name:"commit" help:"Commit to unhide"`
}

func (c *Unhide) Run(g *Globals) error {
	return recordObsoleteEvent(g, c.Commit, false)
}

func recordObsoleteEvent(g *Globals, arg string, obsolete bool) error {
	ctx := context.Background()
	worktree := g.CWD
	if worktree == "" {
		worktree = "."
	}
	r, err := repo.Open(ctx, worktree)
	if err != nil {
		return fmt.Errorf("hide: open repository: %w", err)
	}
	defer r.Close() // nolint

	target, err := resolveToNonZeroOid(ctx, r, arg)
	if err != nil {
		return fmt.Errorf("hide: resolve %q: %w", arg, err)
	}

	hookName := "hide"
	if !obsolete {
		hookName = "unhide"
	}
	now := float64(time.Now().Unix())
	txID, err := r.Store.MakeTransactionID(ctx, now, hookName)
	if err != nil {
		return fmt.Errorf("%s: make transaction: %w", hookName, err)
	}
	var event eventlog.Event
	if obsolete {
		event = eventlog.ObsoleteEvent(txID, now, target)
	} else {
		event = eventlog.UnobsoleteEvent(txID, now, target)
	}
	return r.Store.AddEvents(ctx, []eventlog.Event{event})
}
