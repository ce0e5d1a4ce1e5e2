// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/antgroup/branchless/modules/dag"
	"github.com/antgroup/branchless/pkg/repo"
)

// SmartlogData dumps the current snapshot's named commit sets as JSON, for
// an external renderer to lay out (the renderer itself is out of scope
// here): observed, obsolete, public, draft, branch, and active-head
// commits, plus HEAD and the main branch tip when known.
type SmartlogData struct{}

type smartlogDataOutput struct {
	Head         string   `json:"head,omitempty"`
	MainBranch   string   `json:"main_branch,omitempty"`
	Observed     []string `json:"observed"`
	Obsolete     []string `json:"obsolete"`
	Public       []string `json:"public"`
	Draft        []string `json:"draft"`
	Branch       []string `json:"branch"`
	ActiveHeads  []string `json:"active_heads"`
}

func (c *SmartlogData) Run(g *Globals) error {
	ctx := context.Background()
	worktree := g.CWD
	if worktree == "" {
		worktree = "."
	}
	r, err := repo.Open(ctx, worktree)
	if err != nil {
		return fmt.Errorf("smartlog-data: open repository: %w", err)
	}
	defer r.Close() // nolint

	snap, err := r.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("smartlog-data: build snapshot: %w", err)
	}

	out := smartlogDataOutput{
		Observed:    stringsOf(snap.ObservedCommits()),
		Obsolete:    stringsOf(snap.ObsoleteCommits()),
		Public:      stringsOf(snap.PublicCommits()),
		Draft:       stringsOf(snap.DraftCommits()),
		Branch:      stringsOf(snap.BranchCommits()),
		ActiveHeads: stringsOf(snap.ActiveHeads()),
	}
	if h, ok := snap.HeadCommit(); ok {
		out.Head = h.String()
	}
	if m, ok := snap.MainBranchCommit(); ok {
		out.MainBranch = m.String()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func stringsOf(set dag.CommitSet) []string {
	oids := set.Oids()
	out := make([]string, len(oids))
	for i, o := range oids {
		out[i] = o.String()
	}
	return out
}
