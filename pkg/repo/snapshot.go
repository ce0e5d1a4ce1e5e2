package repo

import (
	"context"
	"fmt"

	"github.com/antgroup/branchless/modules/dag"
	"github.com/antgroup/branchless/modules/eventlog"
	"github.com/antgroup/branchless/modules/git"
	"github.com/antgroup/branchless/modules/oid"
)

// Snapshot builds a dag.Snapshot rooted at every observed commit, HEAD, and
// every local branch tip, classified against the event log replayed up to
// the store's latest cursor — the read-through cache every query-shaped
// command (smartlog-data, hide, move, restack, reword) operates against.
func (c *Context) Snapshot(ctx context.Context) (*dag.Snapshot, error) {
	refs, err := git.ParseReferences(ctx, c.GitDir, git.OrderNone)
	if err != nil {
		return nil, fmt.Errorf("repo: list references: %w", err)
	}

	var branchTips []oid.Oid
	var mainTip oid.Oid
	hasMain := false
	mainName := git.NewBranchReferenceName(c.Settings.MainBranchName())
	for _, r := range refs {
		if r.IsSymbolic || !r.Name.IsBranch() {
			continue
		}
		o, err := oid.Parse(r.Target)
		if err != nil {
			continue
		}
		branchTips = append(branchTips, o)
		if r.Name == mainName {
			mainTip = o
			hasMain = true
		}
	}

	headHex, _, err := git.RevParseCurrentEx(ctx, nil, c.WorktreePath)
	if err != nil {
		return nil, fmt.Errorf("repo: resolve HEAD: %w", err)
	}
	var headOid oid.Oid
	hasHead := false
	if headHex != "" {
		if o, err := oid.Parse(headHex); err == nil {
			headOid = o
			hasHead = true
		}
	}

	cursor, err := c.Store.LatestCursor(ctx)
	if err != nil {
		return nil, fmt.Errorf("repo: latest cursor: %w", err)
	}
	events, err := c.Store.GetEventsUpTo(ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("repo: replay events: %w", err)
	}

	roots := append([]oid.Oid(nil), branchTips...)
	if hasHead {
		roots = append(roots, headOid)
	}
	for _, e := range events {
		if o := observedOidOf(e); o != nil {
			roots = append(roots, *o)
		}
	}

	snap, err := dag.Build(ctx, c.Graph(), roots)
	if err != nil {
		return nil, fmt.Errorf("repo: build snapshot: %w", err)
	}
	snap.SetBranchCommits(branchTips)
	if hasHead {
		snap.SetHead(headOid)
	}
	if hasMain {
		snap.SetMainBranch(mainTip)
	}
	snap.Classify(events)
	return snap, nil
}

// observedOidOf returns the commit this event brings into the reachability
// root set, if any — the counterpart's own ancestors are pulled in by
// dag.Build's rev-list walk, so only the directly-named OID is needed here.
func observedOidOf(e eventlog.Event) *oid.Oid {
	switch e.Kind {
	case eventlog.KindCommit, eventlog.KindObsolete, eventlog.KindUnobsolete:
		o := e.CommitOid.Oid()
		return &o
	case eventlog.KindRefUpdate:
		if o, ok := e.NewOid.Oid(); ok {
			return &o
		}
	case eventlog.KindRewrite:
		if o, ok := e.NewOid.Oid(); ok {
			return &o
		}
	case eventlog.KindWorkingCopySnapshot:
		if o, ok := e.HeadOid.Oid(); ok {
			return &o
		}
	}
	return nil
}
