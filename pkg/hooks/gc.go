package hooks

import (
	"context"
	"fmt"
	"strings"

	"github.com/antgroup/branchless/modules/eventlog"
	"github.com/antgroup/branchless/modules/git"
	"github.com/antgroup/branchless/modules/oid"
)

const keepRefPrefix = "refs/branchless/keep/"

// observedOids collects every commit OID the event log currently considers
// reachable, replayed up to the store's latest cursor.
func observedOids(ctx context.Context, store *eventlog.Store) (map[string]bool, error) {
	cursor, err := store.LatestCursor(ctx)
	if err != nil {
		return nil, fmt.Errorf("hooks: pre-auto-gc: latest cursor: %w", err)
	}
	events, err := store.GetEventsUpTo(ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("hooks: pre-auto-gc: replay events: %w", err)
	}
	observed := make(map[string]bool)
	mark := func(z oid.Zeroable) {
		if o, ok := z.Oid(); ok {
			observed[o.String()] = true
		}
	}
	for _, e := range events {
		switch e.Kind {
		case eventlog.KindCommit, eventlog.KindObsolete, eventlog.KindUnobsolete:
			observed[e.CommitOid.String()] = true
		case eventlog.KindRefUpdate, eventlog.KindRewrite:
			mark(e.OldOid)
			mark(e.NewOid)
		case eventlog.KindWorkingCopySnapshot:
			mark(e.HeadOid)
		}
	}
	return observed, nil
}

// HandlePreAutoGC implements the `pre-auto-gc` hook: it deletes every
// refs/branchless/keep/<oid> reachability-pinning ref written by
// HandlePostCommit whose target is no longer observed per the event log,
// so the host VCS's own garbage collector only reclaims commits this tool
// no longer needs to protect, then lets gc proceed.
func HandlePreAutoGC(ctx context.Context, store *eventlog.Store, gitDir string) error {
	observed, err := observedOids(ctx, store)
	if err != nil {
		return err
	}
	refs, err := git.ParseReferences(ctx, gitDir, git.OrderNone)
	if err != nil {
		return fmt.Errorf("hooks: pre-auto-gc: list references: %w", err)
	}
	for _, r := range refs {
		name := string(r.Name)
		if !strings.HasPrefix(name, keepRefPrefix) {
			continue
		}
		target := strings.TrimPrefix(name, keepRefPrefix)
		if observed[target] {
			continue
		}
		if err := git.DeleteRef(ctx, gitDir, name, r.Target); err != nil {
			return fmt.Errorf("hooks: pre-auto-gc: delete %s: %w", name, err)
		}
	}
	return nil
}
