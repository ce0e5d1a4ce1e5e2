package dag

import (
	"github.com/antgroup/branchless/modules/eventlog"
	"github.com/antgroup/branchless/modules/oid"
)

// rewriteMap projects events into a single old->new map, keeping only the
// latest Rewrite seen for a given old OID (later rewrites of the same
// commit, e.g. after an aborted-then-retried operation, must win).
func rewriteMap(events []eventlog.Event) map[oid.Oid]oid.Zeroable {
	m := make(map[oid.Oid]oid.Zeroable)
	for _, e := range events {
		if e.Kind != eventlog.KindRewrite {
			continue
		}
		old, ok := e.OldOid.Oid()
		if !ok {
			continue
		}
		m[old] = e.NewOid
	}
	return m
}

// FindRewriteTarget walks forward through events (assumed already trimmed
// to the cursor of interest), following each Rewrite{old, new} chain
// starting at target. It terminates at Zero (the commit was deleted) or at
// an OID with no further rewrite.
func FindRewriteTarget(events []eventlog.Event, target oid.Oid) oid.Zeroable {
	m := rewriteMap(events)
	current := target
	visited := map[oid.Oid]bool{}
	for {
		if visited[current] {
			// A cycle can only arise from a malformed event log; stop
			// rather than loop forever, yielding the last good value.
			return oid.FromOid(current)
		}
		visited[current] = true
		next, ok := m[current]
		if !ok {
			return oid.FromOid(current)
		}
		if next.IsZero() {
			return next
		}
		nextOid, _ := next.Oid()
		current = nextOid
	}
}

// FindAbandonedChildren computes children(old_oid) \ ancestors(new_oid),
// projected through any further rewrites, where new_oid is old_oid's
// rewrite target per events. Feeds the post-rewrite restack warning.
func (s *Snapshot) FindAbandonedChildren(events []eventlog.Event, oldOid oid.Oid) CommitSet {
	target := FindRewriteTarget(events, oldOid)
	children := s.Children(s.SetOf(oldOid))
	if target.IsZero() {
		return children
	}
	newOid, _ := target.Oid()
	return children.Diff(s.Ancestors(s.SetOf(newOid)))
}
