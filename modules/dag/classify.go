package dag

import (
	"github.com/antgroup/branchless/modules/eventlog"
	"github.com/antgroup/branchless/modules/oid"
)

// obsolescenceEvent records, for a single commit, which kind of event most
// recently touched its obsolescence state and in what append order.
type obsolescenceEvent struct {
	order int
	kind  eventlog.Kind
}

// Classify derives the observed/obsolete/public/draft classification for
// every commit in s from events (assumed already trimmed to a cursor by
// the caller via eventlog.Store.GetEventsUpTo) and records it on s.
//
// Observed: commit mentioned in Commit, RefUpdate.new_oid, Rewrite.{old,new},
// or WorkingCopySnapshot.commit_oid.
//
// Obsolete: the most recent obsolescence-affecting event for the commit is
// Rewrite (as the old side) or Obsolete, not a later Unobsolete, Commit, or
// RefUpdate naming it as the new side.
func (s *Snapshot) Classify(events []eventlog.Event) {
	observed := s.newSet()
	latest := make(map[idx]*obsolescenceEvent)

	observe := func(o oid.Oid, order int, kind eventlog.Kind) {
		i, ok := s.internIfKnown(o)
		if !ok {
			return
		}
		observed.members.Add(i)
		recordLatest(latest, i, order, kind)
	}
	touch := func(o oid.Oid, order int, kind eventlog.Kind) {
		i, ok := s.internIfKnown(o)
		if !ok {
			return
		}
		recordLatest(latest, i, order, kind)
	}

	for order, e := range events {
		switch e.Kind {
		case eventlog.KindCommit:
			observe(e.CommitOid.Oid(), order, e.Kind)
		case eventlog.KindObsolete, eventlog.KindUnobsolete:
			touch(e.CommitOid.Oid(), order, e.Kind)
		case eventlog.KindRefUpdate:
			if o, ok := e.NewOid.Oid(); ok {
				observe(o, order, e.Kind)
			}
		case eventlog.KindRewrite:
			if o, ok := e.OldOid.Oid(); ok {
				touch(o, order, e.Kind)
			}
			if o, ok := e.NewOid.Oid(); ok {
				// The new side of a rewrite is live: record it with a
				// non-obsoleting kind so it is observed but not obsolete.
				observe(o, order, eventlog.KindCommit)
			}
		case eventlog.KindWorkingCopySnapshot:
			observe(e.CommitOid.Oid(), order, e.Kind)
		}
	}

	obsolete := s.newSet()
	for i, le := range latest {
		if le.kind == eventlog.KindRewrite || le.kind == eventlog.KindObsolete {
			obsolete.members.Add(i)
		}
	}

	s.observed = observed
	s.obsolete = obsolete

	if o, ok := s.MainBranchCommit(); ok {
		s.public = s.Ancestors(s.SetOf(o))
	} else {
		s.public = s.newSet()
	}
}

// recordLatest overwrites the obsolescence-tracking entry for i if order is
// the newest seen so far; events are walked in append order, so the last
// write for a given commit wins, matching "most recent event mentioning c".
func recordLatest(latest map[idx]*obsolescenceEvent, i idx, order int, kind eventlog.Kind) {
	if cur, ok := latest[i]; !ok || order >= cur.order {
		latest[i] = &obsolescenceEvent{order: order, kind: kind}
	}
}

// internIfKnown resolves o against the arena without creating new entries:
// events may reference commits that fell outside the snapshot's root set
// (e.g. a long-rewritten ancestor); those are simply not classified.
func (s *Snapshot) internIfKnown(o oid.Oid) (idx, bool) {
	return s.lookup(o)
}

// ObservedCommits is the named set of every commit mentioned by the event
// log under the current classification.
func (s *Snapshot) ObservedCommits() CommitSet { return s.observed }

// ObsoleteCommits is the named set of commits whose most recent
// obsolescence-affecting event marks them obsolete.
func (s *Snapshot) ObsoleteCommits() CommitSet { return s.obsolete }

// PublicCommits is ancestors({main_branch_tip}).
func (s *Snapshot) PublicCommits() CommitSet { return s.public }

// DraftCommits is observed \ public.
func (s *Snapshot) DraftCommits() CommitSet {
	return s.observed.Diff(s.public)
}

// BranchCommits is the named set of commits any tracked local branch
// currently points at.
func (s *Snapshot) BranchCommits() CommitSet { return s.branch }

// SetBranchCommits records the current local-branch tip set, supplied by
// the caller from a reference snapshot (branch membership is not itself
// derived from the event log).
func (s *Snapshot) SetBranchCommits(tips []oid.Oid) {
	s.branch = s.SetOf(tips...)
}

// FilterVisibleCommits implements `S \ {obsolete commits whose obsolescence
// is not manually overridden}`. This snapshot has no manual-override
// bookkeeping of its own (that belongs to the command layer); callers that
// need to override specific commits should Add them back in afterward.
func (s *Snapshot) FilterVisibleCommits(set CommitSet) CommitSet {
	return set.Diff(s.obsolete)
}

// ClearObsoleteCommits returns a sibling Snapshot sharing this one's arena
// but with obsolescence classification suppressed, for "current" queries
// that must follow rewrites regardless of obsolescence.
func (s *Snapshot) ClearObsoleteCommits() *Snapshot {
	clone := *s
	clone.obsolete = s.newSet()
	return &clone
}

// ActiveHeads computes the smartlog head set: observed ∪ {HEAD} ∪
// branch_commits, minus commits dominated only by obsolete commits, pruned
// to maximal elements.
func (s *Snapshot) ActiveHeads() CommitSet {
	base := s.observed.Union(s.branch)
	if h, ok := s.HeadCommit(); ok {
		base = base.Add(h)
	}
	visible := s.FilterVisibleCommits(base)
	return s.Heads(visible)
}
