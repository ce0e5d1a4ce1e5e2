package dag

import (
	"github.com/antgroup/branchless/modules/oid"
	"github.com/emirpasic/gods/sets/hashset"
)

// CommitSet is an opaque, snapshot-scoped named set of commits: the
// distilled spec's `observed_commits`, `public_commits`, etc. are all
// values of this type. Two CommitSets must share the same Snapshot for
// the set operations below to make sense; mixing snapshots panics via an
// out-of-range arena index rather than silently returning garbage.
type CommitSet struct {
	snap    *Snapshot
	members *hashset.Set
}

// Contains reports whether o is a member of the set.
func (cs CommitSet) Contains(o oid.Oid) bool {
	i, ok := cs.snap.lookup(o)
	if !ok {
		return false
	}
	return cs.members.Contains(i)
}

// Len reports the number of members.
func (cs CommitSet) Len() int {
	if cs.members == nil {
		return 0
	}
	return cs.members.Size()
}

// Oids returns the set's members as a deterministically ordered slice.
func (cs CommitSet) Oids() []oid.Oid {
	if cs.members == nil {
		return nil
	}
	return cs.snap.sortedOids(cs.members)
}

// Union returns the members present in either set.
func (cs CommitSet) Union(other CommitSet) CommitSet {
	out := cs.snap.newSet()
	for _, v := range cs.members.Values() {
		out.members.Add(v)
	}
	for _, v := range other.members.Values() {
		out.members.Add(v)
	}
	return out
}

// Diff returns the members of cs not present in other.
func (cs CommitSet) Diff(other CommitSet) CommitSet {
	return cs.snap.diff(cs, other)
}

// Intersect returns the members present in both sets.
func (cs CommitSet) Intersect(other CommitSet) CommitSet {
	return cs.snap.intersect(cs, other)
}

// Add returns a new set equal to cs with o inserted, if o is known to the
// snapshot.
func (cs CommitSet) Add(o oid.Oid) CommitSet {
	out := cs.snap.newSet()
	for _, v := range cs.members.Values() {
		out.members.Add(v)
	}
	if i, ok := cs.snap.lookup(o); ok {
		out.members.Add(i)
	}
	return out
}
