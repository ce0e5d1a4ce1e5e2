// Package dag implements the commit DAG service: a queryable view of the
// commit graph, interning OIDs to small integers so that the cyclic
// parent/child structure can be walked as plain index slices instead of a
// web of pointers.
package dag

import (
	"context"
	"fmt"
	"sort"

	"github.com/antgroup/branchless/modules/oid"
	"github.com/emirpasic/gods/sets/hashset"
	"github.com/emirpasic/gods/sets/treeset"
)

// idx is an arena-local commit index. Only Snapshot and its CommitSets deal
// in idx; every other package sees oid.Oid at the API boundary.
type idx int32

// HostGraph is the subset of the host VCS the arena needs to build itself:
// a bulk parents-of-roots query.
type HostGraph interface {
	ParentsOf(ctx context.Context, roots []string) (map[string][]string, error)
}

// Snapshot is a read-through cache derived from (host VCS, event log) at a
// single instant; it holds no durable state of its own and may be
// recomputed at any time.
type Snapshot struct {
	oids     []oid.Oid
	byOid    map[oid.Oid]idx
	parents  [][]idx
	children [][]idx

	mainBranch idx
	hasMain    bool
	head       idx
	hasHead    bool

	observed CommitSet
	obsolete CommitSet
	public   CommitSet
	branch   CommitSet
}

// Build walks the host VCS's reachability graph from roots (typically the
// union of observed commits, HEAD, and every local branch tip) and interns
// every commit reached into the arena.
func Build(ctx context.Context, host HostGraph, roots []oid.Oid) (*Snapshot, error) {
	rootHex := make([]string, 0, len(roots))
	for _, r := range roots {
		rootHex = append(rootHex, r.String())
	}
	raw, err := host.ParentsOf(ctx, rootHex)
	if err != nil {
		return nil, fmt.Errorf("dag: build snapshot: %w", err)
	}

	s := &Snapshot{byOid: make(map[oid.Oid]idx, len(raw))}
	internOf := func(hex string) idx {
		o, err := oid.Parse(hex)
		if err != nil {
			return -1
		}
		if i, ok := s.byOid[o]; ok {
			return i
		}
		i := idx(len(s.oids))
		s.oids = append(s.oids, o)
		s.byOid[o] = i
		s.parents = append(s.parents, nil)
		s.children = append(s.children, nil)
		return i
	}

	for hex, parentHexes := range raw {
		i := internOf(hex)
		for _, p := range parentHexes {
			pi := internOf(p)
			if pi < 0 || i < 0 {
				continue
			}
			s.parents[i] = append(s.parents[i], pi)
			s.children[pi] = append(s.children[pi], i)
		}
	}
	return s, nil
}

func (s *Snapshot) lookup(o oid.Oid) (idx, bool) {
	i, ok := s.byOid[o]
	return i, ok
}

// SetMainBranch records which interned commit is the configured main
// branch's tip; Build itself is agnostic to branch naming.
func (s *Snapshot) SetMainBranch(o oid.Oid) {
	if i, ok := s.lookup(o); ok {
		s.mainBranch, s.hasMain = i, true
	}
}

// SetHead records HEAD's commit.
func (s *Snapshot) SetHead(o oid.Oid) {
	if i, ok := s.lookup(o); ok {
		s.head, s.hasHead = i, true
	}
}

// MainBranchCommit returns the main branch tip, if known to this snapshot.
func (s *Snapshot) MainBranchCommit() (oid.Oid, bool) {
	if !s.hasMain {
		return oid.Oid{}, false
	}
	return s.oids[s.mainBranch], true
}

// HeadCommit returns HEAD's commit, if known to this snapshot.
func (s *Snapshot) HeadCommit() (oid.Oid, bool) {
	if !s.hasHead {
		return oid.Oid{}, false
	}
	return s.oids[s.head], true
}

// newSet builds an empty CommitSet bound to this snapshot.
func (s *Snapshot) newSet() CommitSet {
	return CommitSet{snap: s, members: hashset.New()}
}

// SetOf builds a CommitSet containing exactly the given OIDs that exist in
// this snapshot; unknown OIDs are silently dropped rather than erroring.
func (s *Snapshot) SetOf(oids ...oid.Oid) CommitSet {
	set := s.newSet()
	for _, o := range oids {
		if i, ok := s.lookup(o); ok {
			set.members.Add(i)
		}
	}
	return set
}

// Parents returns the union of direct parents of every commit in S.
func (s *Snapshot) Parents(set CommitSet) CommitSet {
	out := s.newSet()
	for _, v := range set.members.Values() {
		for _, p := range s.parents[v.(idx)] {
			out.members.Add(p)
		}
	}
	return out
}

// Children returns the union of direct children of every commit in S.
func (s *Snapshot) Children(set CommitSet) CommitSet {
	out := s.newSet()
	for _, v := range set.members.Values() {
		for _, c := range s.children[v.(idx)] {
			out.members.Add(c)
		}
	}
	return out
}

// Ancestors returns S plus every commit reachable by following parent
// edges from S.
func (s *Snapshot) Ancestors(set CommitSet) CommitSet {
	return s.walk(set, func(i idx) []idx { return s.parents[i] })
}

// Descendants returns S plus every commit reachable by following child
// edges from S.
func (s *Snapshot) Descendants(set CommitSet) CommitSet {
	return s.walk(set, func(i idx) []idx { return s.children[i] })
}

func idxComparator(a, b interface{}) int {
	ai, bi := a.(idx), b.(idx)
	switch {
	case ai < bi:
		return -1
	case ai > bi:
		return 1
	default:
		return 0
	}
}

// walk is a worklist BFS over an ordered frontier: using a treeset instead
// of a plain slice/channel queue keeps the traversal order deterministic
// (ascending arena index) regardless of map iteration order elsewhere,
// without needing a second sort pass for every caller.
func (s *Snapshot) walk(start CommitSet, next func(idx) []idx) CommitSet {
	out := s.newSet()
	frontier := treeset.NewWith(idxComparator)
	for _, v := range start.members.Values() {
		i := v.(idx)
		if !out.members.Contains(i) {
			out.members.Add(i)
			frontier.Add(i)
		}
	}
	for !frontier.Empty() {
		i := frontier.Values()[0].(idx)
		frontier.Remove(i)
		for _, n := range next(i) {
			if !out.members.Contains(n) {
				out.members.Add(n)
				frontier.Add(n)
			}
		}
	}
	return out
}

// Roots returns the commits in S with no parent that is also in S.
func (s *Snapshot) Roots(set CommitSet) CommitSet {
	out := s.newSet()
	for _, v := range set.members.Values() {
		i := v.(idx)
		isRoot := true
		for _, p := range s.parents[i] {
			if set.members.Contains(p) {
				isRoot = false
				break
			}
		}
		if isRoot {
			out.members.Add(i)
		}
	}
	return out
}

// Heads returns the commits in S that are not an ancestor (within S) of
// any other commit in S — i.e. S pruned to its maximal elements.
func (s *Snapshot) Heads(set CommitSet) CommitSet {
	out := s.newSet()
	for _, v := range set.members.Values() {
		i := v.(idx)
		isHead := true
		for _, other := range set.members.Values() {
			j := other.(idx)
			if j == i {
				continue
			}
			if s.isAncestorIdx(i, j) {
				isHead = false
				break
			}
		}
		if isHead {
			out.members.Add(i)
		}
	}
	return out
}

// IsAncestor reports whether a is an ancestor of (or equal to) b.
func (s *Snapshot) IsAncestor(a, b oid.Oid) bool {
	ai, aok := s.lookup(a)
	bi, bok := s.lookup(b)
	if !aok || !bok {
		return false
	}
	return s.isAncestorIdx(ai, bi)
}

func (s *Snapshot) isAncestorIdx(a, b idx) bool {
	if a == b {
		return true
	}
	visited := hashset.New()
	queue := []idx{b}
	visited.Add(b)
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		for _, p := range s.parents[i] {
			if p == a {
				return true
			}
			if !visited.Contains(p) {
				visited.Add(p)
				queue = append(queue, p)
			}
		}
	}
	return false
}

// Range returns the commits on some path from a to b: ancestors(b) that
// are also descendants of a (inclusive of both endpoints).
func (s *Snapshot) Range(a, b oid.Oid) CommitSet {
	ai, aok := s.lookup(a)
	bi, bok := s.lookup(b)
	if !aok || !bok {
		return s.newSet()
	}
	descA := s.Descendants(CommitSet{snap: s, members: setOf(ai)})
	ancB := s.Ancestors(CommitSet{snap: s, members: setOf(bi)})
	return s.intersect(descA, ancB)
}

// Only returns the commits that are ancestors of b but not ancestors of a
// — the "b not in a" side of a symmetric-difference-style range query,
// matching the distilled spec's `only(a, b)`.
func (s *Snapshot) Only(a, b oid.Oid) CommitSet {
	ai, aok := s.lookup(a)
	bi, bok := s.lookup(b)
	if !bok {
		return s.newSet()
	}
	ancB := s.Ancestors(CommitSet{snap: s, members: setOf(bi)})
	if !aok {
		return ancB
	}
	ancA := s.Ancestors(CommitSet{snap: s, members: setOf(ai)})
	return s.diff(ancB, ancA)
}

// GcaOne returns one greatest common ancestor of S: a maximal element of
// the intersection of all members' ancestor sets.
func (s *Snapshot) GcaOne(set CommitSet) (oid.Oid, bool) {
	values := set.members.Values()
	if len(values) == 0 {
		return oid.Oid{}, false
	}
	common := s.Ancestors(CommitSet{snap: s, members: setOf(values[0].(idx))})
	for _, v := range values[1:] {
		anc := s.Ancestors(CommitSet{snap: s, members: setOf(v.(idx))})
		common = s.intersect(common, anc)
	}
	heads := s.Heads(common)
	hv := heads.members.Values()
	if len(hv) == 0 {
		return oid.Oid{}, false
	}
	return s.oids[hv[0].(idx)], true
}

// FirstAncestorNth walks the first-parent chain from v, n times.
func (s *Snapshot) FirstAncestorNth(v oid.Oid, n int) (oid.Oid, bool) {
	i, ok := s.lookup(v)
	if !ok {
		return oid.Oid{}, false
	}
	for ; n > 0; n-- {
		if len(s.parents[i]) == 0 {
			return oid.Oid{}, false
		}
		i = s.parents[i][0]
	}
	return s.oids[i], true
}

// ConnectedComponents partitions S into weakly-connected components
// (treating parent/child edges as undirected).
func (s *Snapshot) ConnectedComponents(set CommitSet) []CommitSet {
	remaining := hashset.New()
	for _, v := range set.members.Values() {
		remaining.Add(v)
	}
	var components []CommitSet
	for !remaining.Empty() {
		start := remaining.Values()[0].(idx)
		comp := s.newSet()
		queue := []idx{start}
		comp.members.Add(start)
		remaining.Remove(start)
		for len(queue) > 0 {
			i := queue[0]
			queue = queue[1:]
			neighbors := append(append([]idx(nil), s.parents[i]...), s.children[i]...)
			for _, n := range neighbors {
				if set.members.Contains(n) && !comp.members.Contains(n) {
					comp.members.Add(n)
					remaining.Remove(n)
					queue = append(queue, n)
				}
			}
		}
		components = append(components, comp)
	}
	return components
}

func (s *Snapshot) intersect(a, b CommitSet) CommitSet {
	out := s.newSet()
	for _, v := range a.members.Values() {
		if b.members.Contains(v) {
			out.members.Add(v)
		}
	}
	return out
}

func (s *Snapshot) diff(a, b CommitSet) CommitSet {
	out := s.newSet()
	for _, v := range a.members.Values() {
		if !b.members.Contains(v) {
			out.members.Add(v)
		}
	}
	return out
}

func setOf(i idx) *hashset.Set {
	set := hashset.New()
	set.Add(i)
	return set
}

// sortedOids returns the OIDs of a set of idx values in a deterministic
// (lexicographic hex) sequence, used only for display-facing output.
func (s *Snapshot) sortedOids(members *hashset.Set) []oid.Oid {
	values := members.Values()
	out := make([]oid.Oid, 0, len(values))
	for _, v := range values {
		out = append(out, s.oids[v.(idx)])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
