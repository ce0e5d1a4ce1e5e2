package rewrite

import (
	"context"
	"testing"

	"github.com/antgroup/branchless/modules/dag"
	"github.com/antgroup/branchless/modules/oid"
	"github.com/stretchr/testify/require"
)

// buildForkedGraph builds:
//
//	root(0) -- a(1) -- b(2) -- c(3)   (chain to move, head c)
//	     \
//	      m(4) -- n(5)                (destination branch, head n)
func buildForkedGraph(t *testing.T) (*dag.Snapshot, map[string]oid.Oid) {
	t.Helper()
	root, a, b, c := oidN(0), oidN(1), oidN(2), oidN(3)
	m, n := oidN(4), oidN(5)
	host := &fakeHost{parents: map[string][]string{
		c.String():    {b.String()},
		b.String():    {a.String()},
		a.String():    {root.String()},
		n.String():    {m.String()},
		m.String():    {root.String()},
		root.String(): nil,
	}}
	snap, err := dag.Build(context.Background(), host, []oid.Oid{c, n})
	require.NoError(t, err)
	return snap, map[string]oid.Oid{"root": root, "a": a, "b": b, "c": c, "m": m, "n": n}
}

func toNonZero(t *testing.T, o oid.Oid) oid.NonZeroOid {
	t.Helper()
	n, err := oid.NewNonZero(o)
	require.NoError(t, err)
	return n
}

func TestBuildRebasePlanLinearMove(t *testing.T) {
	snap, c := buildForkedGraph(t)
	reqs := BuildRequests{Moves: []MoveRequest{{Source: toNonZero(t, c["a"]), Dest: toNonZero(t, c["n"])}}}

	plan, err := BuildRebasePlan(context.Background(), snap, "", oid.AlgoSHA1, NewRebasePlanPermissions(false), reqs, nil, 0)
	require.NoError(t, err)
	require.NotNil(t, plan)
	require.True(t, plan.Onto.Oid().Equal(c["n"]))
	require.Len(t, plan.Steps, 3)
	require.Equal(t, StepPick, plan.Steps[0].Kind)
	require.True(t, plan.Steps[0].Commit.Oid().Equal(c["a"]))
	require.True(t, plan.Steps[1].Commit.Oid().Equal(c["b"]))
	require.True(t, plan.Steps[2].Commit.Oid().Equal(c["c"]))
}

func TestBuildRebasePlanAppliesFixupsAndRewords(t *testing.T) {
	snap, c := buildForkedGraph(t)
	reqs := BuildRequests{
		Moves:   []MoveRequest{{Source: toNonZero(t, c["a"]), Dest: toNonZero(t, c["n"])}},
		Fixups:  map[oid.Oid]bool{c["b"]: true},
		Rewords: map[oid.Oid]string{c["c"]: "better message"},
	}

	plan, err := BuildRebasePlan(context.Background(), snap, "", oid.AlgoSHA1, NewRebasePlanPermissions(false), reqs, nil, 0)
	require.NoError(t, err)
	require.Equal(t, StepPick, plan.Steps[0].Kind)
	require.Equal(t, StepFixup, plan.Steps[1].Kind)
	require.Equal(t, StepReword, plan.Steps[2].Kind)
	require.Equal(t, "better message", plan.Steps[2].Message)
}

// TestBuildRebasePlanRejectsMovingWholeHistoryOntoItself moves the graph's
// single root (and so, by MoveSubtree, every commit in it) onto one of its
// own descendants: the destination is unavoidably inside the moved set and
// has no ancestor outside it, so the cycle break has nothing to land on.
func TestBuildRebasePlanRejectsMovingWholeHistoryOntoItself(t *testing.T) {
	snap, c := buildForkedGraph(t)
	reqs := BuildRequests{Moves: []MoveRequest{{Source: toNonZero(t, c["root"]), Dest: toNonZero(t, c["n"])}}}

	_, err := BuildRebasePlan(context.Background(), snap, "", oid.AlgoSHA1, NewRebasePlanPermissions(false), reqs, nil, 0)
	var constraintErr *ConstraintError
	require.ErrorAs(t, err, &constraintErr)
}

func TestBuildRebasePlanRefusesPublicCommitsWithoutForce(t *testing.T) {
	snap, c := buildForkedGraph(t)
	snap.SetMainBranch(c["b"])
	snap.Classify(nil)

	reqs := BuildRequests{Moves: []MoveRequest{{Source: toNonZero(t, c["a"]), Dest: toNonZero(t, c["n"])}}}
	_, err := BuildRebasePlan(context.Background(), snap, "", oid.AlgoSHA1, NewRebasePlanPermissions(false), reqs, nil, 0)
	var constraintErr *ConstraintError
	require.ErrorAs(t, err, &constraintErr)

	plan, err := BuildRebasePlan(context.Background(), snap, "", oid.AlgoSHA1, NewRebasePlanPermissions(true), reqs, nil, 0)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 3)
}

func TestBuildRebasePlanEmptyMovesReturnsNil(t *testing.T) {
	snap, _ := buildForkedGraph(t)
	plan, err := BuildRebasePlan(context.Background(), snap, "", oid.AlgoSHA1, nil, BuildRequests{}, nil, 0)
	require.NoError(t, err)
	require.Nil(t, plan)
}

func TestBuildRebasePlanResetsBetweenIndependentMoves(t *testing.T) {
	snap, c := buildForkedGraph(t)
	reqs := BuildRequests{Moves: []MoveRequest{
		{Source: toNonZero(t, c["a"]), Dest: toNonZero(t, c["n"])},
		{Source: toNonZero(t, c["m"]), Dest: toNonZero(t, c["root"])},
	}}

	plan, err := BuildRebasePlan(context.Background(), snap, "", oid.AlgoSHA1, NewRebasePlanPermissions(false), reqs, nil, 0)
	require.NoError(t, err)

	// a, b, c picked; label; reset to root; m, n picked.
	require.Len(t, plan.Steps, 7)
	require.Equal(t, StepLabel, plan.Steps[3].Kind)
	require.Equal(t, StepReset, plan.Steps[4].Kind)
	require.Equal(t, c["root"].String(), plan.Steps[4].Label)
	require.Equal(t, StepPick, plan.Steps[5].Kind)
	require.True(t, plan.Steps[5].Commit.Oid().Equal(c["m"]))
	require.Equal(t, StepPick, plan.Steps[6].Kind)
	require.True(t, plan.Steps[6].Commit.Oid().Equal(c["n"]))
}

func TestFirstParentOfRoot(t *testing.T) {
	snap, c := buildForkedGraph(t)
	require.True(t, firstParentOf(snap, c["root"]).IsZero())
	require.True(t, firstParentOf(snap, c["a"]).Equal(c["root"]))
}

// buildBranchingSubtreeGraph builds:
//
//	root(0) -- x(1) -- p(2) -- q(3)     (one arm of the subtree rooted at x)
//	             \---- r(4) -- s(5)     (the other arm)
//	root(0) -- y(6) -- z(7)             (an unrelated destination branch)
func buildBranchingSubtreeGraph(t *testing.T) (*dag.Snapshot, map[string]oid.Oid) {
	t.Helper()
	root, x, p, q, r, s, y, z := oidN(0), oidN(1), oidN(2), oidN(3), oidN(4), oidN(5), oidN(6), oidN(7)
	host := &fakeHost{parents: map[string][]string{
		x.String():    {root.String()},
		p.String():    {x.String()},
		q.String():    {p.String()},
		r.String():    {x.String()},
		s.String():    {r.String()},
		y.String():    {root.String()},
		z.String():    {y.String()},
		root.String(): nil,
	}}
	snap, err := dag.Build(context.Background(), host, []oid.Oid{q, s, z})
	require.NoError(t, err)
	return snap, map[string]oid.Oid{"root": root, "x": x, "p": p, "q": q, "r": r, "s": s, "y": y, "z": z}
}

// buildMergeRootGraph builds a subtree whose root b is a merge commit of a
// (the chain being moved) and y (an unrelated branch left behind):
//
//	root(0) -- a(1) -- b(3, merges a and y) -- c(4)
//	root(0) -- y(2) ---/
//	root(0) -- w(5) -- z(6)   (destination branch)
func buildMergeRootGraph(t *testing.T) (*dag.Snapshot, map[string]oid.Oid) {
	t.Helper()
	root, a, y, b, c2, w, z := oidN(0), oidN(1), oidN(2), oidN(3), oidN(4), oidN(5), oidN(6)
	host := &fakeHost{parents: map[string][]string{
		a.String():    {root.String()},
		y.String():    {root.String()},
		b.String():    {a.String(), y.String()},
		c2.String():   {b.String()},
		w.String():    {root.String()},
		z.String():    {w.String()},
		root.String(): nil,
	}}
	snap, err := dag.Build(context.Background(), host, []oid.Oid{c2, z})
	require.NoError(t, err)
	return snap, map[string]oid.Oid{"root": root, "a": a, "y": y, "b": b, "c": c2, "w": w, "z": z}
}

func TestBuildRebasePlanMoveSubtreePreservesBranches(t *testing.T) {
	snap, c := buildBranchingSubtreeGraph(t)
	reqs := BuildRequests{Moves: []MoveRequest{{Kind: MoveSubtree, Source: toNonZero(t, c["x"]), Dest: toNonZero(t, c["z"])}}}

	plan, err := BuildRebasePlan(context.Background(), snap, "", oid.AlgoSHA1, NewRebasePlanPermissions(false), reqs, nil, 0)
	require.NoError(t, err)
	require.True(t, plan.Onto.Oid().Equal(c["z"]))

	var picks []oid.Oid
	var labels, resets int
	for _, step := range plan.Steps {
		switch step.Kind {
		case StepPick:
			picks = append(picks, step.Commit.Oid())
		case StepLabel:
			labels++
		case StepReset:
			resets++
		}
	}
	require.Len(t, picks, 5) // x, p, q, r, s
	require.True(t, picks[0].Equal(c["x"]))
	require.Equal(t, 1, labels)
	require.Equal(t, 2, resets)
}

func TestBuildRebasePlanMoveCommitLeavesChildrenInPlace(t *testing.T) {
	snap, c := buildForkedGraph(t)
	reqs := BuildRequests{Moves: []MoveRequest{{Kind: MoveCommit, Source: toNonZero(t, c["a"]), Dest: toNonZero(t, c["n"])}}}

	plan, err := BuildRebasePlan(context.Background(), snap, "", oid.AlgoSHA1, NewRebasePlanPermissions(false), reqs, nil, 0)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	require.Equal(t, StepPick, plan.Steps[0].Kind)
	require.True(t, plan.Steps[0].Commit.Oid().Equal(c["a"]))
}

func TestBuildRebasePlanMoveRangeLinear(t *testing.T) {
	snap, c := buildForkedGraph(t)
	reqs := BuildRequests{Moves: []MoveRequest{{Kind: MoveRange, Source: toNonZero(t, c["a"]), End: c["b"], Dest: toNonZero(t, c["n"])}}}

	plan, err := BuildRebasePlan(context.Background(), snap, "", oid.AlgoSHA1, NewRebasePlanPermissions(false), reqs, nil, 0)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	require.True(t, plan.Steps[0].Commit.Oid().Equal(c["a"]))
	require.True(t, plan.Steps[1].Commit.Oid().Equal(c["b"]))
}

func TestBuildRebasePlanMoveRangeRequiresEnd(t *testing.T) {
	snap, c := buildForkedGraph(t)
	reqs := BuildRequests{Moves: []MoveRequest{{Kind: MoveRange, Source: toNonZero(t, c["a"]), Dest: toNonZero(t, c["n"])}}}

	_, err := BuildRebasePlan(context.Background(), snap, "", oid.AlgoSHA1, NewRebasePlanPermissions(false), reqs, nil, 0)
	var constraintErr *ConstraintError
	require.ErrorAs(t, err, &constraintErr)
}

// buildDiamondRangeGraph builds a diamond where end merges two paths out
// of x, so a move_range spanning the whole diamond has a branching
// (non-linear) interior:
//
//	x(0) -- p(1) --\
//	   \            end(3, merges p and r)
//	    -- r(2) ----/
func buildDiamondRangeGraph(t *testing.T) (*dag.Snapshot, map[string]oid.Oid) {
	t.Helper()
	x, p, r, end := oidN(0), oidN(1), oidN(2), oidN(3)
	host := &fakeHost{parents: map[string][]string{
		p.String():   {x.String()},
		r.String():   {x.String()},
		end.String(): {p.String(), r.String()},
		x.String():   nil,
	}}
	snap, err := dag.Build(context.Background(), host, []oid.Oid{end})
	require.NoError(t, err)
	return snap, map[string]oid.Oid{"x": x, "p": p, "r": r, "end": end}
}

func TestBuildRebasePlanMoveRangeRejectsBranchingInterior(t *testing.T) {
	snap, c := buildDiamondRangeGraph(t)
	reqs := BuildRequests{Moves: []MoveRequest{{Kind: MoveRange, Source: toNonZero(t, c["x"]), End: c["end"], Dest: toNonZero(t, c["end"])}}}

	_, err := BuildRebasePlan(context.Background(), snap, "", oid.AlgoSHA1, NewRebasePlanPermissions(false), reqs, nil, 0)
	var constraintErr *ConstraintError
	require.ErrorAs(t, err, &constraintErr)
}

func TestBuildRebasePlanSupersedeKeepsLastDestination(t *testing.T) {
	snap, c := buildForkedGraph(t)
	reqs := BuildRequests{Moves: []MoveRequest{
		{Kind: MoveCommit, Source: toNonZero(t, c["a"]), Dest: toNonZero(t, c["root"])},
		{Kind: MoveCommit, Source: toNonZero(t, c["a"]), Dest: toNonZero(t, c["n"])},
	}}

	plan, err := BuildRebasePlan(context.Background(), snap, "", oid.AlgoSHA1, NewRebasePlanPermissions(false), reqs, nil, 0)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	require.True(t, plan.Onto.Oid().Equal(c["n"]))
}

// TestBuildRebasePlanResolvesTransitiveDestination covers move_commit(a, m)
// followed by move_commit(m, n): a must resolve to land under n, m's own
// destination, rather than under m's stale original position.
func TestBuildRebasePlanResolvesTransitiveDestination(t *testing.T) {
	snap, c := buildForkedGraph(t)
	reqs := BuildRequests{Moves: []MoveRequest{
		{Kind: MoveCommit, Source: toNonZero(t, c["a"]), Dest: toNonZero(t, c["m"])},
		{Kind: MoveCommit, Source: toNonZero(t, c["m"]), Dest: toNonZero(t, c["n"])},
	}}

	plan, err := BuildRebasePlan(context.Background(), snap, "", oid.AlgoSHA1, NewRebasePlanPermissions(false), reqs, nil, 0)
	require.NoError(t, err)
	require.True(t, plan.Onto.Oid().Equal(c["n"]))

	var picks []oid.Oid
	for _, step := range plan.Steps {
		if step.Kind == StepPick {
			picks = append(picks, step.Commit.Oid())
		}
	}
	require.ElementsMatch(t, []oid.Oid{c["a"], c["m"]}, picks)
}

// TestBuildRebasePlanBreaksMoveToDescendantCycle moves x's whole subtree
// onto s, one of x's own descendants: the effective destination must be
// rewritten to the nearest ancestor of s outside the moved set (root).
func TestBuildRebasePlanBreaksMoveToDescendantCycle(t *testing.T) {
	snap, c := buildBranchingSubtreeGraph(t)
	reqs := BuildRequests{Moves: []MoveRequest{{Kind: MoveSubtree, Source: toNonZero(t, c["x"]), Dest: toNonZero(t, c["s"])}}}

	plan, err := BuildRebasePlan(context.Background(), snap, "", oid.AlgoSHA1, NewRebasePlanPermissions(false), reqs, nil, 0)
	require.NoError(t, err)
	require.True(t, plan.Onto.Oid().Equal(c["root"]))
}

func TestBuildRebasePlanMoveSubtreePreservesMergeParents(t *testing.T) {
	snap, c := buildMergeRootGraph(t)
	reqs := BuildRequests{Moves: []MoveRequest{{Kind: MoveSubtree, Source: toNonZero(t, c["b"]), Dest: toNonZero(t, c["z"])}}}

	plan, err := BuildRebasePlan(context.Background(), snap, "", oid.AlgoSHA1, NewRebasePlanPermissions(false), reqs, nil, 0)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	require.Equal(t, StepPick, plan.Steps[0].Kind)
	require.True(t, plan.Steps[0].Commit.Oid().Equal(c["b"]))
	require.Len(t, plan.Steps[0].ExtraParents, 1)
	require.True(t, plan.Steps[0].ExtraParents[0].Oid().Equal(c["y"]))
	require.Empty(t, plan.Steps[1].ExtraParents)
}
