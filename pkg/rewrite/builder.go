package rewrite

import (
	"context"
	"fmt"

	"github.com/antgroup/branchless/modules/dag"
	"github.com/antgroup/branchless/modules/oid"
)

// MoveKind discriminates a MoveRequest's request form.
type MoveKind int8

const (
	// MoveSubtree reparents Source and every one of its descendants onto
	// Dest, preserving whatever branching exists within the subtree. If
	// Source is itself a merge commit, its first parent is replaced by
	// Dest and its other parents are retained alongside it.
	MoveSubtree MoveKind = iota
	// MoveCommit reparents only Source; its existing children are left
	// pointing at their original parent and are reattached by a later
	// restack rather than by this move. End is ignored.
	MoveCommit
	// MoveRange reparents every commit from Source to End (inclusive)
	// along a single linear path onto Dest; descendants of End outside
	// the range are left for a later restack, exactly as with
	// MoveCommit.
	MoveRange
)

func (k MoveKind) String() string {
	switch k {
	case MoveSubtree:
		return "move_subtree"
	case MoveCommit:
		return "move_commit"
	case MoveRange:
		return "move_range"
	default:
		return "unknown"
	}
}

// MoveRequest relocates part of the commit graph onto Dest. Kind selects
// which of the three request forms above applies; End is only meaningful
// for MoveRange.
type MoveRequest struct {
	Kind   MoveKind
	Source oid.NonZeroOid
	End    oid.Oid // MoveRange only; the zero value means "not set"
	Dest   oid.NonZeroOid
}

// BuildRequests bundles every kind of rewrite the builder accepts in one
// call, so a single pass computes one linear plan honoring all of them
// rather than requiring the caller to sequence several plans.
type BuildRequests struct {
	Moves []MoveRequest
	// Fixups folds each commit into its immediate predecessor in the
	// resulting plan, squashing its tree changes without a separate
	// commit.
	Fixups map[oid.Oid]bool
	// Rewords replaces a commit's message; the command layer has
	// already split any bulk-edited text into one message per commit,
	// not this package.
	Rewords map[oid.Oid]string
}

// resolvedMove is a MoveRequest after tie-break resolution: its final
// (possibly transitively-resolved, possibly cycle-broken) destination, the
// full set of commits it relocates, the entry point those commits are
// reparented from, and any parent of that entry point a MoveSubtree must
// retain instead of replacing with dest.
type resolvedMove struct {
	dest         oid.Oid
	selected     dag.CommitSet
	root         oid.Oid
	extraParents []oid.Oid
}

// BuildRebasePlan computes the linear pick/fixup/reword sequence that
// realizes every MoveRequest in reqs, each relocating the commits its Kind
// selects from Source (and End, for MoveRange) onto Dest. perms must
// authorize rewriting every commit that will move; it may be presented
// only once across the whole call.
//
// Repeated requests rooted at the same Source supersede earlier ones (the
// last destination wins), and a request whose destination is itself the
// source of another request in the same call resolves transitively to
// that request's final destination, before any plan is built.
//
// BuildRebasePlan does not modify the host repository: beyond snap and
// reqs, it only reads commit diffs (`git diff-tree`) to fill the patch-id
// cache.
func BuildRebasePlan(ctx context.Context, snap *dag.Snapshot, gitDir string, algo oid.Algo, perms *RebasePlanPermissions, reqs BuildRequests, cache *PatchIDCache, workers int) (*RebasePlan, error) {
	if len(reqs.Moves) == 0 {
		return nil, nil
	}

	moves := resolveDestChains(dedupeBySource(reqs.Moves))

	resolved := make([]resolvedMove, len(moves))
	var allToMove dag.CommitSet
	for i, mv := range moves {
		rm, err := resolveMove(snap, mv)
		if err != nil {
			return nil, err
		}
		if rm.selected.Contains(rm.dest) {
			fixed, err := breakMoveToDescendantCycle(snap, rm.selected, rm.dest)
			if err != nil {
				return nil, err
			}
			rm.dest = fixed
		}
		resolved[i] = rm
		if i == 0 {
			allToMove = rm.selected
		} else {
			allToMove = allToMove.Union(rm.selected)
		}
	}

	if perms != nil {
		if err := perms.VerifyRewriteSet(snap, allToMove); err != nil {
			return nil, err
		}
	}

	landed, err := landedPatchIDs(ctx, snap, gitDir, algo, resolved, cache, workers)
	if err != nil {
		return nil, err
	}

	plan := &RebasePlan{Onto: mustNonZero(resolved[0].dest)}
	labelSeq := 0
	for i, rm := range resolved {
		if i > 0 {
			// Every move after the first starts from its own destination,
			// not wherever the previous move's chain left the cursor.
			plan.Steps = append(plan.Steps, PlanStep{Kind: StepReset, Label: rm.dest.String()})
		}
		appendMoveSteps(snap, rm, reqs.Fixups, reqs.Rewords, landed, &plan.Steps, &labelSeq)
		if i+1 < len(resolved) {
			label := fmt.Sprintf("branchless-label-%d", labelSeq)
			labelSeq++
			plan.Steps = append(plan.Steps, PlanStep{Kind: StepLabel, Label: label})
		}
	}
	return plan, nil
}

// dedupeBySource keeps only the last request for each Source OID,
// preserving the position of that last occurrence: repeated
// move_subtree/move_commit/move_range calls rooted at the same commit
// supersede earlier ones rather than both applying.
func dedupeBySource(reqs []MoveRequest) []MoveRequest {
	lastIdx := make(map[oid.Oid]int, len(reqs))
	for i, r := range reqs {
		lastIdx[r.Source.Oid()] = i
	}
	out := make([]MoveRequest, 0, len(lastIdx))
	for i, r := range reqs {
		if lastIdx[r.Source.Oid()] == i {
			out = append(out, r)
		}
	}
	return out
}

// resolveDestChains follows each request's destination through any other
// request in reqs rooted at that destination, so that move_commit(A, B)
// followed by move_commit(B, C) resolves A's destination directly to C:
// A ends up transitively under wherever B itself is being moved to,
// rather than under B's stale original position.
func resolveDestChains(reqs []MoveRequest) []MoveRequest {
	destBySource := make(map[oid.Oid]oid.NonZeroOid, len(reqs))
	for _, r := range reqs {
		destBySource[r.Source.Oid()] = r.Dest
	}
	out := make([]MoveRequest, len(reqs))
	for i, r := range reqs {
		dest := r.Dest
		seen := map[oid.Oid]bool{r.Source.Oid(): true}
		for {
			next, ok := destBySource[dest.Oid()]
			if !ok || seen[dest.Oid()] {
				break
			}
			seen[dest.Oid()] = true
			dest = next
		}
		r.Dest = dest
		out[i] = r
	}
	return out
}

// resolveMove computes the commit set mv relocates and its entry point,
// without yet accounting for a destination that lands inside that set.
func resolveMove(snap *dag.Snapshot, mv MoveRequest) (resolvedMove, error) {
	root := mv.Source.Oid()
	var selected dag.CommitSet

	switch mv.Kind {
	case MoveCommit:
		selected = snap.SetOf(root)

	case MoveRange:
		if mv.End.IsZero() {
			return resolvedMove{}, newConstraintError(
				"pass the same commit as both the range start and end to move just one commit",
				"move_range(%s): missing end", root,
			)
		}
		chain, err := rangeChain(snap, root, mv.End)
		if err != nil {
			return resolvedMove{}, err
		}
		selected = snap.SetOf(chain...)

	default: // MoveSubtree
		selected = snap.Descendants(snap.SetOf(root))
	}

	rm := resolvedMove{dest: mv.Dest.Oid(), selected: selected, root: root}
	if mv.Kind == MoveSubtree {
		rm.extraParents = otherParentsOf(snap, root)
	}
	return rm, nil
}

// rangeChain returns the linear path from root to end inclusive, oldest
// first. Returns a ConstraintError if end is unreachable from root, or
// reachable only through a branching interior.
func rangeChain(snap *dag.Snapshot, root, end oid.Oid) ([]oid.Oid, error) {
	inRange := snap.Range(root, end)
	if inRange.Len() == 0 {
		return nil, newConstraintError(
			"check that end is a descendant of root",
			"move_range: no path from %s to %s", root, end,
		)
	}
	chain := []oid.Oid{root}
	current := root
	for !current.Equal(end) {
		children := snap.Children(snap.SetOf(current)).Intersect(inRange)
		next := children.Oids()
		if len(next) != 1 {
			return nil, newConstraintError(
				"move one branch at a time, or rebase each head separately",
				"move_range: range from %s to %s is not linear: %d commits immediately follow %s", root, end, len(next), current,
			)
		}
		chain = append(chain, next[0])
		current = next[0]
	}
	return chain, nil
}

// breakMoveToDescendantCycle handles a request whose destination lands
// inside its own moved set (moving a subtree to one of its own
// descendants, directly or after destination-chain resolution): it walks
// up dest's first-parent chain until it finds a commit outside selected,
// and uses that as the effective destination instead, breaking the cycle
// by reparenting onto the nearest ancestor the move doesn't also relocate.
func breakMoveToDescendantCycle(snap *dag.Snapshot, selected dag.CommitSet, dest oid.Oid) (oid.Oid, error) {
	current := dest
	for i := 0; i <= selected.Len(); i++ {
		if !selected.Contains(current) {
			return current, nil
		}
		parent := firstParentOf(snap, current)
		if parent.IsZero() {
			return oid.Oid{}, newConstraintError(
				"choose a destination outside the moved commits",
				"move: destination %s is a descendant of the commits being moved, with no ancestor outside them", dest,
			)
		}
		current = parent
	}
	return oid.Oid{}, newConstraintError(
		"choose a destination outside the moved commits",
		"move: could not resolve a destination outside the moved commits for %s", dest,
	)
}

// appendMoveSteps renders rm as pick/fixup/reword/drop steps, bridging any
// divergent children within a MoveSubtree with Label/Reset so every branch
// in the subtree is preserved rather than only its first descendant path.
func appendMoveSteps(snap *dag.Snapshot, rm resolvedMove, fixups map[oid.Oid]bool, rewords map[oid.Oid]string, landed map[oid.Oid]bool, steps *[]PlanStep, labelSeq *int) {
	appendNode(snap, rm.root, rm.selected, rm.extraParents, fixups, rewords, landed, steps, labelSeq)
}

// appendNode appends the step for current and, recursively, every
// selected descendant reachable from it. It walks a single child chain
// iteratively and only recurses (one stack frame per fork) where the
// subtree actually branches, so a long linear chain costs no extra stack
// depth beyond the original flat-chain builder.
func appendNode(snap *dag.Snapshot, node oid.Oid, selected dag.CommitSet, extraParents []oid.Oid, fixups map[oid.Oid]bool, rewords map[oid.Oid]string, landed map[oid.Oid]bool, steps *[]PlanStep, labelSeq *int) {
	current := node
	pendingExtra := extraParents
	for {
		step := stepForCommit(current, fixups, rewords, landed)
		if len(pendingExtra) > 0 && !landed[current] {
			step.ExtraParents = make([]oid.NonZeroOid, 0, len(pendingExtra))
			for _, p := range pendingExtra {
				step.ExtraParents = append(step.ExtraParents, mustNonZero(p))
			}
		}
		pendingExtra = nil
		*steps = append(*steps, step)

		children := snap.Children(snap.SetOf(current)).Intersect(selected).Oids()
		switch len(children) {
		case 0:
			return
		case 1:
			current = children[0]
			continue
		default:
			label := fmt.Sprintf("branchless-label-%d", *labelSeq)
			*labelSeq++
			*steps = append(*steps, PlanStep{Kind: StepLabel, Label: label})
			for _, child := range children {
				*steps = append(*steps, PlanStep{Kind: StepReset, Label: label})
				appendNode(snap, child, selected, nil, fixups, rewords, landed, steps, labelSeq)
			}
			return
		}
	}
}

// stepForCommit renders c as the PlanStep its own kind demands, ignoring
// any ExtraParents the caller may still need to attach.
func stepForCommit(c oid.Oid, fixups map[oid.Oid]bool, rewords map[oid.Oid]string, landed map[oid.Oid]bool) PlanStep {
	if landed[c] {
		return PlanStep{Kind: StepDrop, Commit: mustNonZero(c)}
	}
	step := PlanStep{Kind: StepPick, Commit: mustNonZero(c)}
	if fixups[c] {
		step.Kind = StepFixup
	}
	if msg, ok := rewords[c]; ok {
		if step.Kind == StepPick {
			step.Kind = StepReword
		}
		step.Message = msg
	}
	return step
}

// landedPatchIDs reports, for every commit the plan would otherwise pick,
// whether a commit already reachable from its move's destination carries
// the same PatchID — meaning the change already landed there, so the
// builder should emit StepDrop instead of replaying it. A nil cache
// disables the check entirely: every commit builds as a normal
// pick/fixup/reword step. Merge commits are excluded on both sides, since
// a patch id computed against only the first parent is not well-defined
// for them.
func landedPatchIDs(ctx context.Context, snap *dag.Snapshot, gitDir string, algo oid.Algo, resolved []resolvedMove, cache *PatchIDCache, workers int) (map[oid.Oid]bool, error) {
	if cache == nil {
		return nil, nil
	}

	var toMove, destAncestors dag.CommitSet
	for i, rm := range resolved {
		ancestors := snap.Ancestors(snap.SetOf(rm.dest))
		if i == 0 {
			toMove, destAncestors = rm.selected, ancestors
		} else {
			toMove = toMove.Union(rm.selected)
			destAncestors = destAncestors.Union(ancestors)
		}
	}
	// Commits already moved can't be compared against themselves.
	destAncestors = destAncestors.Diff(toMove)

	entries := make([]commitParent, 0, toMove.Len()+destAncestors.Len())
	for _, c := range toMove.Oids() {
		if isMerge(snap, c) {
			continue
		}
		entries = append(entries, commitParent{Commit: c, Parent: firstParentOf(snap, c)})
	}
	for _, c := range destAncestors.Oids() {
		if isMerge(snap, c) {
			continue
		}
		entries = append(entries, commitParent{Commit: c, Parent: firstParentOf(snap, c)})
	}
	if len(entries) == 0 {
		return nil, nil
	}

	ids, err := cache.PatchIDsOf(ctx, gitDir, algo, entries, workers)
	if err != nil {
		return nil, fmt.Errorf("rewrite: compute patch ids: %w", err)
	}

	landedIDs := make(map[PatchID]bool, destAncestors.Len())
	for _, c := range destAncestors.Oids() {
		if isMerge(snap, c) {
			continue
		}
		landedIDs[ids[c]] = true
	}

	landed := make(map[oid.Oid]bool, toMove.Len())
	for _, c := range toMove.Oids() {
		if isMerge(snap, c) {
			continue
		}
		if landedIDs[ids[c]] {
			landed[c] = true
		}
	}
	return landed, nil
}

// firstParentOf returns c's first parent as already known to snap, or the
// zero OID if c is a root commit within the snapshot. "First" here only
// means the lexicographically-first of snap.Parents, since the arena
// doesn't preserve the host VCS's own parent ordering; this mirrors the
// simplification patch-id computation already relies on.
func firstParentOf(snap *dag.Snapshot, c oid.Oid) oid.Oid {
	parents := snap.Parents(snap.SetOf(c)).Oids()
	if len(parents) == 0 {
		return oid.Oid{}
	}
	return parents[0]
}

// otherParentsOf returns every parent of c besides firstParentOf(c) — the
// parents a MoveSubtree on a merge commit must retain rather than replace
// with its destination.
func otherParentsOf(snap *dag.Snapshot, c oid.Oid) []oid.Oid {
	parents := snap.Parents(snap.SetOf(c)).Oids()
	if len(parents) <= 1 {
		return nil
	}
	return parents[1:]
}

// isMerge reports whether c has more than one parent within snap.
func isMerge(snap *dag.Snapshot, c oid.Oid) bool {
	return len(snap.Parents(snap.SetOf(c)).Oids()) > 1
}

func mustNonZero(o oid.Oid) oid.NonZeroOid {
	n, err := oid.NewNonZero(o)
	if err != nil {
		// Every OID reaching this point was already looked up in the
		// snapshot's arena, which by construction never holds the zero
		// OID.
		panic(err)
	}
	return n
}
