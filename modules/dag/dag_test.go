package dag

import (
	"context"
	"testing"

	"github.com/antgroup/branchless/modules/eventlog"
	"github.com/antgroup/branchless/modules/oid"
	"github.com/stretchr/testify/require"
)

// fakeHost is a HostGraph backed by an in-memory parent map, standing in
// for modules/git.ParentsOf in tests.
type fakeHost struct {
	parents map[string][]string
}

func (f *fakeHost) ParentsOf(_ context.Context, roots []string) (map[string][]string, error) {
	reach := map[string]bool{}
	var walk func(string)
	walk = func(o string) {
		if reach[o] {
			return
		}
		reach[o] = true
		for _, p := range f.parents[o] {
			walk(p)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	out := map[string][]string{}
	for o := range reach {
		out[o] = f.parents[o]
	}
	return out, nil
}

func oidN(n byte) oid.Oid {
	hex := ""
	for i := 0; i < 40; i++ {
		hex += string(rune('a' + n%16))
	}
	return oid.MustParse(hex)
}

func buildLinear(t *testing.T) (*Snapshot, map[string]oid.Oid) {
	t.Helper()
	root := oidN(0)
	x := oidN(1)
	y := oidN(2)
	z := oidN(3)
	host := &fakeHost{parents: map[string][]string{
		z.String(): {y.String()},
		y.String(): {x.String()},
		x.String(): {root.String()},
		root.String(): nil,
	}}
	snap, err := Build(context.Background(), host, []oid.Oid{z})
	require.NoError(t, err)
	return snap, map[string]oid.Oid{"root": root, "x": x, "y": y, "z": z}
}

func TestAncestorsDescendants(t *testing.T) {
	snap, c := buildLinear(t)
	anc := snap.Ancestors(snap.SetOf(c["z"]))
	require.True(t, anc.Contains(c["root"]))
	require.True(t, anc.Contains(c["x"]))
	require.True(t, anc.Contains(c["y"]))
	require.True(t, anc.Contains(c["z"]))

	desc := snap.Descendants(snap.SetOf(c["x"]))
	require.True(t, desc.Contains(c["y"]))
	require.True(t, desc.Contains(c["z"]))
	require.False(t, desc.Contains(c["root"]))
}

func TestIsAncestor(t *testing.T) {
	snap, c := buildLinear(t)
	require.True(t, snap.IsAncestor(c["root"], c["z"]))
	require.False(t, snap.IsAncestor(c["z"], c["root"]))
	require.True(t, snap.IsAncestor(c["x"], c["x"]))
}

func TestHeadsPrunesAncestors(t *testing.T) {
	snap, c := buildLinear(t)
	set := snap.SetOf(c["x"], c["y"], c["z"])
	heads := snap.Heads(set)
	require.Equal(t, 1, heads.Len())
	require.True(t, heads.Contains(c["z"]))
}

func TestRootsOfLinear(t *testing.T) {
	snap, c := buildLinear(t)
	set := snap.SetOf(c["root"], c["x"], c["y"])
	roots := snap.Roots(set)
	require.Equal(t, 1, roots.Len())
	require.True(t, roots.Contains(c["root"]))
}

func TestPublicDraftSplit(t *testing.T) {
	snap, c := buildLinear(t)
	snap.SetMainBranch(c["y"])
	snap.Classify([]eventlog.Event{
		eventlog.CommitEvent(1, 1.0, mustNonZeroDag(c["z"])),
	})
	require.True(t, snap.PublicCommits().Contains(c["x"]))
	require.True(t, snap.PublicCommits().Contains(c["y"]))
	require.False(t, snap.PublicCommits().Contains(c["z"]))
	require.True(t, snap.DraftCommits().Contains(c["z"]))
}

func TestObsoleteClassification(t *testing.T) {
	snap, c := buildLinear(t)
	events := []eventlog.Event{
		eventlog.CommitEvent(1, 1.0, mustNonZeroDag(c["z"])),
		eventlog.RewriteEvent(2, 2.0, oid.FromOid(c["z"]), oid.FromOid(c["y"])),
	}
	snap.Classify(events)
	require.True(t, snap.ObsoleteCommits().Contains(c["z"]))
	require.False(t, snap.ObsoleteCommits().Contains(c["y"]))
}

func TestFindRewriteTargetChain(t *testing.T) {
	_, c := buildLinear(t)
	events := []eventlog.Event{
		eventlog.RewriteEvent(1, 1.0, oid.FromOid(c["x"]), oid.FromOid(c["y"])),
		eventlog.RewriteEvent(2, 2.0, oid.FromOid(c["y"]), oid.FromOid(c["z"])),
	}
	target := FindRewriteTarget(events, c["x"])
	got, ok := target.Oid()
	require.True(t, ok)
	require.True(t, got.Equal(c["z"]))
}

func TestFindRewriteTargetZero(t *testing.T) {
	_, c := buildLinear(t)
	events := []eventlog.Event{
		eventlog.RewriteEvent(1, 1.0, oid.FromOid(c["x"]), oid.ZeroOf(oid.AlgoSHA1)),
	}
	target := FindRewriteTarget(events, c["x"])
	require.True(t, target.IsZero())
}

func mustNonZeroDag(o oid.Oid) oid.NonZeroOid {
	n, err := oid.NewNonZero(o)
	if err != nil {
		panic(err)
	}
	return n
}
