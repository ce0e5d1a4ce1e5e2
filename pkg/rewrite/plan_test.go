package rewrite

import (
	"context"
	"testing"

	"github.com/antgroup/branchless/modules/dag"
	"github.com/antgroup/branchless/modules/oid"
	"github.com/stretchr/testify/require"
)

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

func TestVerifyRewriteSetSingleUse(t *testing.T) {
	host := &fakeHost{parents: map[string][]string{
		oidN(1).String(): nil,
	}}
	snap, err := dag.Build(context.Background(), host, []oid.Oid{oidN(1)})
	require.NoError(t, err)

	perms := NewRebasePlanPermissions(false)
	set := snap.SetOf(oidN(1))
	require.NoError(t, perms.VerifyRewriteSet(snap, set))

	err = perms.VerifyRewriteSet(snap, set)
	require.Error(t, err)
}

func TestVerifyRewriteSetBlocksPublicWithoutForce(t *testing.T) {
	host := &fakeHost{parents: map[string][]string{
		oidN(2).String(): {oidN(1).String()},
		oidN(1).String(): nil,
	}}
	snap, err := dag.Build(context.Background(), host, []oid.Oid{oidN(2)})
	require.NoError(t, err)
	snap.SetMainBranch(oidN(2))
	snap.Classify(nil)

	perms := NewRebasePlanPermissions(false)
	err = perms.VerifyRewriteSet(snap, snap.SetOf(oidN(1)))
	var constraintErr *ConstraintError
	require.ErrorAs(t, err, &constraintErr)
	require.NotEmpty(t, constraintErr.Hint)
}

func TestVerifyRewriteSetForceAllowsPublic(t *testing.T) {
	host := &fakeHost{parents: map[string][]string{
		oidN(2).String(): {oidN(1).String()},
		oidN(1).String(): nil,
	}}
	snap, err := dag.Build(context.Background(), host, []oid.Oid{oidN(2)})
	require.NoError(t, err)
	snap.SetMainBranch(oidN(2))
	snap.Classify(nil)

	perms := NewRebasePlanPermissions(true)
	require.NoError(t, perms.VerifyRewriteSet(snap, snap.SetOf(oidN(1))))
}

func TestStepKindString(t *testing.T) {
	require.Equal(t, "pick", StepPick.String())
	require.Equal(t, "fixup", StepFixup.String())
	require.Equal(t, "reword", StepReword.String())
	require.Equal(t, "label", StepLabel.String())
	require.Equal(t, "reset", StepReset.String())
	require.Equal(t, "drop", StepDrop.String())
	require.Equal(t, "unknown", StepUnknown.String())
}

func TestRebasePlanIsEmpty(t *testing.T) {
	require.True(t, (*RebasePlan)(nil).IsEmpty())
	require.True(t, (&RebasePlan{}).IsEmpty())

	n, err := oid.NewNonZero(oidN(1))
	require.NoError(t, err)
	plan := &RebasePlan{Steps: []PlanStep{{Kind: StepPick, Commit: n}}}
	require.False(t, plan.IsEmpty())
}
