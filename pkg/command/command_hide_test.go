// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHideThenUnhideRoundTrips(t *testing.T) {
	g, commits, _ := initCommandTestRepo(t)
	r := openTestRepo(t, g)
	ctx := context.Background()

	hide := &Hide{Commit: commits["feat1"].String()}
	require.NoError(t, hide.Run(g))

	snap, err := r.Snapshot(ctx)
	require.NoError(t, err)
	require.True(t, snap.ObsoleteCommits().Contains(commits["feat1"]))

	unhide := &Unhide{Commit: commits["feat1"].String()}
	require.NoError(t, unhide.Run(g))

	snap, err = r.Snapshot(ctx)
	require.NoError(t, err)
	require.False(t, snap.ObsoleteCommits().Contains(commits["feat1"]))
}

func TestHideByBranchName(t *testing.T) {
	g, commits, _ := initCommandTestRepo(t)
	r := openTestRepo(t, g)
	ctx := context.Background()

	hide := &Hide{Commit: "feat"}
	require.NoError(t, hide.Run(g))

	snap, err := r.Snapshot(ctx)
	require.NoError(t, err)
	require.True(t, snap.ObsoleteCommits().Contains(commits["feat2"]))
}
