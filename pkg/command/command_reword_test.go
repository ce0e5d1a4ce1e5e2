// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRewordReplacesMessage(t *testing.T) {
	g, commits, run := initCommandTestRepo(t)

	c := &Reword{Commit: commits["feat1"].String(), Message: "feat1, reworded"}
	require.NoError(t, c.Run(g))

	log := run("log", "--format=%s", "HEAD")
	lines := strings.Split(strings.TrimSpace(log), "\n")
	require.Equal(t, []string{"feat2", "feat1, reworded", "base"}, lines)
}

func TestRewordRefusesRootCommit(t *testing.T) {
	g, commits, _ := initCommandTestRepo(t)

	c := &Reword{Commit: commits["base"].String(), Message: "renamed root"}
	require.Error(t, c.Run(g))
}
