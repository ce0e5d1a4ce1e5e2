package repo

import (
	"context"

	"github.com/antgroup/branchless/modules/dag"
	"github.com/antgroup/branchless/modules/git"
)

// hostGraph adapts modules/git.ParentsOf to modules/dag.HostGraph, closing
// over the git directory so dag.Build never needs to know a repository
// path exists.
type hostGraph struct {
	gitDir string
}

// ParentsOf implements modules/dag.HostGraph.
func (h hostGraph) ParentsOf(ctx context.Context, roots []string) (map[string][]string, error) {
	return git.ParentsOf(ctx, h.gitDir, roots)
}

// Graph returns this context's dag.HostGraph adapter.
func (c *Context) Graph() dag.HostGraph {
	return hostGraph{gitDir: c.GitDir}
}
