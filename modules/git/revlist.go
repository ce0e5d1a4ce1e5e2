package git

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/antgroup/branchless/modules/command"
)

// ParentsOf maps every commit reachable from roots to its parent hex OIDs,
// via a single `git rev-list --parents` invocation, following the
// bulk-query idiom RevUniqueList already uses instead of one subprocess
// call per commit.
func ParentsOf(ctx context.Context, repoPath string, roots []string) (map[string][]string, error) {
	stderr := command.NewStderr()
	args := append([]string{"rev-list", "--parents"}, roots...)
	cmd := command.NewFromOptions(ctx, &command.RunOpts{
		RepoPath: repoPath,
		Stderr:   stderr,
	}, "git", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	defer stdout.Close()
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	parents := make(map[string][]string)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		parents[fields[0]] = append([]string(nil), fields[1:]...)
	}
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("rev-list --parents error: %w stderr: %s", err, stderr.String())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning rev-list --parents output: %w", err)
	}
	return parents, nil
}
