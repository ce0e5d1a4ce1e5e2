package git

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/antgroup/branchless/modules/command"
	"github.com/antgroup/branchless/modules/diferenco"
)

// TreeConflict identifies one path the in-memory merge could not resolve.
type TreeConflict struct {
	Path   string
	Reason string
}

// treeEntry is one line of `git ls-tree -r --full-tree`, recording only
// what MergeTrees needs to rebuild an equivalent flat tree: mode, type and
// blob/tree oid keyed by path.
type treeEntry struct {
	mode string
	typ  string
	oid  string
}

func listTree(ctx context.Context, repoPath, tree string) (map[string]treeEntry, error) {
	if tree == "" {
		return map[string]treeEntry{}, nil
	}
	stderr := command.NewStderr()
	cmd := command.NewFromOptions(ctx, &command.RunOpts{RepoPath: repoPath, Stderr: stderr},
		"git", "ls-tree", "-r", "--full-tree", "-z", tree)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git: ls-tree %s: %w: %s", tree, err, stderr.String())
	}
	entries := map[string]treeEntry{}
	for _, line := range strings.Split(strings.TrimRight(string(out), "\x00"), "\x00") {
		if line == "" {
			continue
		}
		// "<mode> <type> <oid>\t<path>"
		tab := strings.IndexByte(line, '\t')
		if tab < 0 {
			continue
		}
		fields := strings.SplitN(line[:tab], " ", 3)
		if len(fields) != 3 {
			continue
		}
		entries[line[tab+1:]] = treeEntry{mode: fields[0], typ: fields[1], oid: fields[2]}
	}
	return entries, nil
}

func catBlob(ctx context.Context, repoPath, oid string) (string, error) {
	stderr := command.NewStderr()
	cmd := command.NewFromOptions(ctx, &command.RunOpts{RepoPath: repoPath, Stderr: stderr},
		"git", "cat-file", "-p", oid)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git: cat-file -p %s: %w: %s", oid, err, stderr.String())
	}
	return string(out), nil
}

func hashBlob(ctx context.Context, repoPath, content string) (string, error) {
	stderr := command.NewStderr()
	cmd := command.NewFromOptions(ctx, &command.RunOpts{RepoPath: repoPath, Stderr: stderr, Stdin: strings.NewReader(content)},
		"git", "hash-object", "-w", "--stdin")
	hex, err := cmd.OneLine()
	if err != nil {
		return "", fmt.Errorf("git: hash-object: %w: %s", err, stderr.String())
	}
	return hex, nil
}

// MergeTrees performs a path-set three-way merge of two trees against their
// common base: unchanged paths pass through, paths touched on only one side
// take that side's content, and paths touched on both sides are merged as
// text via modules/diferenco.DefaultMerge. A path whose text merge produces
// conflict markers, or that was edited on one side and deleted on the
// other, is reported as a TreeConflict rather than resolved automatically.
// Binary content (merge input containing a NUL byte) is always a conflict,
// since diferenco's line-oriented merge cannot reason about it.
func MergeTrees(ctx context.Context, repoPath string, base, ours, theirs string) (mergedTree string, conflicts []TreeConflict, err error) {
	baseEntries, err := listTree(ctx, repoPath, base)
	if err != nil {
		return "", nil, err
	}
	oursEntries, err := listTree(ctx, repoPath, ours)
	if err != nil {
		return "", nil, err
	}
	theirsEntries, err := listTree(ctx, repoPath, theirs)
	if err != nil {
		return "", nil, err
	}

	paths := map[string]bool{}
	for p := range baseEntries {
		paths[p] = true
	}
	for p := range oursEntries {
		paths[p] = true
	}
	for p := range theirsEntries {
		paths[p] = true
	}

	var indexLines []string
	for path := range paths {
		b, hasBase := baseEntries[path]
		o, hasOurs := oursEntries[path]
		t, hasTheirs := theirsEntries[path]

		switch {
		case hasOurs && hasTheirs && o.oid == t.oid:
			indexLines = append(indexLines, indexLine(o, path))
		case hasBase && o.oid == b.oid && hasTheirs:
			indexLines = append(indexLines, indexLine(t, path))
		case hasBase && o.oid == b.oid && !hasTheirs:
			// deleted on their side, unchanged on ours: drop the path
		case hasBase && t.oid == b.oid && hasOurs:
			indexLines = append(indexLines, indexLine(o, path))
		case hasBase && t.oid == b.oid && !hasOurs:
			// deleted on our side, unchanged on theirs: drop the path
		case !hasBase && hasOurs && !hasTheirs:
			indexLines = append(indexLines, indexLine(o, path))
		case !hasBase && !hasOurs && hasTheirs:
			indexLines = append(indexLines, indexLine(t, path))
		case hasOurs && hasTheirs && o.typ == "blob" && t.typ == "blob":
			line, conflict, mergeErr := mergeBlobPath(ctx, repoPath, path, b, hasBase, o, t)
			if mergeErr != nil {
				return "", nil, mergeErr
			}
			if conflict != nil {
				conflicts = append(conflicts, *conflict)
				continue
			}
			indexLines = append(indexLines, line)
		default:
			conflicts = append(conflicts, TreeConflict{Path: path, Reason: "both sides changed this path incompatibly"})
		}
	}

	if len(conflicts) > 0 {
		return "", conflicts, nil
	}

	tree, err := writeTreeFromIndex(ctx, repoPath, indexLines)
	if err != nil {
		return "", nil, err
	}
	return tree, nil, nil
}

func mergeBlobPath(ctx context.Context, repoPath, path string, b treeEntry, hasBase bool, o, t treeEntry) (string, *TreeConflict, error) {
	var baseText string
	if hasBase && b.typ == "blob" {
		text, err := catBlob(ctx, repoPath, b.oid)
		if err != nil {
			return "", nil, err
		}
		baseText = text
	}
	oursText, err := catBlob(ctx, repoPath, o.oid)
	if err != nil {
		return "", nil, err
	}
	theirsText, err := catBlob(ctx, repoPath, t.oid)
	if err != nil {
		return "", nil, err
	}
	if strings.ContainsRune(baseText, 0) || strings.ContainsRune(oursText, 0) || strings.ContainsRune(theirsText, 0) {
		return "", &TreeConflict{Path: path, Reason: "binary content changed on both sides"}, nil
	}

	merged, hasConflict, err := diferenco.DefaultMerge(ctx, baseText, oursText, theirsText, "base", "ours", "theirs")
	if err != nil {
		return "", nil, fmt.Errorf("git: merge %s: %w", path, err)
	}
	if hasConflict {
		return "", &TreeConflict{Path: path, Reason: "text merge produced conflict markers"}, nil
	}

	mode := o.mode
	blobOid, err := hashBlob(ctx, repoPath, merged)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("%s blob %s\t%s", mode, blobOid, path), nil, nil
}

func indexLine(e treeEntry, path string) string {
	return fmt.Sprintf("%s %s %s\t%s", e.mode, e.typ, e.oid, path)
}

// writeTreeFromIndex populates a scratch index (isolated from the
// repository's real index via GIT_INDEX_FILE) with lines and writes it as
// a tree object, following the update-index/write-tree plumbing idiom for
// building a tree from a flat entry list without needing to construct
// subtrees by hand.
func writeTreeFromIndex(ctx context.Context, repoPath string, lines []string) (string, error) {
	f, err := os.CreateTemp("", "branchless-merge-index-*")
	if err != nil {
		return "", fmt.Errorf("git: create scratch index: %w", err)
	}
	indexPath := f.Name()
	_ = f.Close()
	defer os.Remove(indexPath)

	extraEnv := []string{"GIT_INDEX_FILE=" + indexPath}

	stderr := command.NewStderr()
	updateCmd := command.NewFromOptions(ctx, &command.RunOpts{RepoPath: repoPath, Stderr: stderr, ExtraEnv: extraEnv, Stdin: strings.NewReader(strings.Join(lines, "\n") + "\n")},
		"git", "update-index", "--index-info")
	if err := updateCmd.Run(); err != nil {
		return "", fmt.Errorf("git: update-index --index-info: %w: %s", err, stderr.String())
	}

	stderr = command.NewStderr()
	writeCmd := command.NewFromOptions(ctx, &command.RunOpts{RepoPath: repoPath, Stderr: stderr, ExtraEnv: extraEnv},
		"git", "write-tree")
	tree, err := writeCmd.OneLine()
	if err != nil {
		return "", fmt.Errorf("git: write-tree: %w: %s", err, stderr.String())
	}
	return tree, nil
}

// CommitTree creates a new commit object with the given tree, parents,
// author/committer identity and message, mirroring `git commit-tree`'s own
// argument shape so the in-memory executor can build a rewritten commit
// without touching the working copy or the index.
func CommitTree(ctx context.Context, repoPath, tree string, parents []string, author, committer Signature, message string) (string, error) {
	args := []string{"commit-tree", tree}
	for _, p := range parents {
		args = append(args, "-p", p)
	}
	args = append(args, "-m", message)

	stderr := command.NewStderr()
	extraEnv := []string{
		"GIT_AUTHOR_NAME=" + author.Name,
		"GIT_AUTHOR_EMAIL=" + author.Email,
		"GIT_AUTHOR_DATE=" + strconv.FormatInt(author.When.Unix(), 10) + " " + author.When.Format("-0700"),
		"GIT_COMMITTER_NAME=" + committer.Name,
		"GIT_COMMITTER_EMAIL=" + committer.Email,
		"GIT_COMMITTER_DATE=" + strconv.FormatInt(committer.When.Unix(), 10) + " " + committer.When.Format("-0700"),
	}
	cmd := command.NewFromOptions(ctx, &command.RunOpts{RepoPath: repoPath, Stderr: stderr, ExtraEnv: extraEnv}, "git", args...)
	hex, err := cmd.OneLine()
	if err != nil {
		return "", fmt.Errorf("git: commit-tree: %w: %s", err, stderr.String())
	}
	return hex, nil
}
