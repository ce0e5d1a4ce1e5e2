package hooks

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/antgroup/branchless/modules/dag"
	"github.com/antgroup/branchless/modules/eventlog"
	"github.com/antgroup/branchless/modules/oid"
)

// RewrittenEntry is one `<old-oid> <new-oid>` line of the rewritten-list
// file Git's rebase/commit --amend machinery feeds to the post-rewrite
// hook (new-oid is Zero when the commit was dropped/skipped entirely).
type RewrittenEntry struct {
	Old oid.NonZeroOid
	New oid.Zeroable
}

// ReadRewrittenListEntries parses the rewritten-list wire format from a
// reader (the post-rewrite hook's stdin).
func ReadRewrittenListEntries(algo oid.Algo, r io.Reader) ([]RewrittenEntry, error) {
	var entries []RewrittenEntry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("hooks: invalid rewrite line: %q", line)
		}
		old, err := oid.ParseNonZero(fields[0])
		if err != nil {
			return nil, fmt.Errorf("hooks: invalid rewrite line old oid %q: %w", line, err)
		}
		next, err := parseZeroableWithAlgo(algo, fields[1])
		if err != nil {
			return nil, fmt.Errorf("hooks: invalid rewrite line new oid %q: %w", line, err)
		}
		entries = append(entries, RewrittenEntry{Old: old, New: next})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("hooks: scan rewrite list: %w", err)
	}
	return entries, nil
}

func writeRewrittenList(path string, entries []RewrittenEntry) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "rewritten-list-*")
	if err != nil {
		return fmt.Errorf("hooks: create temp rewritten-list: %w", err)
	}
	for _, e := range entries {
		if _, err := fmt.Fprintf(tmp, "%s %s\n", e.Old.String(), e.New.String()); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return fmt.Errorf("hooks: write rewritten-list: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("hooks: close rewritten-list: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("hooks: move rewritten-list into place: %w", err)
	}
	return nil
}

func readRewrittenListFile(algo oid.Algo, path string) ([]RewrittenEntry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hooks: open rewritten-list: %w", err)
	}
	defer f.Close()
	return ReadRewrittenListEntries(algo, f)
}

// AddDeferredCommit appends a commit created mid-rebase to gitDir's
// deferred-commits file; HandlePostRewrite folds these into Commit events
// once the rebase concludes.
func AddDeferredCommit(gitDir string, c oid.NonZeroOid) error {
	if _, err := ensureStateDir(gitDir); err != nil {
		return err
	}
	f, err := os.OpenFile(deferredCommitsPath(gitDir), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("hooks: append deferred commit: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, c.String()); err != nil {
		return fmt.Errorf("hooks: append deferred commit: %w", err)
	}
	return nil
}

// AddRewrittenListEntries merges new entries into gitDir's on-disk
// rewritten-list, used by hook_drop_commit_if_empty and
// hook_skip_upstream_applied_commit to queue extra rewrites mid-rebase that
// the eventual post-rewrite hook invocation will pick up alongside Git's
// own entries. Later entries for the same old OID win.
func AddRewrittenListEntries(algo oid.Algo, gitDir string, entries []RewrittenEntry) error {
	if _, err := ensureStateDir(gitDir); err != nil {
		return err
	}
	path := rewrittenListPath(gitDir)
	current, err := readRewrittenListFile(algo, path)
	if err != nil {
		return err
	}
	merged := make(map[oid.NonZeroOid]oid.Zeroable, len(current)+len(entries))
	var order []oid.NonZeroOid
	for _, e := range current {
		if _, seen := merged[e.Old]; !seen {
			order = append(order, e.Old)
		}
		merged[e.Old] = e.New
	}
	for _, e := range entries {
		if _, seen := merged[e.Old]; !seen {
			order = append(order, e.Old)
		}
		merged[e.Old] = e.New
	}
	out := make([]RewrittenEntry, 0, len(order))
	for _, old := range order {
		out = append(out, RewrittenEntry{Old: old, New: merged[old]})
	}
	return writeRewrittenList(path, out)
}

// readDeferredCommits reads the deferred-commits file: commits created
// during an in-progress rebase that should only be confirmed into the
// event log once the rebase concludes, so an aborted rebase leaves no
// trace of them.
func readDeferredCommits(path string) ([]oid.NonZeroOid, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hooks: read deferred-commits: %w", err)
	}
	var out []oid.NonZeroOid
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		n, err := oid.ParseNonZero(line)
		if err != nil {
			return nil, fmt.Errorf("hooks: parse deferred commit %q: %w", line, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// HandlePostRewrite implements Git's `post-rewrite` hook: confirm any
// deferred commits, record a Rewrite event per rewritten-list entry, and
// return the old-to-new mapping. It does not move branches or check out
// the new HEAD itself; the caller does that with the returned map.
// rewriteType is the hook's argument ("amend" or "rebase").
func HandlePostRewrite(ctx context.Context, store *eventlog.Store, algo oid.Algo, gitDir string, now float64, rewriteType string, isRebaseUnderway bool, rewrittenListInput []RewrittenEntry) (RewrittenOids map[oid.NonZeroOid]oid.Zeroable, err error) {
	isSpurious := rewriteType == "amend" && isRebaseUnderway
	if isSpurious {
		return nil, nil
	}

	txID, err := store.MakeTransactionID(ctx, now, "hook-post-rewrite")
	if err != nil {
		return nil, fmt.Errorf("hooks: post-rewrite: make transaction: %w", err)
	}

	deferred, err := readDeferredCommits(deferredCommitsPath(gitDir))
	if err != nil {
		return nil, err
	}
	var events []eventlog.Event
	for _, c := range deferred {
		events = append(events, eventlog.CommitEvent(txID, now, c))
	}

	extra, err := readRewrittenListFile(algo, rewrittenListPath(gitDir))
	if err != nil {
		return nil, err
	}
	all := append(append([]RewrittenEntry(nil), extra...), rewrittenListInput...)
	RewrittenOids = make(map[oid.NonZeroOid]oid.Zeroable, len(all))
	for _, e := range all {
		events = append(events, eventlog.RewriteEvent(txID, now, oid.FromNonZero(e.Old), e.New))
		RewrittenOids[e.Old] = e.New
	}

	if err := store.AddEvents(ctx, events); err != nil {
		return nil, err
	}

	// Clear the deferred-commits/rewritten-list scratch files now that
	// they've been folded into the event log; a later rebase reuses a
	// fresh file rather than accumulating stale entries.
	_ = os.Remove(deferredCommitsPath(gitDir))
	_ = os.Remove(rewrittenListPath(gitDir))
	_ = os.Remove(extraPostRewritePath(gitDir))

	return RewrittenOids, nil
}

func extraPostRewritePath(gitDir string) string {
	return filepath.Join(StateDir(gitDir), extraPostRewriteName)
}

// RegisterExtraPostRewriteHook marks the in-progress rebase as one that
// should run the cooperating-protocol branch-move/checkout step when
// post-rewrite eventually fires, without changing plain `git rebase`'s own
// behavior when invoked outside this tool.
func RegisterExtraPostRewriteHook(gitDir string) error {
	if _, err := ensureStateDir(gitDir); err != nil {
		return err
	}
	f, err := os.Create(extraPostRewritePath(gitDir))
	if err != nil {
		return fmt.Errorf("hooks: register extra post-rewrite hook: %w", err)
	}
	return f.Close()
}

// HasExtraPostRewriteHook reports whether RegisterExtraPostRewriteHook ran
// earlier in the current rebase.
func HasExtraPostRewriteHook(gitDir string) bool {
	_, err := os.Stat(extraPostRewritePath(gitDir))
	return err == nil
}

// FindAbandonedChildrenWarning computes, for a batch of just-rewritten old
// OIDs, the set of children left without a rewritten counterpart. Nothing
// in the repository calls it: the post-rewrite hook prints no
// abandoned-commit warning.
func FindAbandonedChildrenWarning(snap *dag.Snapshot, events []eventlog.Event, oldOids []oid.NonZeroOid) dag.CommitSet {
	abandoned := snap.SetOf()
	for _, old := range oldOids {
		abandoned = abandoned.Union(snap.FindAbandonedChildren(events, old.Oid()))
	}
	return abandoned
}
