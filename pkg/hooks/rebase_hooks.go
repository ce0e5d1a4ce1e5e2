package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/antgroup/branchless/modules/oid"
	"github.com/antgroup/branchless/modules/refname"
)

// HeadInfo is HEAD's resolved reference name and commit, either of which may
// be absent (a detached checkout has no reference name; an unborn branch
// has no commit).
type HeadInfo struct {
	Oid           oid.Zeroable
	ReferenceName refname.Name
}

// SaveOriginalHeadInfo persists HEAD's state before a rebase begins, so
// HandlePostRewrite's cooperating-protocol step can resolve ORIG_HEAD after
// the branch it pointed at may have already been deleted by the rebase.
func SaveOriginalHeadInfo(gitDir string, info HeadInfo) error {
	if _, err := ensureStateDir(gitDir); err != nil {
		return err
	}
	if o, ok := info.Oid.Oid(); ok {
		if err := os.WriteFile(filepath.Join(StateDir(gitDir), origHeadOidFileName), []byte(o.String()), 0600); err != nil {
			return fmt.Errorf("hooks: save original HEAD oid: %w", err)
		}
	}
	if info.ReferenceName != "" {
		if err := os.WriteFile(filepath.Join(StateDir(gitDir), origHeadNameFileName), []byte(info.ReferenceName), 0600); err != nil {
			return fmt.Errorf("hooks: save original HEAD name: %w", err)
		}
	}
	return nil
}

// LoadOriginalHeadInfo reads back what SaveOriginalHeadInfo wrote.
func LoadOriginalHeadInfo(algo oid.Algo, gitDir string) (HeadInfo, error) {
	var info HeadInfo
	if data, err := os.ReadFile(filepath.Join(StateDir(gitDir), origHeadOidFileName)); err == nil {
		z, err := parseZeroableWithAlgo(algo, strings.TrimSpace(string(data)))
		if err != nil {
			return HeadInfo{}, fmt.Errorf("hooks: parse original HEAD oid: %w", err)
		}
		info.Oid = z
	} else if !os.IsNotExist(err) {
		return HeadInfo{}, fmt.Errorf("hooks: read original HEAD oid: %w", err)
	}
	if data, err := os.ReadFile(filepath.Join(StateDir(gitDir), origHeadNameFileName)); err == nil {
		info.ReferenceName = refname.Name(strings.TrimSpace(string(data)))
	} else if !os.IsNotExist(err) {
		return HeadInfo{}, fmt.Errorf("hooks: read original HEAD name: %w", err)
	}
	return info, nil
}

// SaveUpdatedHeadOid records the commit HEAD should end up on once the
// rebase concludes, for the case where the commit HEAD started on was
// itself skipped/dropped mid-rebase (so it can't simply be checked out
// again at the end).
func SaveUpdatedHeadOid(gitDir string, updated oid.NonZeroOid) error {
	if _, err := ensureStateDir(gitDir); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(StateDir(gitDir), updatedHeadFileName), []byte(updated.String()), 0600); err != nil {
		return fmt.Errorf("hooks: save updated HEAD oid: %w", err)
	}
	return nil
}

// LoadUpdatedHeadOid reads back what SaveUpdatedHeadOid wrote, if anything.
func LoadUpdatedHeadOid(gitDir string) (oid.NonZeroOid, bool, error) {
	data, err := os.ReadFile(filepath.Join(StateDir(gitDir), updatedHeadFileName))
	if os.IsNotExist(err) {
		return oid.NonZeroOid{}, false, nil
	}
	if err != nil {
		return oid.NonZeroOid{}, false, fmt.Errorf("hooks: read updated HEAD oid: %w", err)
	}
	n, err := oid.ParseNonZero(strings.TrimSpace(string(data)))
	if err != nil {
		return oid.NonZeroOid{}, false, fmt.Errorf("hooks: parse updated HEAD oid: %w", err)
	}
	return n, true, nil
}

// DropCommitIfEmpty implements "detect-empty-commit": when a rebase leaves
// HEAD on a now-empty commit (its change was already applied upstream),
// skip it by resetting HEAD to its only parent and queuing both the empty
// commit and its former HEAD as dropped rewritten-list entries, so
// HandlePostRewrite records them as rewritten to nothing. Returns false
// when there was nothing to drop.
func DropCommitIfEmpty(algo oid.Algo, gitDir string, headCommitOid oid.NonZeroOid, isEmpty bool, onlyParentOid oid.NonZeroOid, origHeadOid oid.Zeroable) (dropped bool, err error) {
	if !isEmpty {
		return false, nil
	}
	if origParent, ok := origHeadOid.NonZero(); ok && origParent.Equal(headCommitOid) {
		if err := SaveUpdatedHeadOid(gitDir, onlyParentOid); err != nil {
			return false, err
		}
	}
	err = AddRewrittenListEntries(algo, gitDir, []RewrittenEntry{
		{Old: headCommitOid, New: oid.ZeroOf(algo)},
		{Old: onlyParentOid, New: oid.ZeroOf(algo)},
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// SkipUpstreamAppliedCommit implements "skip-upstream-applied-commit": a
// commit known to have already landed upstream is either dropped (rewritten
// to Zero) or redirected to the upstream commit it matches, queued the same
// way DropCommitIfEmpty queues its entries.
func SkipUpstreamAppliedCommit(gitDir string, algo oid.Algo, commitOid oid.NonZeroOid, rewrittenOid oid.Zeroable, origHeadOid oid.Zeroable, currentHeadOid oid.Zeroable) error {
	if orig, ok := origHeadOid.NonZero(); ok && orig.Equal(commitOid) {
		if current, ok := currentHeadOid.NonZero(); ok {
			if err := SaveUpdatedHeadOid(gitDir, current); err != nil {
				return err
			}
		}
	}
	return AddRewrittenListEntries(algo, gitDir, []RewrittenEntry{{Old: commitOid, New: rewrittenOid}})
}
