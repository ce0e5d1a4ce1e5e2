package hooks

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/antgroup/branchless/modules/oid"
	"github.com/antgroup/branchless/modules/refname"
	"github.com/antgroup/branchless/modules/trace"
)

// ParsedReferenceUpdate is one line of Git's `reference-transaction` hook
// input: `<old-oid> <new-oid> <ref-name>`.
type ParsedReferenceUpdate struct {
	RefName refname.Name
	OldOid  oid.Zeroable
	NewOid  oid.Zeroable
}

// ParseReferenceTransactionLine parses one `reference-transaction` stdin
// line. algo must match the repository's hash algorithm so old/new oid
// width is interpreted correctly.
func ParseReferenceTransactionLine(algo oid.Algo, line string) (ParsedReferenceUpdate, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return ParsedReferenceUpdate{}, fmt.Errorf("hooks: unexpected field count in reference-transaction line: %q", line)
	}
	old, err := parseZeroableWithAlgo(algo, fields[0])
	if err != nil {
		return ParsedReferenceUpdate{}, fmt.Errorf("hooks: parse old oid in %q: %w", line, err)
	}
	next, err := parseZeroableWithAlgo(algo, fields[1])
	if err != nil {
		return ParsedReferenceUpdate{}, fmt.Errorf("hooks: parse new oid in %q: %w", line, err)
	}
	return ParsedReferenceUpdate{
		RefName: refname.Name(fields[2]),
		OldOid:  old,
		NewOid:  next,
	}, nil
}

func parseZeroableWithAlgo(algo oid.Algo, hexOid string) (oid.Zeroable, error) {
	if z, err := oid.ParseZeroable(hexOid); err == nil {
		return z, nil
	}
	// A zero OID under the "other" supported width (e.g. the repo is
	// SHA-256 but a hook fired with a SHA-1-shaped zero) still means
	// "nothing"; only a genuinely malformed string is an error.
	if strings.Trim(hexOid, "0") == "" {
		return oid.ZeroOf(algo), nil
	}
	return oid.Zeroable{}, oid.ErrMalformed
}

// ReadPackedRefsFile reads the host VCS's packed-refs file, used to resolve
// the "apparent creation/deletion" ambiguity FixPackedReferenceOid handles.
// A missing file parses as empty, matching git's own "no packed refs yet"
// state.
func ReadPackedRefsFile(algo oid.Algo, gitDir string) (map[refname.Name]oid.Zeroable, error) {
	result := make(map[refname.Name]oid.Zeroable)
	f, err := os.Open(filepath.Join(gitDir, "packed-refs"))
	if os.IsNotExist(err) {
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hooks: open packed-refs: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "^") {
			continue
		}
		refOid, name, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		z, err := oid.ParseZeroable(refOid)
		if err != nil {
			_ = trace.Errorf("hooks: unrecognized packed-refs line %q: %v", line, err)
			continue
		}
		result[refname.Name(name)] = z
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("hooks: scan packed-refs: %w", err)
	}
	return result, nil
}

// FixPackedReferenceOid corrects the "apparent creation, then apparent
// deletion" pair Git reports when a loose reference is packed: if the
// update claims a ref was created (old==Zero) but packed-refs already maps
// it to the same new OID, the update really was a no-op pack operation, so
// old is rewritten to equal new (and symmetrically for apparent deletion).
func FixPackedReferenceOid(packed map[refname.Name]oid.Zeroable, update ParsedReferenceUpdate) ParsedReferenceUpdate {
	if update.OldOid.IsZero() {
		if p, ok := packed[update.RefName]; ok && p.Equal(update.NewOid) {
			return ParsedReferenceUpdate{RefName: update.RefName, OldOid: update.NewOid, NewOid: update.NewOid}
		}
	}
	if update.NewOid.IsZero() {
		if p, ok := packed[update.RefName]; ok && p.Equal(update.OldOid) {
			return ParsedReferenceUpdate{RefName: update.RefName, OldOid: update.OldOid, NewOid: update.OldOid}
		}
	}
	return update
}

// ParseReferenceTransactionInput reads every line of r (the hook's stdin),
// applying the packed-refs fixup and dropping every name that is not
// tracked (refname.IsTracked: ignored names, remote branches, tags and
// other refs). Malformed lines are logged and skipped rather than
// aborting the whole transaction, degrading gracefully instead.
func ParseReferenceTransactionInput(algo oid.Algo, gitDir string, r io.Reader) ([]ParsedReferenceUpdate, error) {
	packed, err := ReadPackedRefsFile(algo, gitDir)
	if err != nil {
		return nil, err
	}
	var updates []ParsedReferenceUpdate
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		update, err := ParseReferenceTransactionLine(algo, line)
		if err != nil {
			_ = trace.Errorf("hooks: %v", err)
			continue
		}
		if !refname.IsTracked(update.RefName) {
			continue
		}
		updates = append(updates, FixPackedReferenceOid(packed, update))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("hooks: scan reference-transaction input: %w", err)
	}
	return updates, nil
}
