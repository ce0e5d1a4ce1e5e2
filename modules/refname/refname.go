// Package refname implements reference-name categorization and the
// event-log ignore list. Every function here is pure: a reference name's
// category, its short display form, and whether it is ignored are all
// functions of the byte string alone, never of repository state. Names are
// treated as byte strings throughout, never assumed to be valid UTF-8.
package refname

import "bytes"

const (
	refPrefix      = "refs/"
	HeadsPrefix    = refPrefix + "heads/"
	TagsPrefix     = refPrefix + "tags/"
	RemotesPrefix  = refPrefix + "remotes/"
	BranchlessRoot = refPrefix + "branchless/"
)

// Name is a reference name. It is a distinct type from string so that call
// sites cannot accidentally pass an unrelated string where a reference name
// is expected, while still being directly convertible to/from []byte.
type Name string

// Category classifies a reference name for event-log purposes.
type Category int

const (
	// CategoryOther covers tags and any reference outside refs/heads and
	// refs/remotes/<remote> — e.g. refs/notes/*, refs/tags/*.
	CategoryOther Category = iota
	CategoryLocalBranch
	CategoryRemoteBranch
)

// Categorize classifies name. It is a pure function of the string.
func Categorize(name Name) Category {
	s := string(name)
	switch {
	case hasPrefix(s, HeadsPrefix):
		return CategoryLocalBranch
	case hasPrefix(s, RemotesPrefix):
		return CategoryRemoteBranch
	default:
		return CategoryOther
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// ignoredNames are exact reference names the event log never records,
// because the host VCS manages them as ephemeral, process-local pointers
// rather than durable branch state.
var ignoredNames = map[string]struct{}{
	"HEAD":             {},
	"ORIG_HEAD":        {},
	"FETCH_HEAD":       {},
	"MERGE_HEAD":       {},
	"CHERRY_PICK_HEAD": {},
}

// IsIgnored reports whether name must never appear in a RefUpdate event:
// either it is one of the host VCS's transient pointers, or it falls under
// this tool's own private refs/branchless/* namespace.
func IsIgnored(name Name) bool {
	s := string(name)
	if _, ok := ignoredNames[s]; ok {
		return true
	}
	return hasPrefix(s, BranchlessRoot)
}

// IsTracked reports whether name is one the event log records at all:
// local branches only, per the hook state machine's reference-transaction
// handling (remote branches and "other refs" such as tags are dropped).
func IsTracked(name Name) bool {
	if IsIgnored(name) {
		return false
	}
	return Categorize(name) == CategoryLocalBranch
}

// Short strips a well-known prefix for display, following the host VCS's
// shorten_unambiguous_ref convention closely enough for this core's own
// diagnostics (full disambiguation against ambiguous short names is the
// renderer's job, out of scope here).
func Short(name Name) string {
	s := string(name)
	switch {
	case hasPrefix(s, HeadsPrefix):
		return s[len(HeadsPrefix):]
	case hasPrefix(s, RemotesPrefix):
		return s[len(RemotesPrefix):]
	case hasPrefix(s, TagsPrefix):
		return s[len(TagsPrefix):]
	default:
		return s
	}
}

// WithHeadsPrefix reapplies refs/heads/ if name does not already carry a
// refs/ prefix of some kind.
func WithHeadsPrefix(name Name) Name {
	s := string(name)
	if hasPrefix(s, refPrefix) {
		return name
	}
	return Name(HeadsPrefix + s)
}

// Bytes returns the reference name's raw bytes, for parsers (packed-refs,
// transaction lines) that must not assume text encoding.
func Bytes(name Name) []byte { return []byte(name) }

// Equal compares two reference names byte-for-byte.
func Equal(a, b Name) bool { return bytes.Equal([]byte(a), []byte(b)) }
