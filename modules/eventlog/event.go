// Package eventlog implements the append-only, transactionally grouped
// event store: the core's single durable record of every reference change,
// commit creation, obsolescence marking, and working-copy snapshot.
package eventlog

import "github.com/antgroup/branchless/modules/oid"

// Kind discriminates an Event's payload. Go has no tagged-union type, so
// Event is one flat struct carrying every payload's fields (unused ones
// left at their zero value) discriminated by Kind — the same flat shape
// the store round-trips through SQL rows.
type Kind int8

const (
	KindUnknown Kind = iota
	KindRefUpdate
	KindCommit
	KindRewrite
	KindObsolete
	KindUnobsolete
	KindWorkingCopySnapshot
)

func (k Kind) String() string {
	switch k {
	case KindRefUpdate:
		return "ref-update"
	case KindCommit:
		return "commit"
	case KindRewrite:
		return "rewrite"
	case KindObsolete:
		return "obsolete"
	case KindUnobsolete:
		return "unobsolete"
	case KindWorkingCopySnapshot:
		return "working-copy-snapshot"
	default:
		return "unknown"
	}
}

// TxID groups every Event produced by one logical user action. All events
// sharing a TxID are semantically atomic for undo purposes.
type TxID int64

// Event is the append-only record unit. Timestamp is informational only;
// correctness never depends on its monotonicity.
type Event struct {
	ID        int64 // row id; also serves as the Cursor value
	Timestamp float64
	TxID      TxID
	Kind      Kind

	// RefUpdate payload.
	RefName Name
	OldOid  oid.Zeroable
	NewOid  oid.Zeroable
	Message string

	// Commit / Obsolete / Unobsolete payload.
	CommitOid oid.NonZeroOid

	// Rewrite payload (old/new reuse OldOid/NewOid above).

	// WorkingCopySnapshot payload.
	HeadOid oid.Zeroable
}

// Name is a reference name stored as raw bytes, matching
// modules/refname.Name without introducing a package-cycle: eventlog
// stores bytes and leaves categorization to its callers.
type Name = string

// Cursor is an immutable index into the event sequence. The zero Cursor
// denotes "before any event" and is a valid argument to GetEventsUpTo.
type Cursor int64

// RefUpdateEvent constructs a RefUpdate event payload.
func RefUpdateEvent(txID TxID, ts float64, refName Name, old, new oid.Zeroable, message string) Event {
	return Event{Timestamp: ts, TxID: txID, Kind: KindRefUpdate, RefName: refName, OldOid: old, NewOid: new, Message: message}
}

// CommitEvent constructs a Commit event payload.
func CommitEvent(txID TxID, ts float64, commitOid oid.NonZeroOid) Event {
	return Event{Timestamp: ts, TxID: txID, Kind: KindCommit, CommitOid: commitOid}
}

// RewriteEvent constructs a Rewrite event payload.
func RewriteEvent(txID TxID, ts float64, old, new oid.Zeroable) Event {
	return Event{Timestamp: ts, TxID: txID, Kind: KindRewrite, OldOid: old, NewOid: new}
}

// ObsoleteEvent constructs an Obsolete event payload.
func ObsoleteEvent(txID TxID, ts float64, commitOid oid.NonZeroOid) Event {
	return Event{Timestamp: ts, TxID: txID, Kind: KindObsolete, CommitOid: commitOid}
}

// UnobsoleteEvent constructs an Unobsolete event payload.
func UnobsoleteEvent(txID TxID, ts float64, commitOid oid.NonZeroOid) Event {
	return Event{Timestamp: ts, TxID: txID, Kind: KindUnobsolete, CommitOid: commitOid}
}

// WorkingCopySnapshotEvent constructs a WorkingCopySnapshot event payload.
func WorkingCopySnapshotEvent(txID TxID, ts float64, headOid oid.Zeroable, refName Name, commitOid oid.NonZeroOid) Event {
	return Event{Timestamp: ts, TxID: txID, Kind: KindWorkingCopySnapshot, HeadOid: headOid, RefName: refName, CommitOid: commitOid}
}
