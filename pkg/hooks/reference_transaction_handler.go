package hooks

import (
	"context"
	"fmt"
	"io"

	"github.com/antgroup/branchless/modules/eventlog"
	"github.com/antgroup/branchless/modules/oid"
)

// HandleReferenceTransaction implements Git's `reference-transaction` hook:
// parse every `<old-oid> <new-oid> <ref-name>` line from r and, if the
// transaction actually committed, record one RefUpdate event per update
// sharing a single transaction id. Git invokes this hook three times per
// transaction ("prepared", "committed", "aborted"); only "committed" should
// ever reach the event log, so every other state is a silent no-op.
func HandleReferenceTransaction(ctx context.Context, store *eventlog.Store, algo oid.Algo, gitDir string, now float64, transactionState string, r io.Reader) (int, error) {
	if transactionState != "committed" {
		return 0, nil
	}

	updates, err := ParseReferenceTransactionInput(algo, gitDir, r)
	if err != nil {
		return 0, fmt.Errorf("hooks: reference-transaction: %w", err)
	}
	if len(updates) == 0 {
		return 0, nil
	}

	txID, err := store.MakeTransactionID(ctx, now, "hook-reference-transaction")
	if err != nil {
		return 0, fmt.Errorf("hooks: reference-transaction: make transaction: %w", err)
	}
	events := make([]eventlog.Event, 0, len(updates))
	for _, u := range updates {
		events = append(events, eventlog.RefUpdateEvent(txID, now, eventlog.Name(u.RefName), u.OldOid, u.NewOid, ""))
	}
	if err := store.AddEvents(ctx, events); err != nil {
		return 0, fmt.Errorf("hooks: reference-transaction: add events: %w", err)
	}
	return len(updates), nil
}
