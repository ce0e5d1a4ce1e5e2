package hooks

import (
	"context"
	"fmt"

	"github.com/antgroup/branchless/modules/eventlog"
	"github.com/antgroup/branchless/modules/oid"
)

// HandlePostCheckout implements Git's `post-checkout` hook: record a
// RefUpdate event for HEAD moving from previousHeadOid to currentHeadOid.
// isBranchCheckout is the hook's third argument (1 for a branch/commit
// checkout, 0 for a file-level checkout, which we ignore).
func HandlePostCheckout(ctx context.Context, store *eventlog.Store, algo oid.Algo, now float64, previousHeadOid, currentHeadOid string, isBranchCheckout bool) error {
	if !isBranchCheckout {
		return nil
	}
	old, err := parseZeroableWithAlgo(algo, previousHeadOid)
	if err != nil {
		return fmt.Errorf("hooks: post-checkout: parse previous HEAD oid: %w", err)
	}
	next, err := parseZeroableWithAlgo(algo, currentHeadOid)
	if err != nil {
		return fmt.Errorf("hooks: post-checkout: parse current HEAD oid: %w", err)
	}

	txID, err := store.MakeTransactionID(ctx, now, "hook-post-checkout")
	if err != nil {
		return fmt.Errorf("hooks: post-checkout: make transaction: %w", err)
	}
	event := eventlog.RefUpdateEvent(txID, now, "HEAD", old, next, "")
	return store.AddEvents(ctx, []eventlog.Event{event})
}
