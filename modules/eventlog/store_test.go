package eventlog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/antgroup/branchless/modules/oid"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "event-log"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddEventsReplayIsPrefixOfAppendOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	tx1, err := s.MakeTransactionID(ctx, 1.0, "test-one")
	require.NoError(t, err)
	c1 := oid.MustParse("1111111111111111111111111111111111111111")
	require.NoError(t, s.AddEvents(ctx, []Event{CommitEvent(tx1, 1.0, mustNonZero(c1))}))

	cursorAfterFirst, err := s.LatestCursor(ctx)
	require.NoError(t, err)

	tx2, err := s.MakeTransactionID(ctx, 2.0, "test-two")
	require.NoError(t, err)
	c2 := oid.MustParse("2222222222222222222222222222222222222222")
	require.NoError(t, s.AddEvents(ctx, []Event{CommitEvent(tx2, 2.0, mustNonZero(c2))}))

	got, err := s.GetEventsUpTo(ctx, cursorAfterFirst)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, KindCommit, got[0].Kind)
	require.True(t, got[0].CommitOid.Equal(mustNonZero(c1)))

	all, err := s.GetEventsUpTo(ctx, Cursor(1<<62))
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestEmptyAddEventsIsNoop(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.AddEvents(ctx, nil))
	cur, err := s.LatestCursor(ctx)
	require.NoError(t, err)
	require.Equal(t, Cursor(0), cur)
}

func mustNonZero(o oid.Oid) oid.NonZeroOid {
	n, err := oid.NewNonZero(o)
	if err != nil {
		panic(err)
	}
	return n
}
