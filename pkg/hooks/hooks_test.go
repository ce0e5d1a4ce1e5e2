package hooks

import (
	"context"
	"strings"
	"testing"

	"github.com/antgroup/branchless/modules/eventlog"
	"github.com/antgroup/branchless/modules/oid"
	"github.com/antgroup/branchless/modules/refname"
	"github.com/stretchr/testify/require"
)

func hex(b byte) string {
	s := ""
	for i := 0; i < 40; i++ {
		s += string(rune('a' + b%6))
	}
	return s
}

func TestParseReferenceTransactionLine(t *testing.T) {
	line := hex(0) + " " + hex(1) + " refs/heads/mybranch"
	update, err := ParseReferenceTransactionLine(oid.AlgoSHA1, line)
	require.NoError(t, err)
	require.Equal(t, refname.Name("refs/heads/mybranch"), update.RefName)
	old, ok := update.OldOid.Oid()
	require.True(t, ok)
	require.Equal(t, hex(0), old.String())
}

func TestParseReferenceTransactionLineBadFieldCount(t *testing.T) {
	_, err := ParseReferenceTransactionLine(oid.AlgoSHA1, "there are not three fields here")
	require.Error(t, err)
}

func TestParseReferenceTransactionLineZero(t *testing.T) {
	zero := strings.Repeat("0", 40)
	line := zero + " " + hex(0) + " refs/heads/new"
	update, err := ParseReferenceTransactionLine(oid.AlgoSHA1, line)
	require.NoError(t, err)
	require.True(t, update.OldOid.IsZero())
}

func TestFixPackedReferenceOidCreate(t *testing.T) {
	name := refname.Name("refs/heads/foo")
	newOid := oid.FromOid(oid.MustParse(hex(0)))
	packed := map[refname.Name]oid.Zeroable{name: newOid}
	update := ParsedReferenceUpdate{RefName: name, OldOid: oid.ZeroOf(oid.AlgoSHA1), NewOid: newOid}
	fixed := FixPackedReferenceOid(packed, update)
	old, ok := fixed.OldOid.Oid()
	require.True(t, ok)
	require.True(t, old.Equal(oid.MustParse(hex(0))))
}

func TestFixPackedReferenceOidDelete(t *testing.T) {
	name := refname.Name("refs/heads/foo")
	oldOid := oid.FromOid(oid.MustParse(hex(0)))
	packed := map[refname.Name]oid.Zeroable{name: oldOid}
	update := ParsedReferenceUpdate{RefName: name, OldOid: oldOid, NewOid: oid.ZeroOf(oid.AlgoSHA1)}
	fixed := FixPackedReferenceOid(packed, update)
	require.False(t, fixed.NewOid.IsZero())
}

func TestReadRewrittenListEntries(t *testing.T) {
	input := hex(0) + " " + hex(1) + "\n" + hex(2) + " " + strings.Repeat("0", 40) + "\n"
	entries, err := ReadRewrittenListEntries(oid.AlgoSHA1, strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, hex(0), entries[0].Old.String())
	require.True(t, entries[1].New.IsZero())
}

func TestAddRewrittenListEntriesRoundTrip(t *testing.T) {
	gitDir := t.TempDir()
	old1, err := oid.ParseNonZero(hex(0))
	require.NoError(t, err)
	require.NoError(t, AddRewrittenListEntries(oid.AlgoSHA1, gitDir, []RewrittenEntry{
		{Old: old1, New: oid.FromOid(oid.MustParse(hex(1)))},
	}))

	stored, err := readRewrittenListFile(oid.AlgoSHA1, rewrittenListPath(gitDir))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, hex(0), stored[0].Old.String())

	// A later call for the same old OID overwrites rather than duplicates.
	require.NoError(t, AddRewrittenListEntries(oid.AlgoSHA1, gitDir, []RewrittenEntry{
		{Old: old1, New: oid.ZeroOf(oid.AlgoSHA1)},
	}))
	stored, err = readRewrittenListFile(oid.AlgoSHA1, rewrittenListPath(gitDir))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.True(t, stored[0].New.IsZero())
}

func TestRegisterExtraPostRewriteHook(t *testing.T) {
	gitDir := t.TempDir()
	require.False(t, HasExtraPostRewriteHook(gitDir))
	require.NoError(t, RegisterExtraPostRewriteHook(gitDir))
	require.True(t, HasExtraPostRewriteHook(gitDir))
}

func TestSaveLoadOriginalHeadInfo(t *testing.T) {
	gitDir := t.TempDir()
	info := HeadInfo{
		Oid:           oid.FromOid(oid.MustParse(hex(0))),
		ReferenceName: refname.Name("refs/heads/main"),
	}
	require.NoError(t, SaveOriginalHeadInfo(gitDir, info))
	loaded, err := LoadOriginalHeadInfo(oid.AlgoSHA1, gitDir)
	require.NoError(t, err)
	require.Equal(t, info.ReferenceName, loaded.ReferenceName)
	o, ok := loaded.Oid.Oid()
	require.True(t, ok)
	require.Equal(t, hex(0), o.String())
}

func TestDropCommitIfEmptyNoop(t *testing.T) {
	gitDir := t.TempDir()
	headOid, err := oid.ParseNonZero(hex(0))
	require.NoError(t, err)
	parentOid, err := oid.ParseNonZero(hex(1))
	require.NoError(t, err)
	dropped, err := DropCommitIfEmpty(oid.AlgoSHA1, gitDir, headOid, false, parentOid, oid.ZeroOf(oid.AlgoSHA1))
	require.NoError(t, err)
	require.False(t, dropped)
}

func TestDropCommitIfEmpty(t *testing.T) {
	gitDir := t.TempDir()
	headOid, err := oid.ParseNonZero(hex(0))
	require.NoError(t, err)
	parentOid, err := oid.ParseNonZero(hex(1))
	require.NoError(t, err)
	dropped, err := DropCommitIfEmpty(oid.AlgoSHA1, gitDir, headOid, true, parentOid, oid.FromNonZero(headOid))
	require.NoError(t, err)
	require.True(t, dropped)

	updated, ok, err := LoadUpdatedHeadOid(gitDir)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, updated.Equal(parentOid))
}

func mustTxID(t *testing.T, store *eventlog.Store, label string) eventlog.TxID {
	t.Helper()
	id, err := store.MakeTransactionID(context.Background(), 1.0, label)
	require.NoError(t, err)
	return id
}

func TestHandlePostRewriteRecordsRewrites(t *testing.T) {
	gitDir := t.TempDir()
	store, err := eventlog.Open(t.TempDir() + "/events.db")
	require.NoError(t, err)
	defer store.Close()

	old1, err := oid.ParseNonZero(hex(0))
	require.NoError(t, err)
	new1 := oid.FromOid(oid.MustParse(hex(1)))

	rewritten, err := HandlePostRewrite(context.Background(), store, oid.AlgoSHA1, gitDir, 1.0, "rebase", false, []RewrittenEntry{
		{Old: old1, New: new1},
	})
	require.NoError(t, err)
	require.Len(t, rewritten, 1)
	require.True(t, rewritten[old1].Equal(new1))
}

func TestHandlePostRewriteSpuriousAmendSkipped(t *testing.T) {
	gitDir := t.TempDir()
	store, err := eventlog.Open(t.TempDir() + "/events.db")
	require.NoError(t, err)
	defer store.Close()

	rewritten, err := HandlePostRewrite(context.Background(), store, oid.AlgoSHA1, gitDir, 1.0, "amend", true, nil)
	require.NoError(t, err)
	require.Nil(t, rewritten)
}
