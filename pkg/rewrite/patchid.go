package rewrite

import (
	"context"
	"fmt"
	"sync"

	"github.com/antgroup/branchless/modules/command"
	"github.com/antgroup/branchless/modules/git"
	"github.com/antgroup/branchless/modules/oid"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/zeebo/blake3"
)

// PatchID is a commit's canonicalized-diff digest: two commits with the
// same PatchID introduced the same change, which is how the builder
// detects a commit whose content already landed upstream.
type PatchID [32]byte

func (p PatchID) String() string {
	return fmt.Sprintf("%x", p[:])
}

// PatchIDCache memoizes PatchID-by-commit-OID across builder invocations
// within one long-lived process, keyed on the commit's own OID (a commit's
// diff against its first parent never changes once written). Backed by
// ristretto, a read-mostly, concurrency-safe, cost-bounded cache over
// immutable keys.
type PatchIDCache struct {
	cache *ristretto.Cache[string, PatchID]
}

// NewPatchIDCache constructs a cache sized for maxEntries patch IDs.
func NewPatchIDCache(maxEntries int64) (*PatchIDCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, PatchID]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("rewrite: new patch id cache: %w", err)
	}
	return &PatchIDCache{cache: c}, nil
}

// computePatchID runs `git diff-tree` between a commit and its first
// parent (the empty tree, for a root commit) and hashes the canonical
// patch text with blake3, a strong, fast hash well suited to this kind
// of content-addressed digest.
func computePatchID(ctx context.Context, gitDir string, algo oid.Algo, commitOid, parentOid oid.Oid) (PatchID, error) {
	from := hashAlgoOf(algo).EmptyTreeID()
	if !parentOid.IsZero() {
		from = parentOid.String()
	}
	stderr := command.NewStderr()
	cmd := command.NewFromOptions(ctx, &command.RunOpts{RepoPath: gitDir, Stderr: stderr},
		"git", "diff-tree", "-p", "--no-color", from, commitOid.String())
	out, err := cmd.Output()
	if err != nil {
		return PatchID{}, fmt.Errorf("rewrite: diff-tree %s: %w: %s", commitOid, err, stderr.String())
	}
	h := blake3.New()
	_, _ = h.Write(out)
	var id PatchID
	copy(id[:], h.Sum(nil))
	return id, nil
}

// PatchIDOf returns commitOid's PatchID, computing and caching it on a
// miss.
func (c *PatchIDCache) PatchIDOf(ctx context.Context, gitDir string, algo oid.Algo, commitOid, parentOid oid.Oid) (PatchID, error) {
	key := commitOid.String()
	if id, ok := c.cache.Get(key); ok {
		return id, nil
	}
	id, err := computePatchID(ctx, gitDir, algo, commitOid, parentOid)
	if err != nil {
		return PatchID{}, err
	}
	c.cache.Set(key, id, 1)
	return id, nil
}

// hashAlgoOf maps this package's oid.Algo to modules/git's HashAlgo, the
// type EmptyTreeID is defined on.
func hashAlgoOf(a oid.Algo) git.HashAlgo {
	switch a {
	case oid.AlgoSHA1:
		return git.HashAlgoSHA1
	case oid.AlgoSHA256:
		return git.HashAlgoSHA256
	default:
		return git.HashAlgoUNKNOWN
	}
}

// commitParent bundles the inputs PatchIDOf needs for one commit, so
// PatchIDsOf can fan a batch out across a worker pool.
type commitParent struct {
	Commit oid.Oid
	Parent oid.Oid
}

// PatchIDsOf computes a PatchID per entry concurrently, bounded by
// workers. The returned map always has one entry per input on success;
// the first job error cancels the rest.
func (c *PatchIDCache) PatchIDsOf(ctx context.Context, gitDir string, algo oid.Algo, entries []commitParent, workers int) (map[oid.Oid]PatchID, error) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(entries) && len(entries) > 0 {
		workers = len(entries)
	}
	results := make(map[oid.Oid]PatchID, len(entries))
	var mu sync.Mutex

	handles := make([]string, workers)
	for i := range handles {
		handles[i] = gitDir
	}
	err := runPooled(ctx, handles, len(entries), func(ctx context.Context, dir string, i int) error {
		e := entries[i]
		id, err := c.PatchIDOf(ctx, dir, algo, e.Commit, e.Parent)
		if err != nil {
			return err
		}
		mu.Lock()
		results[e.Commit] = id
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
