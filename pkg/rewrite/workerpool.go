package rewrite

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// handlePool is a buffered channel of borrowed repository handles: acquire
// blocks until one is available and returns a closer that returns it,
// implementing the "acquire yields a scoped handle... jobs must not
// retain the handle past their execution" contract the builder's
// worker pool follows. handle is opaque to this package — gitDir strings
// are cheap enough that every job in this package currently just reuses
// the same one, but the pool stays generic so a future handle type (an
// open *git.Decoder, say) can be swapped in without touching callers.
type handlePool[T any] struct {
	handles chan T
}

// newHandlePool seeds a pool with exactly the handles supplied; size is
// implied by len(seed).
func newHandlePool[T any](seed []T) *handlePool[T] {
	p := &handlePool[T]{handles: make(chan T, len(seed))}
	for _, h := range seed {
		p.handles <- h
	}
	return p
}

// acquire blocks until a handle is available, returning it and a release
// function the caller must invoke exactly once, and must not call again
// after releasing the handle back.
func (p *handlePool[T]) acquire(ctx context.Context) (T, func(), error) {
	var zero T
	select {
	case h := <-p.handles:
		return h, func() { p.handles <- h }, nil
	case <-ctx.Done():
		return zero, func() {}, ctx.Err()
	}
}

// runPooled runs jobs against a handlePool of size len(seed), bounded by
// an errgroup.Group worker limit equal to the pool size.
func runPooled[T any](ctx context.Context, seed []T, n int, job func(ctx context.Context, h T, i int) error) error {
	pool := newHandlePool(seed)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(seed))
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			h, release, err := pool.acquire(gctx)
			if err != nil {
				return err
			}
			defer release()
			return job(gctx, h, i)
		})
	}
	return g.Wait()
}
