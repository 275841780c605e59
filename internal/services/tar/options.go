package tar

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Options tunes an estimation run. The zero value is usable.
type Options struct {
	// MinRegimeShare is the admissibility share, DefaultMinRegimeShare when zero.
	MinRegimeShare float64
	// Workers bounds the number of search goroutines, GOMAXPROCS when zero.
	Workers int
	// MaxCandidates thins the admissible set before searching; zero keeps all.
	MaxCandidates int
	// Progress receives the running count of finished evaluations. It may be
	// called concurrently from several workers.
	Progress func(done, total int)
}

func (o Options) withDefaults() Options {
	if o.MinRegimeShare == 0 {
		o.MinRegimeShare = DefaultMinRegimeShare
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	return o
}

func (o Options) validate() error {
	if err := validShare(o.MinRegimeShare); err != nil {
		return err
	}
	if o.MaxCandidates < 0 {
		return fmt.Errorf("%w: max candidates %d", ErrInvalidOptions, o.MaxCandidates)
	}
	return nil
}

type progress struct {
	total int
	done  atomic.Int64
	fn    func(done, total int)
}

func newProgress(total int, fn func(done, total int)) *progress {
	return &progress{total: total, fn: fn}
}

func (p *progress) add(n int) {
	if p.fn == nil {
		return
	}
	p.fn(int(p.done.Add(int64(n))), p.total)
}

// partition runs fn over contiguous chunks [lo, hi) of n items, one goroutine
// per chunk, and waits for all of them.
func partition(ctx context.Context, n, workers int, fn func(ctx context.Context, lo, hi int) error) error {
	if n == 0 {
		return nil
	}
	if workers > n {
		workers = n
	}
	size := (n + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		g.Go(func() error { return fn(gctx, lo, hi) })
	}
	return g.Wait()
}
