package tar

import (
	"context"
	"fmt"
	"math"
)

// SearchTimeVarying evaluates every ordered pair (first, last) of candidates,
// including decreasing paths, and selects the RSS minimiser. The surface is
// stored row-major by first endpoint.
func SearchTimeVarying(ctx context.Context, s *Series, candidates []float64, opts Options) (*TimeVaryingResult, error) {
	opts = opts.withDefaults()
	k := len(candidates)
	if k == 0 {
		return nil, fmt.Errorf("%w: empty candidate set", ErrNoAdmissibleThreshold)
	}

	rss := make([]float64, k*k)
	prog := newProgress(k*k, opts.Progress)
	err := partition(ctx, k, opts.Workers, func(ctx context.Context, lo, hi int) error {
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			row := rss[i*k : (i+1)*k]
			for j, last := range candidates {
				_, v, ok := s.evaluate(Linear(candidates[i], last))
				if !ok {
					v = math.NaN()
				}
				row[j] = v
			}
			prog.add(k)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("time-varying search: %w", err)
	}

	best, idx := argmin(rss)
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w: all %d candidate pairs", ErrDegenerateRegression, k*k)
	}
	tied := make([]Trajectory, len(idx))
	for n, p := range idx {
		tied[n] = Linear(candidates[p/k], candidates[p%k])
	}
	fit, err := s.FitAt(tied[0])
	if err != nil {
		return nil, err
	}
	return assembleTimeVarying(s.Rows(), candidates, rss, best, tied, fit)
}
