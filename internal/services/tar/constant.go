package tar

import (
	"context"
	"fmt"
	"math"
)

// SearchConstant evaluates every candidate threshold and selects the RSS
// minimiser. Degenerate candidates are kept in the curve with a NaN RSS and
// never win.
func SearchConstant(ctx context.Context, s *Series, candidates []float64, opts Options) (*ConstantResult, error) {
	opts = opts.withDefaults()
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: empty candidate set", ErrNoAdmissibleThreshold)
	}

	rss := make([]float64, len(candidates))
	prog := newProgress(len(candidates), opts.Progress)
	err := partition(ctx, len(candidates), opts.Workers, func(ctx context.Context, lo, hi int) error {
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, v, ok := s.evaluateConstant(candidates[i])
			if !ok {
				v = math.NaN()
			}
			rss[i] = v
			prog.add(1)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("constant search: %w", err)
	}

	best, idx := argmin(rss)
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w: all %d candidates", ErrDegenerateRegression, len(candidates))
	}
	tied := make([]float64, len(idx))
	for k, i := range idx {
		tied[k] = candidates[i]
	}
	fit, err := s.FitAt(Constant(tied[0]))
	if err != nil {
		return nil, err
	}
	return assembleConstant(s.Rows(), candidates, rss, best, tied, fit)
}

// argmin returns the smallest non-NaN value and every index holding it.
func argmin(rss []float64) (best float64, idx []int) {
	best = math.Inf(1)
	for i, v := range rss {
		switch {
		case math.IsNaN(v):
		case v < best:
			best = v
			idx = append(idx[:0], i)
		case v == best:
			idx = append(idx, i)
		}
	}
	return best, idx
}
