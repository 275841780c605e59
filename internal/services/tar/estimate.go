package tar

import "context"

// EstimateConstant generates the admissible candidates of s and runs the
// constant threshold search. An undefined halflife is reported through an
// error matching ErrUndefinedHalflife alongside a usable result.
func EstimateConstant(ctx context.Context, s *Series, opts Options) (*ConstantResult, error) {
	cands, opts, err := prepare(s, opts)
	if err != nil {
		return nil, err
	}
	return SearchConstant(ctx, s, cands, opts)
}

// EstimateTimeVarying generates the admissible candidates of s and runs the
// pair search over them.
func EstimateTimeVarying(ctx context.Context, s *Series, opts Options) (*TimeVaryingResult, error) {
	cands, opts, err := prepare(s, opts)
	if err != nil {
		return nil, err
	}
	return SearchTimeVarying(ctx, s, cands, opts)
}

func prepare(s *Series, opts Options) ([]float64, Options, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, opts, err
	}
	cands, err := s.Candidates(opts.MinRegimeShare)
	if err != nil {
		return nil, opts, err
	}
	return Thin(cands, opts.MaxCandidates), opts, nil
}
