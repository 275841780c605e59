// Package tar estimates Threshold Autoregressive (TAR) models by grid search.
//
// The model works on the first differences m of a level series and regresses
// dm_t = m_t - m_{t-1} on x_t = m_{t-1} * 1{|m_{t-1}| > θ_t} without an intercept.
// The fitted coefficient ρ̂ measures adjustment outside the band [-θ, θ];
// inside the band the series is left to drift.
//
// # Basic Usage
//
//	s, err := tar.Difference(levels)
//	if err != nil {
//	    return err
//	}
//	res, err := tar.EstimateConstant(ctx, s, tar.Options{})
//	if errors.Is(err, tar.ErrUndefinedHalflife) {
//	    // res is still valid; res.Halflife is NaN
//	}
//
// # Threshold Variants
//
// The constant variant searches a single θ over the admissible candidate set.
// The time-varying variant searches every ordered pair (θ_first, θ_last) and
// interpolates the threshold linearly across the regression rows:
//
//	θ_t = θ_first + (θ_last - θ_first) * t / (T - 1)
//
// Candidates are the distinct values of |m_t| that leave at least
// MinRegimeShare of the observations on each side of the band.
//
// # Ties
//
// When several candidates reach exactly the same minimal RSS the selected
// threshold is the mean of the tied candidates. The tied set is returned as
// well so callers can apply another policy.
//
// # Concurrency
//
// Searches split the candidates (or the first endpoints of the pair grid) into
// contiguous chunks, one per worker. Workers write disjoint regions of a
// pre-sized surface; the argmin runs after all workers have joined.
package tar
