package tar

import (
	"fmt"
	"math"
	"slices"
)

// DefaultMinRegimeShare is the minimum fraction of observations each side of
// the band must hold for a threshold to be admissible.
const DefaultMinRegimeShare = 0.20

// RegimeShares returns the fractions of m with |m_t| <= theta and |m_t| > theta.
func RegimeShares(m []float64, theta float64) (inside, outside float64) {
	if len(m) == 0 {
		return 0, 0
	}
	in := 0
	for _, v := range m {
		if math.Abs(v) <= theta {
			in++
		}
	}
	n := float64(len(m))
	return float64(in) / n, float64(len(m)-in) / n
}

// Admissible reports whether theta leaves at least share of m on both sides of the band.
func Admissible(m []float64, theta, share float64) bool {
	inside, outside := RegimeShares(m, theta)
	return inside >= share && outside >= share
}

// Candidates returns the admissible thresholds of m in strictly increasing order.
func Candidates(m []float64, share float64) ([]float64, error) {
	if err := validShare(share); err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("%w: empty series", ErrInsufficientData)
	}
	sorted := make([]float64, len(m))
	for i, v := range m {
		sorted[i] = math.Abs(v)
	}
	slices.Sort(sorted)

	n := float64(len(sorted))
	var out []float64
	for i, v := range sorted {
		// only the last index of a run of equal values counts every |m_t| <= v
		if i+1 < len(sorted) && sorted[i+1] == v {
			continue
		}
		in := i + 1
		inside := float64(in) / n
		outside := float64(len(sorted)-in) / n
		if inside >= share && outside >= share {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %d observations, share %.2f", ErrNoAdmissibleThreshold, len(m), share)
	}
	return out, nil
}

// Candidates returns the admissible thresholds of the series.
func (s *Series) Candidates(share float64) ([]float64, error) {
	return Candidates(s.m, share)
}

// Thin keeps at most limit evenly spaced candidates, always including the
// first and the last. A non-positive limit keeps everything.
func Thin(candidates []float64, limit int) []float64 {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	if limit == 1 {
		return candidates[:1]
	}
	out := make([]float64, limit)
	last := len(candidates) - 1
	for i := range out {
		out[i] = candidates[i*last/(limit-1)]
	}
	return out
}

func validShare(share float64) error {
	if math.IsNaN(share) || share <= 0 || share > 0.5 {
		return fmt.Errorf("%w: regime share %v outside (0, 0.5]", ErrInvalidOptions, share)
	}
	return nil
}
