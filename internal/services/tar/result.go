package tar

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// CurvePoint is the RSS of one constant threshold.
type CurvePoint struct {
	Threshold  float64
	RSS        float64
	Degenerate bool
}

// ConstantResult is the outcome of a constant threshold search.
type ConstantResult struct {
	// Threshold is the RSS minimiser, or the mean of the tied minimisers.
	Threshold float64
	// Ties lists every candidate reaching MinRSS.
	Ties     []float64
	MinRSS   float64
	Fit      FitResult
	Halflife float64
	Rows     int
	Curve    []CurvePoint
}

// Rho returns the fitted adjustment coefficient.
func (r *ConstantResult) Rho() float64 { return r.Fit.Rho }

// SurfacePoint is the RSS of one (first, last) trajectory.
type SurfacePoint struct {
	First      float64
	Last       float64
	RSS        float64
	Degenerate bool
}

// TimeVaryingResult is the outcome of a time-varying threshold search.
type TimeVaryingResult struct {
	ThetaFirst float64
	ThetaLast  float64
	Ties       []Trajectory
	MinRSS     float64
	Fit        FitResult
	Halflife   float64
	Rows       int
	Candidates []float64
	// Surface is row-major: Surface[i*len(Candidates)+j] holds (Candidates[i], Candidates[j]).
	Surface []SurfacePoint
}

// Rho returns the fitted adjustment coefficient.
func (r *TimeVaryingResult) Rho() float64 { return r.Fit.Rho }

// At returns the surface point for first endpoint i and last endpoint j.
func (r *TimeVaryingResult) At(i, j int) SurfacePoint {
	return r.Surface[i*len(r.Candidates)+j]
}

// Trajectory returns the selected threshold path.
func (r *TimeVaryingResult) Trajectory() Trajectory {
	return Linear(r.ThetaFirst, r.ThetaLast)
}

func assembleConstant(rows int, candidates, rss []float64, best float64, tied []float64, fit FitResult) (*ConstantResult, error) {
	res := &ConstantResult{
		Threshold: stat.Mean(tied, nil),
		Ties:      tied,
		MinRSS:    best,
		Fit:       fit,
		Rows:      rows,
		Curve:     make([]CurvePoint, len(candidates)),
	}
	for i, c := range candidates {
		res.Curve[i] = CurvePoint{Threshold: c, RSS: rss[i], Degenerate: math.IsNaN(rss[i])}
	}
	h, err := Halflife(fit.Rho)
	res.Halflife = h
	return res, err
}

func assembleTimeVarying(rows int, candidates, rss []float64, best float64, tied []Trajectory, fit FitResult) (*TimeVaryingResult, error) {
	firsts := make([]float64, len(tied))
	lasts := make([]float64, len(tied))
	for i, tr := range tied {
		firsts[i], lasts[i] = tr.First, tr.Last
	}
	k := len(candidates)
	res := &TimeVaryingResult{
		ThetaFirst: stat.Mean(firsts, nil),
		ThetaLast:  stat.Mean(lasts, nil),
		Ties:       tied,
		MinRSS:     best,
		Fit:        fit,
		Rows:       rows,
		Candidates: clone(candidates),
		Surface:    make([]SurfacePoint, k*k),
	}
	for i, a := range candidates {
		for j, b := range candidates {
			v := rss[i*k+j]
			res.Surface[i*k+j] = SurfacePoint{First: a, Last: b, RSS: v, Degenerate: math.IsNaN(v)}
		}
	}
	h, err := Halflife(fit.Rho)
	res.Halflife = h
	return res, err
}
