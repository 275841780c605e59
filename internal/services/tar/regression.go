package tar

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// FitResult is one no-intercept least squares fit of dm on x.
type FitResult struct {
	Rho       float64   `json:"rho_hat"`
	Intercept float64   `json:"intercept"`
	Residuals []float64 `json:"-"`
	RSS       float64   `json:"rss"`
}

// Fit regresses y on x through the origin.
func Fit(x, y []float64) (FitResult, error) {
	if len(x) != len(y) {
		return FitResult{}, fmt.Errorf("%w: predictor has %d rows, response %d", ErrInvalidSeries, len(x), len(y))
	}
	if len(x) == 0 {
		return FitResult{}, fmt.Errorf("%w: empty regression", ErrInsufficientData)
	}
	if len(x) > 1 && floats.Max(x) == floats.Min(x) {
		return FitResult{}, fmt.Errorf("%w: predictor column is constant", ErrDegenerateRegression)
	}
	sxx := floats.Dot(x, x)
	if sxx == 0 {
		return FitResult{}, fmt.Errorf("%w: predictor has no variation", ErrDegenerateRegression)
	}
	rho := floats.Dot(x, y) / sxx
	res := floats.AddScaledTo(make([]float64, len(y)), y, -rho, x)
	return FitResult{Rho: rho, Residuals: res, RSS: floats.Dot(res, res)}, nil
}

// evaluateConstant is the allocation free fit used by the searches.
func (s *Series) evaluateConstant(theta float64) (rho, rss float64, ok bool) {
	var sxx, sxy float64
	out := 0
	for t, a := range s.abs {
		x, z := s.prev[t], 1
		if a <= theta {
			x, z = 0, 0
		}
		sxx += x * x
		sxy += x * s.dm[t]
		out += z
	}
	if s.degenerate(out, sxx) {
		return 0, 0, false
	}
	rho = sxy / sxx
	for t, a := range s.abs {
		x := s.prev[t]
		if a <= theta {
			x = 0
		}
		r := s.dm[t] - rho*x
		rss += r * r
	}
	return rho, rss, true
}

func (s *Series) evaluateLinear(tr Trajectory) (rho, rss float64, ok bool) {
	rows := len(s.dm)
	var sxx, sxy float64
	out := 0
	for t, a := range s.abs {
		x, z := s.prev[t], 1
		if a <= tr.At(t, rows) {
			x, z = 0, 0
		}
		sxx += x * x
		sxy += x * s.dm[t]
		out += z
	}
	if s.degenerate(out, sxx) {
		return 0, 0, false
	}
	rho = sxy / sxx
	for t, a := range s.abs {
		x := s.prev[t]
		if a <= tr.At(t, rows) {
			x = 0
		}
		r := s.dm[t] - rho*x
		rss += r * r
	}
	return rho, rss, true
}

func (s *Series) evaluate(tr Trajectory) (rho, rss float64, ok bool) {
	if tr.IsConstant() {
		return s.evaluateConstant(tr.First)
	}
	return s.evaluateLinear(tr)
}

// degenerate reports a constant design column: all rows inside the band, or
// every row outside while m_{t-1} never changes.
func (s *Series) degenerate(outside int, sxx float64) bool {
	if outside == 0 || sxx == 0 {
		return true
	}
	return outside == len(s.dm) && len(s.dm) > 1 && s.flat
}
