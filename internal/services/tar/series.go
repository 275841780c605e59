package tar

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Series is an immutable first-difference series with its regression view.
//
// For t = 1..M-1 the view holds the predictor base m_{t-1}, its absolute
// value and the response dm_t = m_t - m_{t-1}. Row r of the view corresponds
// to t = r+1.
type Series struct {
	m    []float64
	prev []float64
	abs  []float64
	dm   []float64
	flat bool
}

// Difference builds the series from raw levels. The first observation has no
// difference and is dropped, so at least three levels are needed.
func Difference(levels []float64) (*Series, error) {
	if len(levels) < 3 {
		return nil, fmt.Errorf("%w: need at least 3 levels, got %d", ErrInsufficientData, len(levels))
	}
	if err := checkFinite(levels); err != nil {
		return nil, err
	}
	m := make([]float64, len(levels)-1)
	floats.SubTo(m, levels[1:], levels[:len(levels)-1])
	if err := checkFinite(m); err != nil {
		return nil, err
	}
	return newSeries(m), nil
}

// FromDifferences builds the series from an already differenced input.
func FromDifferences(m []float64) (*Series, error) {
	if len(m) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 differences, got %d", ErrInsufficientData, len(m))
	}
	if err := checkFinite(m); err != nil {
		return nil, err
	}
	cp := make([]float64, len(m))
	copy(cp, m)
	return newSeries(cp), nil
}

func newSeries(m []float64) *Series {
	rows := len(m) - 1
	s := &Series{
		m:    m,
		prev: m[:rows],
		abs:  make([]float64, rows),
		dm:   make([]float64, rows),
	}
	floats.SubTo(s.dm, m[1:], m[:rows])
	for i, v := range s.prev {
		s.abs[i] = math.Abs(v)
	}
	s.flat = floats.Max(s.prev) == floats.Min(s.prev)
	return s
}

func checkFinite(xs []float64) error {
	for i, v := range xs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value at index %d", ErrInvalidSeries, i)
		}
	}
	return nil
}

// Len returns M, the number of differences.
func (s *Series) Len() int { return len(s.m) }

// Rows returns the number of regression rows, M-1.
func (s *Series) Rows() int { return len(s.dm) }

// Differences returns a copy of m.
func (s *Series) Differences() []float64 { return clone(s.m) }

// Lagged returns a copy of m_{t-1} for t = 1..M-1.
func (s *Series) Lagged() []float64 { return clone(s.prev) }

// Response returns a copy of dm_t for t = 1..M-1.
func (s *Series) Response() []float64 { return clone(s.dm) }

func clone(xs []float64) []float64 {
	out := make([]float64, len(xs))
	copy(out, xs)
	return out
}
