package tar

// Trajectory is a threshold path over the regression rows. A constant
// threshold has First == Last.
type Trajectory struct {
	First float64 `json:"first"`
	Last  float64 `json:"last"`
}

// Constant returns a trajectory holding theta on every row.
func Constant(theta float64) Trajectory { return Trajectory{First: theta, Last: theta} }

// Linear returns the trajectory interpolating from first to last.
func Linear(first, last float64) Trajectory { return Trajectory{First: first, Last: last} }

// IsConstant reports whether the trajectory is flat.
func (tr Trajectory) IsConstant() bool { return tr.First == tr.Last }

// At returns θ_t for row t of rows. The endpoints are returned exactly.
func (tr Trajectory) At(t, rows int) float64 {
	if tr.First == tr.Last || rows < 2 {
		return tr.First
	}
	if t >= rows-1 {
		return tr.Last
	}
	return tr.First + (tr.Last-tr.First)*float64(t)/float64(rows-1)
}

// Path returns θ_t for every row.
func (tr Trajectory) Path(rows int) []float64 {
	out := make([]float64, rows)
	for t := range out {
		out[t] = tr.At(t, rows)
	}
	return out
}

// RegimeColumn is the regime indicator and design column for one trajectory.
type RegimeColumn struct {
	Theta []float64
	Z     []float64
	X     []float64
}

// Outside returns how many rows fall outside the band.
func (c RegimeColumn) Outside() int {
	n := 0
	for _, z := range c.Z {
		if z != 0 {
			n++
		}
	}
	return n
}

// Regime computes z_t = 1{|m_{t-1}| > θ_t} and x_t = m_{t-1} * z_t.
func (s *Series) Regime(tr Trajectory) RegimeColumn {
	rows := len(s.dm)
	col := RegimeColumn{
		Theta: tr.Path(rows),
		Z:     make([]float64, rows),
		X:     make([]float64, rows),
	}
	for t, a := range s.abs {
		if a > col.Theta[t] {
			col.Z[t] = 1
			col.X[t] = s.prev[t]
		}
	}
	return col
}

// FitAt runs the regression for the trajectory and keeps the residuals.
func (s *Series) FitAt(tr Trajectory) (FitResult, error) {
	col := s.Regime(tr)
	return Fit(col.X, s.dm)
}
