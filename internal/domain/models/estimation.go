package models

import (
	"math"
	"time"
)

// Variant selects the threshold search.
type Variant string

const (
	VariantConstant    Variant = "constant"
	VariantTimeVarying Variant = "timevarying"
)

// Valid reports whether v names a known search.
func (v Variant) Valid() bool {
	return v == VariantConstant || v == VariantTimeVarying
}

// EstimateRequest carries one series and the search options. Exactly one of
// Levels or Differences must be set.
type EstimateRequest struct {
	Levels         []float64 `json:"levels,omitempty" validate:"required_without=Differences,excluded_with=Differences"`
	Differences    []float64 `json:"differences,omitempty" validate:"required_without=Levels"`
	MinRegimeShare float64   `json:"min_regime_share,omitempty" validate:"omitempty,gt=0,lte=0.5"`
	MaxCandidates  int       `json:"max_candidates" validate:"gte=0"`
	Workers        int       `json:"workers" validate:"gte=0,lte=256"`
	// OmitDiagnostics drops the RSS curve or surface from the response.
	OmitDiagnostics bool   `json:"omit_diagnostics"`
	Label           string `json:"label,omitempty" validate:"max=128"`
}

// SeriesLen returns the number of observations supplied.
func (r *EstimateRequest) SeriesLen() int {
	if len(r.Levels) > 0 {
		return len(r.Levels)
	}
	return len(r.Differences)
}

// CurvePoint is one evaluated constant threshold. RSS is null for
// degenerate regressions.
type CurvePoint struct {
	Threshold float64  `json:"threshold"`
	RSS       *float64 `json:"rss"`
}

// SurfacePoint is one evaluated (first, last) trajectory.
type SurfacePoint struct {
	First float64  `json:"first"`
	Last  float64  `json:"last"`
	RSS   *float64 `json:"rss"`
}

// Trajectory is a linear threshold path from First to Last.
type Trajectory struct {
	First float64 `json:"first"`
	Last  float64 `json:"last"`
}

// Halflife is null when undefined; Error then says why.
type Halflife struct {
	Value *float64 `json:"value"`
	Error string   `json:"error,omitempty"`
}

// ConstantEstimate is the outcome of a constant threshold search.
type ConstantEstimate struct {
	RunID      string       `json:"run_id"`
	Threshold  float64      `json:"threshold"`
	Ties       []float64    `json:"ties,omitempty"`
	RhoHat     float64      `json:"rho_hat"`
	Intercept  float64      `json:"intercept"`
	MinRSS     float64      `json:"min_rss"`
	Halflife   Halflife     `json:"halflife"`
	Rows       int          `json:"rows"`
	Candidates int          `json:"candidates"`
	RSSCurve   []CurvePoint `json:"rss_curve,omitempty"`
	ElapsedMS  int64        `json:"elapsed_ms"`
	Cached     bool         `json:"cached"`
}

// TimeVaryingEstimate is the outcome of a time-varying threshold search.
type TimeVaryingEstimate struct {
	RunID      string         `json:"run_id"`
	ThetaFirst float64        `json:"theta_first"`
	ThetaLast  float64        `json:"theta_last"`
	Ties       []Trajectory   `json:"ties,omitempty"`
	RhoHat     float64        `json:"rho_hat"`
	Intercept  float64        `json:"intercept"`
	MinRSS     float64        `json:"min_rss"`
	Halflife   Halflife       `json:"halflife"`
	Rows       int            `json:"rows"`
	Candidates int            `json:"candidates"`
	RSSSurface []SurfacePoint `json:"rss_surface,omitempty"`
	ElapsedMS  int64          `json:"elapsed_ms"`
	Cached     bool           `json:"cached"`
}

// FloatPtr returns nil for NaN so JSON gets null instead of an encode error.
func FloatPtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Progress reports completed regressions of a running search.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Run is the persisted summary of one estimation.
type Run struct {
	ID            string    `json:"id"`
	Variant       Variant   `json:"variant"`
	Label         string    `json:"label,omitempty"`
	SeriesHash    string    `json:"series_hash"`
	Observations  int       `json:"observations"`
	Rows          int       `json:"rows"`
	Candidates    int       `json:"candidates"`
	ThetaFirst    float64   `json:"theta_first"`
	ThetaLast     float64   `json:"theta_last"`
	RhoHat        float64   `json:"rho_hat"`
	Intercept     float64   `json:"intercept"`
	MinRSS        float64   `json:"min_rss"`
	Halflife      *float64  `json:"halflife"`
	HalflifeError string    `json:"halflife_error,omitempty"`
	Ties          int       `json:"ties"`
	ElapsedMS     int64     `json:"elapsed_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// RSSPoint is one stored curve or surface entry. Constant runs store
// First == Last; degenerate regressions have a nil RSS.
type RSSPoint struct {
	RunID string   `json:"run_id"`
	First float64  `json:"first"`
	Last  float64  `json:"last"`
	RSS   *float64 `json:"rss"`
}

// RunDetail is a run with its diagnostics.
type RunDetail struct {
	Run    *Run       `json:"run"`
	Points []RSSPoint `json:"points,omitempty"`
}
