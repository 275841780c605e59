package tar

import "errors"

var (
	// ErrInsufficientData is returned when the series is too short to form a lagged pair.
	ErrInsufficientData = errors.New("tar: insufficient data")
	// ErrInvalidSeries is returned for series holding NaN or infinite values.
	ErrInvalidSeries = errors.New("tar: invalid series")
	// ErrNoAdmissibleThreshold is returned when no candidate passes the regime share filter.
	ErrNoAdmissibleThreshold = errors.New("tar: no admissible threshold")
	// ErrDegenerateRegression is returned when the predictor column is constant.
	ErrDegenerateRegression = errors.New("tar: degenerate regression")
	// ErrUndefinedHalflife is returned when ln(1+ρ̂) is undefined or zero.
	ErrUndefinedHalflife = errors.New("tar: undefined halflife")
	// ErrInvalidOptions is returned for out of range estimation options.
	ErrInvalidOptions = errors.New("tar: invalid options")
)
