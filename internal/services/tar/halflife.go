package tar

import (
	"fmt"
	"math"
)

// Halflife returns ln(0.5)/ln(1+rho), the number of periods for a deviation
// outside the band to halve. For rho > 0 the deviation grows instead and the
// result is negative.
func Halflife(rho float64) (float64, error) {
	if rho == 0 {
		return math.NaN(), fmt.Errorf("%w: rho is zero", ErrUndefinedHalflife)
	}
	if 1+rho <= 0 {
		return math.NaN(), fmt.Errorf("%w: 1+rho = %g is not positive", ErrUndefinedHalflife, 1+rho)
	}
	h := math.Log(0.5) / math.Log(1+rho)
	if math.IsNaN(h) || math.IsInf(h, 0) {
		return math.NaN(), fmt.Errorf("%w: rho %g gives %g", ErrUndefinedHalflife, rho, h)
	}
	return h, nil
}
