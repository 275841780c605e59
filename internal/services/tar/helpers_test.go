package tar

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

// testSeries draws a band TAR series with ρ=-0.5 outside |m| > 10.
func testSeries(t *testing.T, seed uint64, n int) *Series {
	t.Helper()
	return testSeriesPath(t, seed, n, Constant(10))
}

func testSeriesPath(t *testing.T, seed uint64, n int, tr Trajectory) *Series {
	t.Helper()
	r := rand.New(rand.NewPCG(seed, seed+1))
	m := make([]float64, n)
	m[0] = 8 * r.NormFloat64()
	for i := 1; i < n; i++ {
		prev := m[i-1]
		if math.Abs(prev) > tr.At(i-1, n-1) {
			prev *= 0.5
		}
		m[i] = prev + 8*r.NormFloat64()
	}
	s, err := FromDifferences(m)
	require.NoError(t, err)
	return s
}
