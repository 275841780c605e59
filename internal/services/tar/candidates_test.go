package tar

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidatesScenario(t *testing.T) {
	m := []float64{0, 1, -2, 15, -16, 2}

	// |m| = {0,1,2,15,16,2}: θ=0 leaves 1/6 inside, θ=15 and θ=16 leave at most 1/6 outside.
	want := map[float64]bool{0: false, 1: true, 2: true, 15: false, 16: false}
	for theta, ok := range want {
		assert.Equal(t, ok, Admissible(m, theta, DefaultMinRegimeShare), "theta=%v", theta)
	}

	got, err := Candidates(m, DefaultMinRegimeShare)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, got)

	inside, outside := RegimeShares(m, 2)
	assert.InDelta(t, 4.0/6, inside, 1e-12)
	assert.InDelta(t, 2.0/6, outside, 1e-12)
}

func TestCandidatesProperties(t *testing.T) {
	s := testSeries(t, 7, 400)
	m := s.Differences()

	got, err := Candidates(m, DefaultMinRegimeShare)
	require.NoError(t, err)
	require.NotEmpty(t, got)

	for i, theta := range got {
		if i > 0 {
			require.Greater(t, theta, got[i-1], "candidates must be strictly increasing")
		}
		inside, outside := RegimeShares(m, theta)
		assert.GreaterOrEqual(t, inside, DefaultMinRegimeShare)
		assert.GreaterOrEqual(t, outside, DefaultMinRegimeShare)
	}

	kept := make(map[float64]bool, len(got))
	for _, theta := range got {
		kept[theta] = true
	}
	for _, v := range m {
		a := math.Abs(v)
		assert.Equal(t, Admissible(m, a, DefaultMinRegimeShare), kept[a], "|m|=%v", a)
	}
}

func TestCandidatesErrors(t *testing.T) {
	_, err := Candidates([]float64{3, -3, 3, 3}, DefaultMinRegimeShare)
	require.ErrorIs(t, err, ErrNoAdmissibleThreshold)

	_, err = Candidates([]float64{1, 2, 3}, 0)
	require.ErrorIs(t, err, ErrInvalidOptions)

	_, err = Candidates([]float64{1, 2, 3}, 0.6)
	require.ErrorIs(t, err, ErrInvalidOptions)
}

func TestThin(t *testing.T) {
	c := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	assert.Equal(t, c, Thin(c, 0))
	assert.Equal(t, c, Thin(c, 20))
	assert.Equal(t, []float64{1}, Thin(c, 1))

	got := Thin(c, 4)
	require.Len(t, got, 4)
	assert.Equal(t, 1.0, got[0])
	assert.Equal(t, 10.0, got[3])
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i], got[i-1])
	}
}
