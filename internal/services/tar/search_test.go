package tar

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchConstantBruteForce(t *testing.T) {
	s := testSeries(t, 11, 500)
	cands, err := s.Candidates(DefaultMinRegimeShare)
	require.NoError(t, err)

	res, err := SearchConstant(context.Background(), s, cands, Options{Workers: 4})
	require.NoError(t, err)
	require.Len(t, res.Curve, len(cands))

	bruteMin := math.Inf(1)
	for i, c := range cands {
		fit, err := s.FitAt(Constant(c))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Curve[i].RSS, 0.0)
		assert.InEpsilon(t, fit.RSS, res.Curve[i].RSS, 1e-9)
		bruteMin = math.Min(bruteMin, fit.RSS)
	}
	assert.InEpsilon(t, bruteMin, res.MinRSS, 1e-9)
	assert.InEpsilon(t, bruteMin, res.Fit.RSS, 1e-9)
	assert.GreaterOrEqual(t, res.Threshold, res.Ties[0])
	assert.LessOrEqual(t, res.Threshold, res.Ties[len(res.Ties)-1])
}

func TestSearchConstantTiesAverage(t *testing.T) {
	s, err := FromDifferences([]float64{0, 1, -2, 15, -16, 2})
	require.NoError(t, err)

	// no |m_{t-1}| falls in (1.2, 1.8], so both thresholds give the same column
	res, err := SearchConstant(context.Background(), s, []float64{1.2, 1.8}, Options{})
	require.ErrorIs(t, err, ErrUndefinedHalflife, "rho below -1 has no halflife")
	require.NotNil(t, res)

	assert.Equal(t, []float64{1.2, 1.8}, res.Ties)
	assert.InDelta(t, 1.5, res.Threshold, 1e-12)
	assert.InDelta(t, -787.0/485.0, res.Rho(), 1e-12)
	assert.True(t, math.IsNaN(res.Halflife))
}

func TestSearchConstantDegenerate(t *testing.T) {
	s, err := FromDifferences([]float64{0, 1, -2, 15, -16, 2})
	require.NoError(t, err)

	res, err := SearchConstant(context.Background(), s, []float64{1, 100}, Options{})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Curve[0].Degenerate)
	assert.True(t, res.Curve[1].Degenerate)
	assert.True(t, math.IsNaN(res.Curve[1].RSS))
	assert.Equal(t, 1.0, res.Threshold)

	_, err = SearchConstant(context.Background(), s, []float64{100}, Options{})
	require.ErrorIs(t, err, ErrDegenerateRegression)

	_, err = SearchConstant(context.Background(), s, nil, Options{})
	require.ErrorIs(t, err, ErrNoAdmissibleThreshold)
}

func TestEstimateAdmissibleButDegenerate(t *testing.T) {
	// The only admissible threshold, 1, leaves every lagged value inside the band.
	s, err := FromDifferences([]float64{1, 1, 1, 1, 10})
	require.NoError(t, err)
	cands, err := s.Candidates(DefaultMinRegimeShare)
	require.NoError(t, err)
	require.Equal(t, []float64{1}, cands)

	_, err = EstimateConstant(context.Background(), s, Options{})
	require.ErrorIs(t, err, ErrDegenerateRegression)
	_, err = EstimateTimeVarying(context.Background(), s, Options{})
	require.ErrorIs(t, err, ErrDegenerateRegression)
}

func TestEstimatePartlyDegenerateCandidates(t *testing.T) {
	// Lags 1..4 with responses 1,1,1,6. θ=4 is admissible but no row is outside.
	s, err := FromDifferences([]float64{1, 2, 3, 4, 10})
	require.NoError(t, err)
	cands, err := s.Candidates(DefaultMinRegimeShare)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3, 4}, cands)

	res, err := EstimateConstant(context.Background(), s, Options{Workers: 2})
	require.NoError(t, err)
	require.Len(t, res.Curve, 4)
	last := res.Curve[3]
	assert.Equal(t, 4.0, last.Threshold)
	assert.True(t, last.Degenerate)
	assert.True(t, math.IsNaN(last.RSS))
	for _, p := range res.Curve[:3] {
		assert.False(t, p.Degenerate)
	}
	assert.InDelta(t, 10, res.Curve[0].RSS, 1e-12)
	assert.InDelta(t, 3, res.Curve[2].RSS, 1e-12)
	assert.Equal(t, 3.0, res.Threshold)
	assert.Equal(t, []float64{3}, res.Ties)
	assert.InDelta(t, 3, res.MinRSS, 1e-12)
	assert.InDelta(t, 1.5, res.Rho(), 1e-12)
	assert.Less(t, res.Halflife, 0.0, "an explosive rho gives a negative halflife")

	tv, err := EstimateTimeVarying(context.Background(), s, Options{Workers: 3})
	require.NoError(t, err)
	corner := tv.At(3, 3)
	assert.True(t, corner.Degenerate)
	assert.True(t, math.IsNaN(corner.RSS))
	assert.False(t, math.IsNaN(tv.MinRSS))
	assert.LessOrEqual(t, tv.MinRSS, 3+1e-12)
	for _, tr := range tv.Ties {
		assert.NotEqual(t, Constant(4), tr)
	}
}

func TestSearchConstantWorkersAgree(t *testing.T) {
	s := testSeries(t, 5, 400)
	cands, err := s.Candidates(DefaultMinRegimeShare)
	require.NoError(t, err)

	one, err := SearchConstant(context.Background(), s, cands, Options{Workers: 1})
	require.NoError(t, err)
	many, err := SearchConstant(context.Background(), s, cands, Options{Workers: 7})
	require.NoError(t, err)

	assert.Equal(t, one.Curve, many.Curve)
	assert.Equal(t, one.Threshold, many.Threshold)
}

func TestSearchTimeVaryingDiagonalMatchesConstant(t *testing.T) {
	s := testSeries(t, 21, 300)
	cands, err := s.Candidates(DefaultMinRegimeShare)
	require.NoError(t, err)
	cands = Thin(cands, 25)

	constant, err := SearchConstant(context.Background(), s, cands, Options{})
	require.NoError(t, err)
	tv, err := SearchTimeVarying(context.Background(), s, cands, Options{Workers: 3})
	require.NoError(t, err)

	require.Len(t, tv.Surface, len(cands)*len(cands))
	for i := range cands {
		p := tv.At(i, i)
		assert.Equal(t, cands[i], p.First)
		assert.Equal(t, cands[i], p.Last)
		assert.Equal(t, constant.Curve[i].RSS, p.RSS)
	}
	assert.LessOrEqual(t, tv.MinRSS, constant.MinRSS)
}

func TestSearchTimeVaryingDirectionMatters(t *testing.T) {
	s := testSeriesPath(t, 9, 400, Linear(4, 16))
	cands, err := s.Candidates(DefaultMinRegimeShare)
	require.NoError(t, err)
	cands = Thin(cands, 12)

	tv, err := SearchTimeVarying(context.Background(), s, cands, Options{})
	require.NoError(t, err)

	last := len(cands) - 1
	up, down := tv.At(0, last), tv.At(last, 0)
	assert.Equal(t, cands[0], up.First)
	assert.Equal(t, cands[0], down.Last)
	assert.NotEqual(t, up.RSS, down.RSS)
}

func TestSearchTimeVaryingArgmin(t *testing.T) {
	s := testSeriesPath(t, 13, 300, Linear(5, 15))
	cands, err := s.Candidates(DefaultMinRegimeShare)
	require.NoError(t, err)
	cands = Thin(cands, 15)

	tv, err := SearchTimeVarying(context.Background(), s, cands, Options{})
	require.NoError(t, err)

	for _, p := range tv.Surface {
		if p.Degenerate {
			continue
		}
		assert.GreaterOrEqual(t, p.RSS, tv.MinRSS)
		assert.GreaterOrEqual(t, p.RSS, 0.0)
	}
	var firsts, lasts float64
	for _, tr := range tv.Ties {
		firsts += tr.First
		lasts += tr.Last
	}
	n := float64(len(tv.Ties))
	assert.InDelta(t, firsts/n, tv.ThetaFirst, 1e-12)
	assert.InDelta(t, lasts/n, tv.ThetaLast, 1e-12)
	assert.InEpsilon(t, tv.MinRSS, tv.Fit.RSS, 1e-9)
}

func TestSearchProgress(t *testing.T) {
	s := testSeries(t, 2, 200)
	cands, err := s.Candidates(DefaultMinRegimeShare)
	require.NoError(t, err)
	cands = Thin(cands, 10)

	var mu sync.Mutex
	seen, total := 0, 0
	opts := Options{Workers: 4, Progress: func(done, n int) {
		mu.Lock()
		defer mu.Unlock()
		seen = max(seen, done)
		total = n
	}}
	_, err = SearchTimeVarying(context.Background(), s, cands, opts)
	require.NoError(t, err)
	assert.Equal(t, 100, total)
	assert.Equal(t, 100, seen)
}

func TestSearchCancelled(t *testing.T) {
	s := testSeries(t, 2, 200)
	cands, err := s.Candidates(DefaultMinRegimeShare)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = SearchTimeVarying(ctx, s, cands, Options{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestArgmin(t *testing.T) {
	best, idx := argmin([]float64{3, 1, math.NaN(), 1, 2})
	assert.Equal(t, 1.0, best)
	assert.Equal(t, []int{1, 3}, idx)

	_, idx = argmin([]float64{math.NaN()})
	assert.Empty(t, idx)
}
