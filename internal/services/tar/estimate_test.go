package tar_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TarLab/internal/services/simulate"
	"TarLab/internal/services/tar"
)

func estimate(t *testing.T, cfg simulate.Config) *tar.ConstantResult {
	t.Helper()
	levels, err := simulate.Generate(cfg)
	require.NoError(t, err)
	s, err := tar.Difference(levels)
	require.NoError(t, err)
	res, err := tar.EstimateConstant(context.Background(), s, tar.Options{})
	require.NoError(t, err)
	return res
}

func TestEstimateConstantRecoversReference(t *testing.T) {
	if testing.Short() {
		t.Skip("long simulation")
	}
	cfg := simulate.Reference()
	res := estimate(t, cfg)

	assert.InDelta(t, cfg.Threshold, res.Threshold, 1.0)
	assert.InDelta(t, cfg.Rho, res.Rho(), 0.1)
	assert.InDelta(t, 1.0, res.Halflife, 0.4)
}

func TestEstimateConstantConverges(t *testing.T) {
	if testing.Short() {
		t.Skip("long simulation")
	}
	meanErr := func(n int) float64 {
		total := 0.0
		const seeds = 8
		for seed := uint64(100); seed < 100+seeds; seed++ {
			cfg := simulate.Reference()
			cfg.Seed, cfg.N = seed, n
			res := estimate(t, cfg)
			total += math.Abs(res.Rho()-cfg.Rho) + math.Abs(res.Threshold-cfg.Threshold)/cfg.Threshold
		}
		return total / seeds
	}
	small, large := meanErr(1000), meanErr(5000)
	assert.Less(t, large, small)
}

func TestEstimateTimeVaryingRecoversPath(t *testing.T) {
	if testing.Short() {
		t.Skip("long simulation")
	}
	cfg := simulate.Reference()
	cfg.N, cfg.Threshold = 2001, 6
	cfg = cfg.WithThresholdLast(14)
	levels, err := simulate.Generate(cfg)
	require.NoError(t, err)
	s, err := tar.Difference(levels)
	require.NoError(t, err)

	res, err := tar.EstimateTimeVarying(context.Background(), s, tar.Options{MaxCandidates: 40})
	require.NoError(t, err)

	assert.InDelta(t, 6, res.ThetaFirst, 2.5)
	assert.InDelta(t, 14, res.ThetaLast, 2.5)
	assert.Less(t, res.ThetaFirst, res.ThetaLast)
	assert.InDelta(t, -0.5, res.Rho(), 0.15)
	assert.Len(t, res.Candidates, 40)
}

func TestEstimateErrors(t *testing.T) {
	s, err := tar.FromDifferences([]float64{3, 3, -3, 3})
	require.NoError(t, err)
	_, err = tar.EstimateConstant(context.Background(), s, tar.Options{})
	require.ErrorIs(t, err, tar.ErrNoAdmissibleThreshold)

	s, err = tar.FromDifferences([]float64{0, 1, -2, 15, -16, 2})
	require.NoError(t, err)
	_, err = tar.EstimateTimeVarying(context.Background(), s, tar.Options{MinRegimeShare: 0.7})
	require.ErrorIs(t, err, tar.ErrInvalidOptions)
}
