// Package simulate generates level series following a threshold
// autoregressive process, for validating the estimator.
package simulate

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"TarLab/internal/services/tar"
)

var ErrInvalidConfig = errors.New("simulate: invalid config")

// Config is the full parameterisation of one simulated series. It is passed
// by value and never modified.
type Config struct {
	Seed  uint64  `json:"seed" yaml:"seed"`
	N     int     `json:"n" yaml:"n"`
	Noise float64 `json:"noise" yaml:"noise"`
	Rho   float64 `json:"rho" yaml:"rho"`
	// Threshold is θ at the first row, and on every row when ThresholdLast is nil.
	Threshold     float64  `json:"threshold" yaml:"threshold"`
	ThresholdLast *float64 `json:"threshold_last,omitempty" yaml:"threshold_last"`
	Start         float64  `json:"start" yaml:"start"`
}

// Reference returns the reference simulation: N=5001, ρ=-0.5, θ=10.
func Reference() Config {
	return Config{Seed: 1, N: 5001, Noise: 8, Rho: -0.5, Threshold: 10}
}

// WithThresholdLast returns a copy of c whose threshold moves linearly to last.
func (c Config) WithThresholdLast(last float64) Config {
	c.ThresholdLast = &last
	return c
}

// Trajectory returns the threshold path driving the simulation.
func (c Config) Trajectory() tar.Trajectory {
	if c.ThresholdLast == nil {
		return tar.Constant(c.Threshold)
	}
	return tar.Linear(c.Threshold, *c.ThresholdLast)
}

// Validate checks that the config describes a series the estimator can use.
func (c Config) Validate() error {
	switch {
	case c.N < 3:
		return fmt.Errorf("%w: n=%d, need at least 3", ErrInvalidConfig, c.N)
	case !(c.Noise > 0) || math.IsInf(c.Noise, 0):
		return fmt.Errorf("%w: noise %v must be positive", ErrInvalidConfig, c.Noise)
	case c.Threshold < 0 || (c.ThresholdLast != nil && *c.ThresholdLast < 0):
		return fmt.Errorf("%w: thresholds must be non-negative", ErrInvalidConfig)
	case c.Rho <= -2 || c.Rho > 0:
		return fmt.Errorf("%w: rho %v outside (-2, 0]", ErrInvalidConfig, c.Rho)
	}
	return nil
}

// Differences draws the M = N-1 first differences:
//
//	m_t = m_{t-1} + ρ·m_{t-1}·1{|m_{t-1}| > θ_t} + ε_t,  ε_t ~ N(0, Noise²)
//
// θ_t follows the same row indexing as the estimator, so row t-1 drives m_t.
func Differences(c Config) ([]float64, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	eps := distuv.Normal{Mu: 0, Sigma: c.Noise, Src: rand.NewPCG(c.Seed, c.Seed^0x9e3779b97f4a7c15)}
	tr := c.Trajectory()

	size := c.N - 1
	rows := size - 1
	m := make([]float64, size)
	m[0] = eps.Rand()
	for t := 1; t < size; t++ {
		prev := m[t-1]
		adj := 0.0
		if math.Abs(prev) > tr.At(t-1, rows) {
			adj = c.Rho * prev
		}
		m[t] = prev + adj + eps.Rand()
	}
	return m, nil
}

// Generate returns N levels starting at c.Start whose first differences follow
// the configured process.
func Generate(c Config) ([]float64, error) {
	m, err := Differences(c)
	if err != nil {
		return nil, err
	}
	levels := make([]float64, c.N)
	levels[0] = c.Start
	for i, d := range m {
		levels[i+1] = levels[i] + d
	}
	return levels, nil
}
