package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, "info", c.Logger.Level)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 0.2, c.Estimator.MinRegimeShare)
	assert.Equal(t, 150, c.Estimator.MaxPairCandidates)
	assert.Equal(t, 2*time.Minute, c.Estimator.Timeout)
	assert.Equal(t, uint64(1), c.Simulation.Seed)
	assert.Equal(t, 5001, c.Simulation.N)
	assert.Equal(t, -0.5, c.Simulation.Rho)
	assert.Equal(t, "tarlab.jobs", c.Kafka.JobsTopic)
	assert.Equal(t, -1, c.Kafka.Producer.RequiredAcks)
}

func TestParseKeepsExplicitFalse(t *testing.T) {
	c, err := Parse([]byte("server:\n  cors: false\nmetrics:\n  enabled: false\n"))
	require.NoError(t, err)
	assert.False(t, c.Server.CORS)
	assert.False(t, c.Metrics.Enabled)
	assert.True(t, c.RateLimit.Enabled)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"share above half": "estimator:\n  min_regime_share: 0.6\n",
		"positive rho":     "simulation:\n  rho: 0.3\n",
		"bad level":        "logger:\n  level: loud\n",
		"kafka no brokers": "kafka:\n  enabled: true\n",
		"queue no redis":   "queue:\n  enabled: true\n",
		"bad yaml":         "server: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadRepositoryConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 10.0, c.Simulation.Threshold)
	assert.Equal(t, []string{"localhost:9092"}, c.Kafka.Brokers)
}

func TestApplyEnv(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	env := map[string]string{
		"TARLAB_PORT":          "9090",
		"TARLAB_WORKERS":       "3",
		"TARLAB_KAFKA_BROKERS": "a:9092,b:9092",
		"TARLAB_KAFKA_ENABLED": "true",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }
	require.NoError(t, c.applyEnv(lookup))

	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, 3, c.Estimator.Workers)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
	require.NoError(t, c.Validate())

	env["TARLAB_PORT"] = "eighty"
	assert.Error(t, c.applyEnv(lookup))
}

func TestLoadWithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: test\n"), 0o600))
	t.Setenv("TARLAB_LOG_LEVEL", "debug")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "test", c.Environment)
	assert.Equal(t, "debug", c.Logger.Level)
}
