package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"TarLab/pkg/logger"
)

type Config struct {
	Environment string        `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	Logger      logger.Config `yaml:"logger"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"5m"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORS            bool          `yaml:"cors" default:"true"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Estimator  Estimator  `yaml:"estimator"`
	Simulation Simulation `yaml:"simulation"`
	RateLimit  struct {
		Enabled      bool    `yaml:"enabled" default:"true"`
		Burst        int     `yaml:"burst" default:"4" validate:"min=1"`
		RefillPerSec float64 `yaml:"refill_per_sec" default:"0.2" validate:"gt=0"`
	} `yaml:"rate_limit"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"min=0"`
		Prefix   string `yaml:"prefix" default:"tarlab"`
	} `yaml:"redis"`
	Cache struct {
		TTL           time.Duration `yaml:"ttl" default:"1h"`
		MemoryMaxSize int           `yaml:"memory_max_size" default:"256" validate:"min=1"`
		UseRedis      bool          `yaml:"use_redis"`
	} `yaml:"cache"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Name       string        `yaml:"name" default:"estimations"`
		Workers    int           `yaml:"workers" default:"2" validate:"min=1"`
		MaxRetries int           `yaml:"max_retries" default:"3" validate:"min=0"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"5s"`
		Timeout    time.Duration `yaml:"timeout" default:"10m"`
	} `yaml:"queue"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		JobsTopic    string   `yaml:"jobs_topic" default:"tarlab.jobs"`
		ResultsTopic string   `yaml:"results_topic" default:"tarlab.results"`
		LogsTopic    string   `yaml:"logs_topic" default:"tarlab.logs"`
		Producer     struct {
			RequiredAcks int           `yaml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`
			Compression  string        `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
			MaxAttempts  int           `yaml:"max_attempts" default:"5" validate:"min=1"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"10485760"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"tarlab-estimator"`
			Workers    int           `yaml:"workers" default:"2" validate:"min=1"`
			RetryMax   int           `yaml:"retry_max" default:"3" validate:"min=0"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"10s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"tarlab.jobs.dlq"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"tarlab"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
}

// Estimator bounds the work a single request may trigger.
type Estimator struct {
	Workers        int     `yaml:"workers" validate:"min=0"`
	MinRegimeShare float64 `yaml:"min_regime_share" default:"0.2" validate:"gt=0,lte=0.5"`
	// MaxCandidates thins constant searches; zero keeps every admissible candidate.
	MaxCandidates int `yaml:"max_candidates" validate:"min=0"`
	// MaxPairCandidates thins time-varying searches, whose cost grows with its square.
	MaxPairCandidates int           `yaml:"max_pair_candidates" default:"150" validate:"min=0"`
	MaxSeriesLength   int           `yaml:"max_series_length" default:"50000" validate:"min=3"`
	Timeout           time.Duration `yaml:"timeout" default:"2m"`
}

// Simulation holds the defaults of the simulate endpoint and CLI.
type Simulation struct {
	Seed      uint64  `yaml:"seed" default:"1"`
	N         int     `yaml:"n" default:"5001" validate:"min=3"`
	Noise     float64 `yaml:"noise" default:"8" validate:"gt=0"`
	Rho       float64 `yaml:"rho" default:"-0.5" validate:"gt=-2,lte=0"`
	Threshold float64 `yaml:"threshold" default:"10" validate:"gte=0"`
}

var validate = validator.New()

// Default returns a config holding only default values.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file over the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with TARLAB_* environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}
	flag := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str("TARLAB_ENV", &c.Environment)
	str("TARLAB_LOG_LEVEL", &c.Logger.Level)
	str("TARLAB_REDIS_ADDR", &c.Redis.Addr)
	str("TARLAB_REDIS_PASSWORD", &c.Redis.Password)
	str("TARLAB_CLICKHOUSE_HOST", &c.ClickHouse.Host)
	str("TARLAB_CLICKHOUSE_PASSWORD", &c.ClickHouse.Password)
	if v, ok := lookup("TARLAB_KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	return errors.Join(
		num("TARLAB_PORT", &c.Server.Port),
		num("TARLAB_WORKERS", &c.Estimator.Workers),
		flag("TARLAB_KAFKA_ENABLED", &c.Kafka.Enabled),
		flag("TARLAB_CLICKHOUSE_ENABLED", &c.ClickHouse.Enabled),
		flag("TARLAB_QUEUE_ENABLED", &c.Queue.Enabled),
	)
}

// Validate checks tag rules and the dependencies between sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if (c.Cache.UseRedis || c.Queue.Enabled) && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when cache.use_redis or queue.enabled is set")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Database == "" {
		return fmt.Errorf("clickhouse.database is required")
	}
	return nil
}
