package di

import (
	"context"
	"fmt"
	"time"

	"TarLab/internal/domain/repository"
	"TarLab/internal/handler/api"
	internalrepo "TarLab/internal/repository"
	jobmetrics "TarLab/internal/service/metrics"
	"TarLab/internal/service/ratelimit"
	"TarLab/internal/services/simulate"
	"TarLab/internal/usecase"
	"TarLab/pkg/cache"
	pkgch "TarLab/pkg/clickhouse"
	"TarLab/pkg/config"
	pkgkafka "TarLab/pkg/kafka"
	applogger "TarLab/pkg/logger"
	"TarLab/pkg/metrics"
	"TarLab/pkg/queue"
	"TarLab/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	jobmetrics.Register()
	return metrics.New()
}

// ProvideRedisCache connects to Redis when the cache or the job queue needs
// it, and returns nil otherwise.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Cache.UseRedis && !cfg.Queue.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

// ProvideCache builds the result cache: memory in front of Redis when
// enabled, memory only otherwise.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) cache.Service {
	if rc != nil && cfg.Cache.UseRedis {
		return cache.NewLayeredCache(rc,
			cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
			cache.WithLayeredMemoryTTL(cfg.Cache.TTL),
		)
	}
	return cache.NewMemoryCache(
		cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize),
		cache.WithMemoryDefaultTTL(cfg.Cache.TTL),
	)
}

// ProvideClickHouseClient creates a ClickHouse client and its schema, or
// returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideRunStore persists runs in ClickHouse behind a circuit breaker, or
// in the cache when ClickHouse is disabled.
func ProvideRunStore(cfg *config.Config, ch *pkgch.Client, c cache.Service, l *applogger.Logger) repository.RunStore {
	if ch != nil {
		return internalrepo.NewBreakerRunStore(
			internalrepo.NewCHRunStore(ch.DB(), cfg.ClickHouse.Database, l), "clickhouse-runs")
	}
	return internalrepo.NewCacheRunStore(c, cfg.Cache.TTL)
}

// ProvideJobStateStore keeps job states in the cache.
func ProvideJobStateStore(cfg *config.Config, c cache.Service) repository.JobStateStore {
	return internalrepo.NewCacheRunStore(c, cfg.Cache.TTL)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Producer.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.Producer.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.Linger, cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideResultPublisher publishes result events, or returns nil without a producer.
func ProvideResultPublisher(cfg *config.Config, producer *pkgkafka.Producer, m repository.Metrics) repository.ResultPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaResultPublisher(producer, cfg.Kafka.ResultsTopic, m)
}

// ProvideQueue creates the Redis job queue, or nil when disabled.
func ProvideQueue(cfg *config.Config, rc *cache.RedisCache, l *applogger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled || rc == nil {
		return nil
	}
	return queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.MaxRetries,
		RetryDelay: cfg.Queue.RetryDelay,
		JobTimeout: cfg.Queue.Timeout,
		Retryable:  func(err error) bool { return !usecase.IsPermanent(err) },
	}, rc.Client(), queue.WithKeyPrefix(cfg.Redis.Prefix+":queue:"+cfg.Queue.Name))
}

// ProvideEstimationUseCase creates the estimation use case.
func ProvideEstimationUseCase(
	cfg *config.Config,
	runs repository.RunStore,
	jobs repository.JobStateStore,
	pub repository.ResultPublisher,
	q *queue.RedisQueue,
	c cache.Service,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.EstimationUseCase {
	var qs queue.QueueService
	if q != nil {
		qs = q
	}
	return usecase.NewEstimationUseCase(usecase.EstimatorConfig{
		Workers:           cfg.Estimator.Workers,
		MinRegimeShare:    cfg.Estimator.MinRegimeShare,
		MaxCandidates:     cfg.Estimator.MaxCandidates,
		MaxPairCandidates: cfg.Estimator.MaxPairCandidates,
		MaxSeriesLength:   cfg.Estimator.MaxSeriesLength,
		Timeout:           cfg.Estimator.Timeout,
		CacheTTL:          cfg.Cache.TTL,
		Simulation: simulate.Config{
			Seed:      cfg.Simulation.Seed,
			N:         cfg.Simulation.N,
			Noise:     cfg.Simulation.Noise,
			Rho:       cfg.Simulation.Rho,
			Threshold: cfg.Simulation.Threshold,
		},
	}, runs, jobs, pub, qs, c, m, l)
}

// ProvideKafkaConsumer creates the jobs consumer, or nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerMaxBytes(cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.TraceHook())
	return consumer, nil
}

// ProvideKafkaJobsHandler handles the jobs topic.
func ProvideKafkaJobsHandler(cfg *config.Config, est *usecase.EstimationUseCase, m repository.Metrics) *usecase.KafkaJobsHandler {
	return usecase.NewKafkaJobsHandler(cfg.Kafka.JobsTopic, est, m)
}

// ProvideRateLimiter creates the time-varying rate limiter, or nil when disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.Burst, cfg.RateLimit.RefillPerSec)
}

// ProvideTarHandler creates the HTTP handler.
func ProvideTarHandler(l *applogger.Logger, est *usecase.EstimationUseCase, limiter *ratelimit.Limiter) *api.TarHandler {
	return api.NewTarHandler(l, est, limiter)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.TarHandler,
	est *usecase.EstimationUseCase,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaJobsHandler,
	q *queue.RedisQueue,
	limiter *ratelimit.Limiter,
	producer *pkgkafka.Producer,
	runs repository.RunStore,
	c cache.Service,
	rc *cache.RedisCache,
	ch *pkgch.Client,
) *server.App {
	comp := server.Components{
		Handler: handler,
		Limiter: limiter,
	}
	if consumer != nil {
		comp.Consumer = consumer
		comp.JobsHandler = kh
	}
	if q != nil {
		comp.Queue = q
		comp.QueueJob = usecase.NewEstimateJob(est)
	}
	if producer != nil {
		// Repeated warnings and errors are digested to the logs topic.
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   time.Minute,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      producer,
		})
		comp.Closers = append(comp.Closers, server.NamedCloser{Name: "kafka producer", Closer: producer})
	}
	comp.Closers = append(comp.Closers,
		server.NamedCloser{Name: "run store", Closer: runs},
		server.NamedCloser{Name: "cache", Closer: c},
	)
	if rc != nil && !cfg.Cache.UseRedis {
		comp.Closers = append(comp.Closers, server.NamedCloser{Name: "redis", Closer: rc})
	}
	if ch != nil {
		comp.Closers = append(comp.Closers, server.NamedCloser{Name: "clickhouse", Closer: ch})
	}
	return server.New(cfg, l, comp)
}
