//go:build wireinject
// +build wireinject

package di

import (
	"TarLab/pkg/config"
	"TarLab/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideQueue,

		// Repositories
		ProvideRunStore,
		ProvideJobStateStore,
		ProvideResultPublisher,

		// Use cases and handlers
		ProvideEstimationUseCase,
		ProvideKafkaJobsHandler,
		ProvideRateLimiter,
		ProvideTarHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
