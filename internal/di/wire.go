//go:build wireinject
// +build wireinject

package di

import (
	"SignalDesk/pkg/config"
	"SignalDesk/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideClock,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideKafkaProducer,

		// Repositories
		ProvideMemoryCandleStore,
		ProvideFeatureStore,
		ProvideTickIngestor,
		ProvideTickStorage,
		ProvideTickPublisher,
		ProvideSignalPublisher,
		ProvideSentimentProvider,

		// Analysis
		ProvideResultCache,
		ProvideSignalAnalyzer,
		ProvideConfluenceAggregator,
		ProvideAnalyzer,
		ProvideCandlesUseCase,

		// Ingestion
		ProvideTickProcessor,
		ProvideTickCollector,
		ProvideKafkaConsumer,
		ProvideKafkaTicksHandler,

		// Watchlist
		ProvideQueue,
		ProvideWatchlistScheduler,

		// HTTP
		ProvideRateLimiter,
		ProvideHealthChecks,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
