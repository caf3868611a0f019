//go:build wireinject
// +build wireinject

package di

import (
	"CandleVault/pkg/config"
	"CandleVault/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideResponseCache,
		ProvideLoaderClient,

		// Repositories
		ProvideCandleStore,
		ProvideBackfillEvents,
		ProvideCandleLoader,
		ProvideTickerSource,

		// Use cases
		ProvideKeyLocks,
		ProvideCacheReader,
		ProvideBackfillCoordinator,
		ProvideOrchestrator,
		ProvideReconciler,

		// HTTP surface
		ProvideCandlesHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
