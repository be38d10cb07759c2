//go:build wireinject
// +build wireinject

package di

import (
	"BarBridge/pkg/config"
	"BarBridge/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideBoard,
		ProvideMetrics,
		ProvideLogger,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Adapter internals
		ProvideCache,
		ProvideArchiveWriter,
		ProvideSinkFactory,
		ProvideResponderFactory,

		// Host feed
		ProvideAggregator,
		ProvideStream,

		// Lifecycle controller
		ProvideEngine,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
