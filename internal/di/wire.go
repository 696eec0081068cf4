//go:build wireinject
// +build wireinject

package di

import (
	"StayCast/pkg/config"
	"StayCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation in wire_gen.go.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvidePublisher,
		ProvideCache,
		ProvideMLBase,

		// Repositories
		ProvidePanelSource,
		ProvideResultSink,

		// Use cases
		ProvideTargets,
		ProvideCoordinator,

		// HTTP
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
