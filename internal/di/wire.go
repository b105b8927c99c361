//go:build wireinject
// +build wireinject

package di

import (
	"github.com/garen0616/sp500-hit-tester-stable/pkg/config"
	"github.com/garen0616/sp500-hit-tester-stable/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Upstream clients
		ProvideMarketData,
		ProvideOracle,

		// Decision layer
		ProvideDecisionCache,
		ProvideDecisionProvider,

		// Persistence and events
		ProvideResultStore,
		ProvideRunEvents,

		// Engine and HTTP surface
		ProvideProgressHub,
		ProvideEngine,
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
