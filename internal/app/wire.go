//go:build wireinject

package app

import (
	"github.com/google/wire"

	"shanoir2bids/internal/config"
)

func buildAppWithWire(opts Options, cfg *config.StudyConfig) (*App, error) {
	wire.Build(
		provideClient,
		provideRunner,
		provideRunLog,
		provideStore,
		newApp,
	)
	return nil, nil
}
