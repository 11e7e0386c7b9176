//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject

package app

import (
	"shanoir2bids/internal/config"
)

func buildAppWithWire(opts Options, cfg *config.StudyConfig) (*App, error) {
	client, err := provideClient(opts)
	if err != nil {
		return nil, err
	}
	runner := provideRunner(cfg)
	log, err := provideRunLog(opts)
	if err != nil {
		return nil, err
	}
	store, err := provideStore(opts)
	if err != nil {
		return nil, err
	}
	appApp := newApp(opts, cfg, client, runner, log, store)
	return appApp, nil
}
