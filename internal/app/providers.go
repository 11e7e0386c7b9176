package app

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"shanoir2bids/internal/config"
	"shanoir2bids/internal/gateway/heudiconv"
	"shanoir2bids/internal/gateway/shanoir"
	"shanoir2bids/internal/runlog"
	"shanoir2bids/internal/store/downloadlog"
)

// The password is never a flag; it comes from the environment (usually via
// the .env file loaded by the CLI).
const passwordEnv = "SHANOIR_PASSWORD"

func provideClient(opts Options) (*shanoir.Client, error) {
	return shanoir.NewClient(shanoir.Config{
		Domain:   opts.Domain,
		Username: opts.Username,
		Password: os.Getenv(passwordEnv),
	})
}

func provideRunner(cfg *config.StudyConfig) heudiconv.Runner {
	return heudiconv.NewExecRunner(cfg.ConverterPath)
}

func provideRunLog(opts Options) (*runlog.Log, error) {
	return runlog.Create(opts.DownloadDir)
}

func provideStore(opts Options) (*downloadlog.Store, error) {
	return downloadlog.Open(filepath.Join(opts.DownloadDir, "download_history.db"), uuid.NewString())
}
