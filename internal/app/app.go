// Package app orchestrates the download run: per subject, query every
// declared sequence, download and extract the matching archives, emit the
// heuristic and converter-options artifacts, and hand off to the external
// conversion workflow.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"shanoir2bids/internal/archive"
	"shanoir2bids/internal/config"
	"shanoir2bids/internal/gateway/heudiconv"
	"shanoir2bids/internal/gateway/shanoir"
	"shanoir2bids/internal/logger"
	"shanoir2bids/internal/runlog"
	"shanoir2bids/internal/seqinfo"
	"shanoir2bids/internal/store/downloadlog"
)

// datasetClient is the narrow search/download collaborator surface.
type datasetClient interface {
	Search(ctx context.Context, text string) (*shanoir.SearchResponse, error)
	Download(ctx context.Context, item shanoir.Result, fileType, destDir string) (string, error)
}

// App drives the whole run. Subjects share nothing but the run log (which
// serializes section flushes) and the history store.
type App struct {
	opts   Options
	cfg    *config.StudyConfig
	client datasetClient
	runner heudiconv.Runner
	rlog   *runlog.Log
	store  *downloadlog.Store

	extract func(src, destDir string) error
	scan    func(root string) (seqinfo.Report, error)
}

// NewApp builds a ready-to-run App. Options must already be normalized and
// the download directory must exist.
func NewApp(opts Options, cfg *config.StudyConfig) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil study config")
	}
	return buildAppWithWire(opts, cfg)
}

func newApp(opts Options, cfg *config.StudyConfig, client *shanoir.Client, runner heudiconv.Runner, rlog *runlog.Log, store *downloadlog.Store) *App {
	return &App{
		opts:    opts,
		cfg:     cfg,
		client:  client,
		runner:  runner,
		rlog:    rlog,
		store:   store,
		extract: archive.ExtractZip,
		scan:    seqinfo.Scan,
	}
}

// RunLogPath exposes the run log location for the CLI summary.
func (a *App) RunLogPath() string {
	return a.rlog.Path()
}

// Run processes every subject. Per-subject failures are recorded and do not
// stop the remaining subjects; Run returns an error only if at least one
// subject failed.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.rlog.Close()
	defer a.store.Close()

	group := new(errgroup.Group)
	jobs := a.opts.Jobs
	if jobs < 1 {
		jobs = 1
	}
	group.SetLimit(jobs)

	var mu sync.Mutex
	var failed []string

	for _, subject := range a.cfg.Subjects {
		subject := subject
		group.Go(func() error {
			start := time.Now()
			err := a.downloadSubject(ctx, subject)
			elapsed := time.Since(start)

			status := "ok"
			if err != nil {
				status = "failed"
				logger.Errorf("subject %s failed: %v", subject, err)
				mu.Lock()
				failed = append(failed, subject)
				mu.Unlock()
			}
			if recErr := a.store.RecordSubject(ctx, downloadlog.SubjectOutcome{
				Subject:  subject,
				Status:   status,
				Duration: elapsed,
			}); recErr != nil {
				logger.Warnf("recording outcome for subject %s failed: %v", subject, recErr)
			}
			if err == nil {
				logger.Banner(fmt.Sprintf("Downloaded dataset for subject %s in %dm%ds",
					subject, int(elapsed.Minutes()), int(elapsed.Seconds())%60))
			}
			return nil
		})
	}
	_ = group.Wait()

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d subjects failed: %v", len(failed), len(a.cfg.Subjects), failed)
	}
	return nil
}
