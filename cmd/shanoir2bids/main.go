// shanoir2bids downloads Shanoir datasets and reorganizes them as a BIDS
// data structure, driven by a per-study JSON configuration file.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"

	"shanoir2bids/internal/app"
	"shanoir2bids/internal/bids"
	"shanoir2bids/internal/config"
	"shanoir2bids/internal/logger"
)

// exitError carries a specific process exit code.
type exitError struct {
	code    int
	message string
}

func (e *exitError) Error() string {
	return e.message
}

func main() {
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*exitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.message)
			os.Exit(exitErr.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(outW io.Writer, args []string) error {
	// Credentials live in .env next to the working directory; absence is
	// fine when SHANOIR_PASSWORD is already exported.
	_ = godotenv.Load()

	opts, shouldExit, err := parseArgs(outW, args)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}
	logger.SetLevel(opts.LogLevel)

	cfg, warnings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return &exitError{code: 2, message: err.Error()}
	}
	for _, warning := range warnings {
		logger.Warnf("%s", warning)
	}

	if opts.DownloadDir == "" {
		opts.DownloadDir = app.DefaultDownloadDir(cfg.StudyName, time.Now())
		logger.Infof("no output folder provided, using a new default directory: %s", opts.DownloadDir)
	}
	if err := os.MkdirAll(opts.DownloadDir, 0o755); err != nil {
		return fmt.Errorf("creating download directory failed: %w", err)
	}

	application, err := app.NewApp(opts, cfg)
	if err != nil {
		return err
	}
	logger.Infof("run log: %s", application.RunLogPath())
	return application.Run(context.Background())
}

func parseArgs(outW io.Writer, args []string) (app.Options, bool, error) {
	flagSet := flag.NewFlagSet("shanoir2bids", flag.ContinueOnError)
	flagSet.SetOutput(outW)
	flagSet.Usage = func() {
		fmt.Fprint(outW, `
shanoir2bids - download a Shanoir dataset and organise it as a BIDS structure.

Usage:
  shanoir2bids [options]

Options:
`)
		flagSet.PrintDefaults()
	}

	var opts app.Options
	flagSet.StringVar(&opts.Username, "username", "", "Shanoir username.")
	flagSet.StringVar(&opts.Username, "u", "", "Shanoir username (shorthand).")
	flagSet.StringVar(&opts.Domain, "domain", "shanoir.irisa.fr", "The Shanoir domain to query.")
	flagSet.StringVar(&opts.Domain, "d", "shanoir.irisa.fr", "The Shanoir domain to query (shorthand).")
	outFormat := flagSet.String("outformat", "nifti", "Output format: 'nifti', 'dicom' or 'both'.")
	flagSet.StringVar(&opts.FileType, "filetype", "dicom", "Download file type: 'nifti' or 'dicom'.")
	flagSet.StringVar(&opts.FileType, "f", "dicom", "Download file type (shorthand).")
	flagSet.StringVar(&opts.DownloadDir, "output_folder", "", "Destination folder (a default one is created when omitted).")
	flagSet.StringVar(&opts.DownloadDir, "of", "", "Destination folder (shorthand).")
	flagSet.StringVar(&opts.ConfigPath, "config_file", "", "Path to the .json configuration file.")
	flagSet.StringVar(&opts.ConfigPath, "j", "", "Path to the .json configuration file (shorthand).")
	flagSet.BoolVar(&opts.Longitudinal, "longitudinal", false, "Toggle longitudinal approach.")
	flagSet.BoolVar(&opts.Longitudinal, "L", false, "Toggle longitudinal approach (shorthand).")
	flagSet.IntVar(&opts.Jobs, "jobs", 1, "Number of subjects processed in parallel.")
	flagSet.StringVar(&opts.LogLevel, "log-level", "info", "Logging level: 'debug', 'info', 'warn' or 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return app.Options{}, true, nil
		}
		return app.Options{}, false, &exitError{code: 2, message: err.Error()}
	}

	opts.OutputFormat = bids.OutputType(*outFormat)
	if err := opts.Normalize(); err != nil {
		return app.Options{}, false, &exitError{code: 2, message: err.Error()}
	}
	return opts, false, nil
}
