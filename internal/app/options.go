package app

import (
	"fmt"
	"strings"
	"time"

	"shanoir2bids/internal/bids"
	"shanoir2bids/internal/gateway/shanoir"
)

// Options carries the CLI-level settings for one run.
type Options struct {
	Username     string
	Domain       string
	ConfigPath   string
	DownloadDir  string
	OutputFormat bids.OutputType
	FileType     string
	Longitudinal bool
	Jobs         int
	LogLevel     string
}

// Normalize validates the choices and fills defaults. It returns an error
// for unknown choice values; those terminate the process before any work.
func (o *Options) Normalize() error {
	if strings.TrimSpace(o.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if strings.TrimSpace(o.ConfigPath) == "" {
		return fmt.Errorf("configuration file path is required")
	}
	if o.OutputFormat == "" {
		o.OutputFormat = bids.OutputNifti
	}
	if _, err := bids.ParseOutputType(string(o.OutputFormat)); err != nil {
		return err
	}
	if o.FileType == "" {
		o.FileType = shanoir.FileTypeDicom
	}
	if !shanoir.ValidFileType(o.FileType) {
		return fmt.Errorf("unknown shanoir file type %q (expected nifti or dicom)", o.FileType)
	}
	if o.Jobs < 1 {
		o.Jobs = 1
	}
	return nil
}

// DefaultDownloadDir names the directory created when the user does not
// provide one.
func DefaultDownloadDir(studyName string, t time.Time) string {
	stamp := t.Format("2006_01_02_at_15h04m05s")
	return strings.Join([]string{"shanoir2bids", "download", studyName, stamp}, "_")
}
