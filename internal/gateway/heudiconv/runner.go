// Package heudiconv drives the external DICOM-to-BIDS conversion workflow.
// The workflow is a black box: it is handed the downloaded files, the
// heuristic artifact and the converter options, and reports success or
// failure for one subject at a time.
package heudiconv

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Params describes one workflow invocation. Session is set only in
// longitudinal mode.
type Params struct {
	Files         []string
	OutputDir     string
	Subject       string
	HeuristicPath string
	DcmConfigPath string
	Session       string
}

// Runner abstracts the workflow invocation so the orchestrator can be
// tested without a heudiconv installation.
type Runner interface {
	Convert(ctx context.Context, p Params) error
}

// ExecRunner runs the heudiconv CLI as a subprocess.
type ExecRunner struct {
	Bin       string
	Converter string
}

// NewExecRunner returns a runner using the given converter binary name
// (dcm2niix when empty).
func NewExecRunner(converter string) *ExecRunner {
	if strings.TrimSpace(converter) == "" {
		converter = "dcm2niix"
	}
	return &ExecRunner{Bin: "heudiconv", Converter: converter}
}

func (r *ExecRunner) args(p Params) []string {
	args := []string{"--files"}
	args = append(args, p.Files...)
	args = append(args,
		"-o", p.OutputDir,
		"-s", p.Subject,
		"-f", p.HeuristicPath,
		"-c", r.Converter,
		"--bids",
		"--dcmconfig", p.DcmConfigPath,
		"--minmeta",
		"--grouping", "all",
	)
	if p.Session != "" {
		args = append(args, "-ss", p.Session)
	}
	return args
}

func (r *ExecRunner) Convert(ctx context.Context, p Params) error {
	if len(p.Files) == 0 {
		return fmt.Errorf("conversion workflow invoked with no input files")
	}
	cmd := exec.CommandContext(ctx, r.Bin, r.args(p)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("conversion workflow failed for subject %s: %w\n%s",
			p.Subject, err, tail(string(out), 2000))
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
