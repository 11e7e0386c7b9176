package bids

import "fmt"

// OutputType selects which file formats the conversion workflow emits.
type OutputType string

const (
	OutputNifti OutputType = "nifti"
	OutputDicom OutputType = "dicom"
	OutputBoth  OutputType = "both"
)

// ParseOutputType validates a CLI/output-format choice.
func ParseOutputType(s string) (OutputType, error) {
	switch OutputType(s) {
	case OutputNifti, OutputDicom, OutputBoth:
		return OutputType(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q (expected nifti, dicom or both)", s)
	}
}

// Outtypes returns the heudiconv outtype extension tags for the format.
func (t OutputType) Outtypes() []string {
	switch t {
	case OutputDicom:
		return []string{"dicom"}
	case OutputBoth:
		return []string{"dicom", "nii.gz"}
	default:
		return []string{"nii.gz"}
	}
}

// Mapping assigns one remote dataset instance to its BIDS naming. The JSON
// field names are part of the heuristic artifact format.
type Mapping struct {
	DatasetName string  `json:"datasetName"`
	BidsDir     string  `json:"bidsDir"`
	BidsName    string  `json:"bidsName"`
	SubjectID   string  `json:"bids_subject_id"`
	SessionID   *string `json:"bids_session_id,omitempty"`
}

// Key is the derived heuristic key for a group of mappings: target
// subdirectory, filename template (with or without the run-index token) and
// the output extension set.
type Key struct {
	Dir      string
	Template string
	Outtypes []string
}

// Group couples a remote dataset name with its key and the number of
// mapping entries that produced it.
type Group struct {
	DatasetName string
	Key         Key
	Members     int
}

// Assignment lists the series ids classified under one key.
type Assignment struct {
	Key       Key
	SeriesIDs []string
}

// SeriesRef is the slice of series metadata the classifier needs.
type SeriesRef struct {
	ID          string
	Description string
}
