package config

import "strings"

// JSON keys of the study configuration file. The key set is shared with the
// legacy shanoir2bids tooling, so renaming any of them is a breaking change.
const (
	KeyStudyName      = "study_name"
	KeySubjects       = "subjects"
	KeySession        = "session"
	KeyDataToBids     = "data_to_bids"
	KeyFindAndReplace = "find_and_replace_subject"
	KeyConverterPath  = "dcm2niix"
	KeyConverterOpts  = "dcm2niix_options"
	KeyDateFrom       = "date_from"
	KeyDateTo         = "date_to"
)

var mandatoryKeys = []string{KeyStudyName, KeySubjects, KeyDataToBids}

var authorizedKeys = []string{
	KeyStudyName,
	KeySubjects,
	KeySession,
	KeyDataToBids,
	KeyFindAndReplace,
	KeyConverterPath,
	KeyConverterOpts,
	KeyDateFrom,
	KeyDateTo,
}

// StudyConfig is the typed form of the study configuration document. It is
// loaded once per run and treated as read-only afterwards.
type StudyConfig struct {
	StudyName        string         `json:"study_name"`
	Subjects         []string       `json:"subjects"`
	SessionFilter    string         `json:"session"`
	SequenceRules    []SequenceRule `json:"data_to_bids"`
	RenameRules      []RenameRule   `json:"find_and_replace_subject"`
	ConverterPath    string         `json:"dcm2niix"`
	ConverterOptions map[string]any `json:"dcm2niix_options"`
	DateFrom         string         `json:"date_from"`
	DateTo           string         `json:"date_to"`
}

// SequenceRule maps one Shanoir dataset name onto its BIDS naming.
type SequenceRule struct {
	DatasetName string `json:"datasetName"`
	BidsDir     string `json:"bidsDir"`
	BidsName    string `json:"bidsName"`
	BidsSession string `json:"bidsSession"`
}

// RenameRule is one find/replace edit applied to raw subject names, in
// declaration order.
type RenameRule struct {
	Find    string `json:"find"`
	Replace string `json:"replace"`
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	_, ok := k[strings.ToLower(strings.TrimSpace(path))]
	return ok
}
