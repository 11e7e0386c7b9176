package bids

import (
	"strings"

	"shanoir2bids/internal/config"
	"shanoir2bids/internal/gateway/shanoir"
	"shanoir2bids/internal/runlog"
)

// ApplyRenameRules normalizes a raw subject name by applying every rule in
// declaration order. Substitution is literal and sequential, so later rules
// see the output of earlier ones.
func ApplyRenameRules(rules []config.RenameRule, raw string) string {
	out := raw
	for _, rule := range rules {
		out = strings.ReplaceAll(out, rule.Find, rule.Replace)
	}
	return out
}

// MapResult turns one search result into a Mapping and writes its
// structured entry into the subject's log section. The session id is
// carried only in longitudinal mode.
func MapResult(item shanoir.Result, rule config.SequenceRule, rules []config.RenameRule, longitudinal bool, section *runlog.Section) Mapping {
	m := Mapping{
		DatasetName: item.DatasetName,
		BidsDir:     rule.BidsDir,
		BidsName:    rule.BidsName,
		SubjectID:   ApplyRenameRules(rules, item.SubjectName),
	}
	if longitudinal {
		session := rule.BidsSession
		m.SessionID = &session
	}
	if section != nil {
		section.Linef("- datasetId = %d", item.DatasetID)
		section.Linef("  -- studyName: %s", item.StudyName)
		section.Linef("  -- subjectName: %s", item.SubjectName)
		section.Linef("  -- session: %s", item.ExamComment)
		section.Linef("  -- datasetName: %s", item.DatasetName)
		section.Linef("  -- examinationDate: %s", item.ExamDate)
	}
	return m
}

// MapResults maps a whole result set for one (subject, sequence) query.
func MapResults(items []shanoir.Result, rule config.SequenceRule, rules []config.RenameRule, longitudinal bool, section *runlog.Section) []Mapping {
	mappings := make([]Mapping, 0, len(items))
	for _, item := range items {
		mappings = append(mappings, MapResult(item, rule, rules, longitudinal, section))
	}
	return mappings
}
