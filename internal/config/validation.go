package config

import (
	"fmt"
	"strings"
	"time"
)

// validate enforces the mandatory part of the configuration contract. A
// failure here terminates the run before any network access happens.
func validate(c *StudyConfig, keys keySet) error {
	for _, key := range mandatoryKeys {
		if !keys.isSet(key) {
			return fmt.Errorf("missing key %q in configuration file", key)
		}
	}
	if strings.TrimSpace(c.StudyName) == "" {
		return fmt.Errorf("%s cannot be empty", KeyStudyName)
	}
	if len(c.Subjects) == 0 {
		return fmt.Errorf("%s requires at least one subject", KeySubjects)
	}
	for i, s := range c.Subjects {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s contains an empty name (entry #%d)", KeySubjects, i+1)
		}
	}
	if len(c.SequenceRules) == 0 {
		return fmt.Errorf("%s requires at least one sequence mapping", KeyDataToBids)
	}
	for i, rule := range c.SequenceRules {
		if strings.TrimSpace(rule.DatasetName) == "" {
			return fmt.Errorf("%s entry #%d missing datasetName", KeyDataToBids, i+1)
		}
		if strings.TrimSpace(rule.BidsDir) == "" {
			return fmt.Errorf("%s entry #%d missing bidsDir", KeyDataToBids, i+1)
		}
		if strings.TrimSpace(rule.BidsName) == "" {
			return fmt.Errorf("%s entry #%d missing bidsName", KeyDataToBids, i+1)
		}
	}
	return nil
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func validDateFormat(value string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}
