package config

import "strings"

// The "*" wildcard leaves the corresponding Shanoir search facet unbounded.
const Unbounded = "*"

func (c *StudyConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault(KeySession, &c.SessionFilter, Unbounded),
		stringFieldDefault(KeyDateFrom, &c.DateFrom, Unbounded),
		stringFieldDefault(KeyDateTo, &c.DateTo, Unbounded),
	)
}

// normalizeDates maps empty date strings to the unbounded wildcard and
// reports (but keeps) values the date parser cannot make sense of. Keeping
// the raw value mirrors the historical behavior of the tool; the query is
// sent to the server as written.
func (c *StudyConfig) normalizeDates() []string {
	var warnings []string
	for _, d := range []struct {
		key   string
		value *string
	}{
		{KeyDateFrom, &c.DateFrom},
		{KeyDateTo, &c.DateTo},
	} {
		if strings.TrimSpace(*d.value) == "" {
			*d.value = Unbounded
			continue
		}
		if *d.value == Unbounded {
			continue
		}
		if !validDateFormat(*d.value) {
			warnings = append(warnings,
				"incorrect "+d.key+" format, should be YYYY-MM-DDTHH:MM:SSZ (for example: 2020-02-19T00:00:00Z): "+*d.value)
		}
	}
	return warnings
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
