package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/tidwall/gjson"
)

// Load reads and validates the study configuration document. It returns the
// typed configuration together with non-fatal warnings (unknown keys,
// malformed date strings). Any returned error is fatal: the caller must not
// start downloading.
func Load(path string) (*StudyConfig, []string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	if err := validateDocument(raw); err != nil {
		return nil, nil, fmt.Errorf("config file %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("parsing config file failed (%s): %w", path, err)
	}

	settings := v.AllSettings()
	setKeys := make(keySet)
	collectSettingsKeys(settings, setKeys)
	warnings := unknownKeyWarnings(settings)

	var cfg StudyConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "json"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, nil, fmt.Errorf("decoding config failed: %w", err)
	}

	// viper lowercases map keys during decode. The converter options are
	// an opaque mapping written verbatim to the workflow artifact, so
	// re-read them from the raw document with their key case intact.
	if err := decodeConverterOptions(raw, &cfg); err != nil {
		return nil, nil, err
	}

	cfg.applyDefaults(setKeys)
	warnings = append(warnings, cfg.normalizeDates()...)
	if err := validate(&cfg, setKeys); err != nil {
		return nil, nil, err
	}
	return &cfg, warnings, nil
}

func decodeConverterOptions(raw []byte, cfg *StudyConfig) error {
	node := gjson.GetBytes(raw, KeyConverterOpts)
	if !node.Exists() {
		return nil
	}
	var opts map[string]any
	if err := json.Unmarshal([]byte(node.Raw), &opts); err != nil {
		return fmt.Errorf("decoding %s failed: %w", KeyConverterOpts, err)
	}
	cfg.ConverterOptions = opts
	return nil
}

func unknownKeyWarnings(settings map[string]any) []string {
	allowed := make(map[string]struct{}, len(authorizedKeys))
	for _, key := range authorizedKeys {
		allowed[key] = struct{}{}
	}
	var unknown []string
	for key := range settings {
		if _, ok := allowed[strings.ToLower(key)]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	warnings := make([]string, 0, len(unknown))
	for _, key := range unknown {
		warnings = append(warnings, fmt.Sprintf("unknown key %q in configuration file", key))
	}
	return warnings
}

func collectSettingsKeys(settings map[string]any, dest keySet) {
	if dest == nil || len(settings) == 0 {
		return
	}
	flattenConfigKeys("", settings, dest)
}

func flattenConfigKeys(prefix string, node any, dest keySet) {
	switch val := node.(type) {
	case map[string]any:
		for k, v := range val {
			next := strings.ToLower(strings.TrimSpace(k))
			if next == "" {
				continue
			}
			if prefix != "" {
				next = prefix + "." + next
			}
			flattenConfigKeys(next, v, dest)
		}
	case []any:
		if prefix != "" {
			dest.mark(prefix)
		}
		for _, item := range val {
			flattenConfigKeys(prefix, item, dest)
		}
	default:
		if prefix != "" {
			dest.mark(prefix)
		}
	}
}
