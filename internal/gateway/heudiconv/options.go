package heudiconv

import (
	"encoding/json"
	"fmt"
	"os"
)

// WriteConverterOptions serializes the dcm2niix options mapping verbatim to
// path; the workflow reads it through its --dcmconfig flag.
func WriteConverterOptions(path string, opts map[string]any) error {
	if opts == nil {
		opts = map[string]any{}
	}
	data, err := json.MarshalIndent(opts, "", "    ")
	if err != nil {
		return fmt.Errorf("serializing converter options failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing converter options %s failed: %w", path, err)
	}
	return nil
}

// ReadConverterOptions loads a converter options artifact back into a map.
func ReadConverterOptions(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var opts map[string]any
	if err := json.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("parsing converter options %s failed: %w", path, err)
	}
	return opts, nil
}
