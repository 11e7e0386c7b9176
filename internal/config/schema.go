package config

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// studySchema checks the shape of known keys only. Unknown keys stay legal
// at this level so they can be reported as warnings instead of failures.
const studySchema = `{
	"type": "object",
	"properties": {
		"study_name": {"type": "string"},
		"subjects": {"type": "array", "items": {"type": "string"}},
		"session": {"type": "string"},
		"data_to_bids": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"datasetName": {"type": "string"},
					"bidsDir": {"type": "string"},
					"bidsName": {"type": "string"},
					"bidsSession": {"type": "string"}
				},
				"required": ["datasetName", "bidsDir", "bidsName"]
			}
		},
		"find_and_replace_subject": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"find": {"type": "string"},
					"replace": {"type": "string"}
				},
				"required": ["find", "replace"]
			}
		},
		"dcm2niix": {"type": "string"},
		"dcm2niix_options": {"type": "object"},
		"date_from": {"type": "string"},
		"date_to": {"type": "string"}
	}
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func compileSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = jsonschema.CompileString("study_config.schema.json", studySchema)
	})
	return compiledSchema, schemaErr
}

func validateDocument(raw []byte) error {
	sch, err := compileSchema()
	if err != nil {
		return fmt.Errorf("compiling config schema failed: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("not valid JSON: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
