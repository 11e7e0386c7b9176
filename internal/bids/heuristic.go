package bids

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"
)

// RunToken is the run-index placeholder embedded in every filename template
// until run collapsing decides it can go.
const RunToken = "run-{item:02d}_"

// HeuristicVersion identifies the classification/grouping algorithm carried
// by the emitted artifact.
const HeuristicVersion = 1

//go:embed templates/heuristic.py.tmpl
var heuristicTemplate string

var heuristicTmpl = template.Must(template.New("heuristic").Parse(heuristicTemplate))

// BuildKeys groups mappings by remote dataset name, in first-seen order,
// and derives one Key per group. Every template starts with the run token.
func BuildKeys(mappings []Mapping, outputType OutputType) []Group {
	outtypes := outputType.Outtypes()
	index := make(map[string]int)
	var groups []Group
	for _, m := range mappings {
		if i, ok := index[m.DatasetName]; ok {
			groups[i].Members++
			continue
		}
		index[m.DatasetName] = len(groups)
		groups = append(groups, Group{
			DatasetName: m.DatasetName,
			Key: Key{
				Dir:      m.BidsDir,
				Template: RunToken + m.BidsName,
				Outtypes: outtypes,
			},
			Members: 1,
		})
	}
	return groups
}

// CollapseSingletons strips the run token from groups with exactly one
// member. Collapsing an already-collapsed group is a no-op.
func CollapseSingletons(groups []Group) []Group {
	out := make([]Group, len(groups))
	copy(out, groups)
	for i := range out {
		if out[i].Members == 1 {
			out[i].Key.Template = strings.Replace(out[i].Key.Template, RunToken, "", 1)
		}
	}
	return out
}

// ClassifySeries assigns series to keys by exact series-description match,
// in group order. Unmatched series are skipped: studies routinely declare
// only a subset of the acquired sequences. Keys that matched exactly one
// series lose their run token, the same post-pass the emitted artifact
// performs.
func ClassifySeries(groups []Group, series []SeriesRef) []Assignment {
	byName := make(map[string]int, len(groups))
	for i, g := range groups {
		byName[g.DatasetName] = i
	}
	matched := make(map[int][]string)
	for _, s := range series {
		if i, ok := byName[s.Description]; ok {
			matched[i] = append(matched[i], s.ID)
		}
	}
	var assignments []Assignment
	for i, g := range groups {
		ids := matched[i]
		if len(ids) == 0 {
			continue
		}
		key := g.Key
		if len(ids) == 1 {
			key.Template = strings.Replace(key.Template, RunToken, "", 1)
		}
		assignments = append(assignments, Assignment{Key: key, SeriesIDs: ids})
	}
	return assignments
}

// WriteHeuristic emits the heuristic artifact: the mapping table as a JSON
// literal plus the fixed classification and run-collapse functions. The
// output is byte-for-byte deterministic for a given mapping order and
// output type.
func WriteHeuristic(path string, mappings []Mapping, outputType OutputType) error {
	rendered, err := RenderHeuristic(mappings, outputType)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, rendered, 0o644); err != nil {
		return fmt.Errorf("writing heuristic file %s failed: %w", path, err)
	}
	return nil
}

// RenderHeuristic produces the artifact bytes (split out for tests).
func RenderHeuristic(mappings []Mapping, outputType OutputType) ([]byte, error) {
	if mappings == nil {
		mappings = []Mapping{}
	}
	// JSON array and object literals are valid Python expressions as long
	// as no null/true/false sneaks in; the session id is omitted when
	// absent for exactly that reason.
	table, err := json.Marshal(mappings)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = heuristicTmpl.Execute(&buf, map[string]any{
		"Version": HeuristicVersion,
		"Outtype": outtypeLiteral(outputType),
		"Mapping": string(table),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering heuristic failed: %w", err)
	}
	return buf.Bytes(), nil
}

func outtypeLiteral(outputType OutputType) string {
	tags := outputType.Outtypes()
	quoted := make([]string, len(tags))
	for i, tag := range tags {
		quoted[i] = fmt.Sprintf("%q", tag)
	}
	if len(quoted) == 1 {
		return "(" + quoted[0] + ",)"
	}
	return "(" + strings.Join(quoted, ",") + ")"
}
