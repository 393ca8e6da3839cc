// Package patterns implements the pattern-preset builder: given a
// sample alert payload, suggest a rename/output_template fragment by
// fuzzy-matching source paths to well-known target field names
// (spec.md supplemented feature, §9 Open Question (a)).
package patterns

import (
	"fmt"
	"sort"
	"strings"
)

// Mapping is one suggested source-path -> target-field association.
type Mapping struct {
	SourcePath  string `json:"source_path"`
	TargetField string `json:"target_field"`
}

// pathToTarget is the fuzzy-match table: a path whose final segment (or
// whose full dotted form) matches a key here is suggested for that
// target field name.
var pathToTarget = map[string]string{
	"severity":             "severity",
	"labels.severity":      "severity",
	"labels.alertname":     "alertname",
	"labels.instance":      "instance",
	"labels.namespace":     "namespace",
	"labels.pod":           "pod",
	"labels.job":           "job",
	"annotations.summary":     "message",
	"annotations.description": "description",
	"description":          "message",
	"summary":               "message",
	"message":               "message",
	"title":                 "title",
	"status":                "status",
	"alertname":             "alertname",
	"startsAt":              "timestamp",
	"endsAt":                "ends_at",
	"timestamp":             "timestamp",
	"alertId":               "alert_id",
	"clusterId":             "cluster_id",
	"generatorURL":          "generator_url",
}

// Suggest flattens a sample JSON document and proposes a target field
// name for every leaf path, skipping nulls and blank strings. When two
// leaves would suggest the same target, the first one observed wins.
func Suggest(sample any) []Mapping {
	root, ok := sample.(map[string]any)
	if !ok {
		return nil
	}

	var mappings []Mapping
	seenTargets := make(map[string]string)
	for _, leaf := range flatten(root, "") {
		if isBlank(leaf.value) {
			continue
		}
		target := suggestTarget(leaf.path)
		if existing, ok := seenTargets[target]; ok && existing != leaf.path {
			continue
		}
		seenTargets[target] = leaf.path
		mappings = append(mappings, Mapping{SourcePath: leaf.path, TargetField: target})
	}
	return mappings
}

type leaf struct {
	path  string
	value any
}

func flatten(v any, prefix string) []leaf {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []leaf
		for _, k := range keys {
			path := k
			if prefix != "" {
				path = prefix + "." + k
			}
			out = append(out, flatten(t[k], path)...)
		}
		return out
	case []any:
		var out []leaf
		limit := len(t)
		if limit > 3 {
			limit = 3
		}
		for i := 0; i < limit; i++ {
			path := fmt.Sprintf("%s[%d]", prefix, i)
			out = append(out, flatten(t[i], path)...)
		}
		return out
	default:
		if prefix == "" {
			return nil
		}
		return []leaf{{path: prefix, value: t}}
	}
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

var pathToTargetSuffixes = sortedSuffixesLongestFirst(pathToTarget)

func sortedSuffixesLongestFirst(m map[string]string) []string {
	suffixes := make([]string, 0, len(m))
	for k := range m {
		suffixes = append(suffixes, k)
	}
	sort.Slice(suffixes, func(i, j int) bool { return len(suffixes[i]) > len(suffixes[j]) })
	return suffixes
}

// suggestTarget checks longer, more specific suffixes first so
// "annotations.description" wins over the shorter "description" when
// both would otherwise match the same path.
func suggestTarget(path string) string {
	for _, suffix := range pathToTargetSuffixes {
		if path == suffix || strings.HasSuffix(path, "."+suffix) {
			return pathToTarget[suffix]
		}
	}
	cleaned := strings.NewReplacer("[", ".", "]", "").Replace(path)
	parts := strings.Split(cleaned, ".")
	last := parts[len(parts)-1]
	return strings.ToLower(strings.ReplaceAll(last, "-", "_"))
}
