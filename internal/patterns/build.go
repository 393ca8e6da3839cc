package patterns

import (
	"sort"
	"strings"

	"github.com/alertbridge/relay/internal/ruleset"
)

// BuildTransform turns a list of source-path -> target-field mappings
// into a Transform: each mapping becomes a rename entry plus a "$.field"
// output_template selector, and every ancestor of a source path (e.g.
// "labels" for "labels.severity") is added to include_fields so nested
// parents survive the include step.
func BuildTransform(mappings []Mapping) ruleset.Transform {
	rename := ruleset.OrderedStringMap{}
	fields := ruleset.OrderedStringMap{}
	includeSet := make(map[string]struct{})

	for _, m := range mappings {
		if m.SourcePath == "" || m.TargetField == "" {
			continue
		}
		rename.Set(m.SourcePath, m.TargetField)
		fields.Set(m.TargetField, "$."+m.TargetField)
		for _, ancestor := range ancestors(m.SourcePath) {
			includeSet[ancestor] = struct{}{}
		}
		includeSet[m.SourcePath] = struct{}{}
	}

	if rename.Len() == 0 {
		return ruleset.Transform{}
	}

	include := make([]string, 0, len(includeSet))
	for p := range includeSet {
		include = append(include, p)
	}
	sort.Strings(include)

	return ruleset.Transform{
		IncludeFields:  include,
		Rename:         rename,
		OutputTemplate: &ruleset.OutputTemplate{Type: "flat", Fields: fields},
	}
}

// ancestors returns every strict prefix path of a dotted path, e.g.
// "labels.severity" -> ["labels"].
func ancestors(path string) []string {
	parts := strings.Split(path, ".")
	if len(parts) < 2 {
		return nil
	}
	out := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		out = append(out, strings.Join(parts[:i], "."))
	}
	return out
}
