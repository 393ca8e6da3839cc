// Package transform implements the declarative payload reshaping
// pipeline (component C2, spec.md §4.2): include -> drop -> rename ->
// enrich -> map_values -> output_template, applied in that fixed order
// over a cloned copy of the inbound document.
package transform

import (
	"strconv"

	"github.com/alertbridge/relay/internal/pathdoc"
	"github.com/alertbridge/relay/internal/ruleset"
)

// step is one stage of the pipeline. Modeling the pipeline as a fixed
// ordered slice of closures, built once per Transform, avoids per-field
// nil checks in the hot path (per spec.md §9's "closed sum type" note).
type step func(doc any) any

// Pipeline is a Transform compiled into an ordered, directly-callable
// sequence of steps.
type Pipeline struct {
	steps []step
}

// Compile builds a Pipeline from a declarative Transform. Compilation
// only decides which steps are present (an empty/nil field is skipped
// entirely); it never fails — a Transform with no fields configured
// compiles to an empty Pipeline that is the identity function (T1).
func Compile(t ruleset.Transform) Pipeline {
	var steps []step

	if len(t.IncludeFields) > 0 {
		fields := append([]string(nil), t.IncludeFields...)
		steps = append(steps, func(doc any) any {
			var out any = map[string]any{}
			for _, path := range fields {
				if found, v := pathdoc.Get(doc, path); found {
					pathdoc.Set(&out, path, v)
				}
			}
			return out
		})
	}

	if len(t.DropFields) > 0 {
		fields := append([]string(nil), t.DropFields...)
		steps = append(steps, func(doc any) any {
			for _, path := range fields {
				pathdoc.Delete(&doc, path)
			}
			return doc
		})
	}

	if t.Rename.Len() > 0 {
		type pair struct{ src, dst string }
		var pairs []pair
		t.Rename.Range(func(src, dst string) { pairs = append(pairs, pair{src, dst}) })
		steps = append(steps, func(doc any) any {
			for _, p := range pairs {
				if found, v := pathdoc.Get(doc, p.src); found {
					pathdoc.Set(&doc, p.dst, v)
					pathdoc.Delete(&doc, p.src)
				}
			}
			return doc
		})
	}

	if len(t.EnrichStatic) > 0 {
		enrich := make(map[string]any, len(t.EnrichStatic))
		for k, v := range t.EnrichStatic {
			enrich[k] = v
		}
		steps = append(steps, func(doc any) any {
			m, ok := doc.(map[string]any)
			if !ok {
				m = map[string]any{}
				doc = m
			}
			for k, v := range enrich {
				m[k] = v
			}
			return doc
		})
	}

	if len(t.MapValues) > 0 {
		type lookup struct {
			path string
			rule ruleset.MapValueRule
		}
		var lookups []lookup
		for path, rule := range t.MapValues {
			lookups = append(lookups, lookup{path, rule})
		}
		steps = append(steps, func(doc any) any {
			for _, l := range lookups {
				found, v := pathdoc.Get(doc, l.path)
				if !found {
					continue
				}
				key, ok := scalarKey(v)
				if !ok {
					continue
				}
				if mapped, ok := l.rule[key]; ok {
					pathdoc.Set(&doc, l.path, mapped)
				}
			}
			return doc
		})
	}

	if t.OutputTemplate != nil {
		type field struct{ name, selector string }
		var fields []field
		t.OutputTemplate.Fields.Range(func(name, selector string) {
			fields = append(fields, field{name, selector})
		})
		steps = append(steps, func(doc any) any {
			var out any = map[string]any{}
			for _, f := range fields {
				pathdoc.Set(&out, f.name, resolveSelector(doc, f.selector))
			}
			return out
		})
	}

	return Pipeline{steps: steps}
}

// Apply runs the pipeline over a deep clone of input; input itself is
// never mutated. If no steps are configured the clone is returned
// unchanged (T1: round-trip identity for an empty transform).
func (p Pipeline) Apply(input any) any {
	doc := pathdoc.Clone(input)
	for _, s := range p.steps {
		doc = s(doc)
	}
	return doc
}

// resolveSelector evaluates an output_template selector: "$" returns the
// whole working document, "$.path" returns Get(doc, path) or nil when
// not found.
func resolveSelector(doc any, selector string) any {
	if selector == "$" {
		return doc
	}
	if len(selector) > 2 && selector[0] == '$' && selector[1] == '.' {
		if found, v := pathdoc.Get(doc, selector[2:]); found {
			return v
		}
	}
	return nil
}

// scalarKey converts a JSON scalar into the string form used as a
// map_values lookup key. Non-scalars never match a lookup table entry.
func scalarKey(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		if t {
			return "true", true
		}
		return "false", true
	case float64:
		return trimFloat(t), true
	default:
		return "", false
	}
}

// trimFloat renders a JSON number the way map_values lookup keys are
// authored in YAML: integral values without a trailing ".0".
func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
