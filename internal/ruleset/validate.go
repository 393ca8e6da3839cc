package ruleset

import (
	"fmt"
	"strings"

	"github.com/alertbridge/relay/internal/pathdoc"
)

// Validate checks the invariants from spec.md §3 (I1, I2, I5, I6). I3 and
// I4 are properties of a Target resolved at send time and are checked by
// the forwarder, not here.
func (r *RuleSet) Validate() error {
	var errs []string

	names := make(map[string]bool, len(r.Routes))
	sources := make(map[string]bool, len(r.Routes))
	for _, route := range r.Routes {
		if names[route.Name] {
			errs = append(errs, fmt.Sprintf("duplicate route name %q", route.Name))
		}
		names[route.Name] = true

		if sources[strings.ToLower(route.Match.Source)] {
			errs = append(errs, fmt.Sprintf("duplicate route match.source %q", route.Match.Source))
		}
		sources[strings.ToLower(route.Match.Source)] = true

		if err := validateTransformPaths(route.Transform); err != nil {
			errs = append(errs, fmt.Sprintf("route %q: %v", route.Name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("ruleset: invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateTransformPaths(t Transform) error {
	for _, p := range t.IncludeFields {
		if !pathdoc.Valid(p) {
			return fmt.Errorf("include_fields: unparseable path %q", p)
		}
	}
	for _, p := range t.DropFields {
		if !pathdoc.Valid(p) {
			return fmt.Errorf("drop_fields: unparseable path %q", p)
		}
	}
	var badRename error
	t.Rename.Range(func(src, dst string) {
		if badRename != nil {
			return
		}
		if !pathdoc.Valid(src) {
			badRename = fmt.Errorf("rename: unparseable source path %q", src)
			return
		}
		if !pathdoc.Valid(dst) {
			badRename = fmt.Errorf("rename: unparseable destination path %q", dst)
		}
	})
	if badRename != nil {
		return badRename
	}
	for p := range t.MapValues {
		if !pathdoc.Valid(p) {
			return fmt.Errorf("map_values: unparseable path %q", p)
		}
	}
	if t.OutputTemplate != nil {
		var badField error
		t.OutputTemplate.Fields.Range(func(name, selector string) {
			if badField != nil {
				return
			}
			if !pathdoc.Valid(name) {
				badField = fmt.Errorf("output_template: unparseable field name %q", name)
				return
			}
			if !validSelector(selector) {
				badField = fmt.Errorf("output_template: unparseable selector %q", selector)
			}
		})
		if badField != nil {
			return badField
		}
	}
	return nil
}

// validSelector checks invariant I6: output selectors begin with "$" (the
// whole document) or "$." followed by a path.
func validSelector(sel string) bool {
	if sel == "$" {
		return true
	}
	if strings.HasPrefix(sel, "$.") {
		return pathdoc.Valid(strings.TrimPrefix(sel, "$."))
	}
	return false
}
