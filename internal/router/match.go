package router

import (
	"strings"

	"github.com/alertbridge/relay/internal/ruleset"
)

// ResolveRoute implements the three-tier source resolution from
// spec.md §4.3: exact match, then case-insensitive match, then — if the
// source contains a hyphen — an exact match against the prefix before
// the first hyphen. The first tier to produce a match wins; ties within
// a tier resolve to the earliest-declared route.
func ResolveRoute(routes []ruleset.Route, source string) (*ruleset.Route, bool) {
	for i := range routes {
		if routes[i].Match.Source == source {
			return &routes[i], true
		}
	}
	for i := range routes {
		if strings.EqualFold(routes[i].Match.Source, source) {
			return &routes[i], true
		}
	}
	if idx := strings.IndexByte(source, '-'); idx >= 0 {
		prefix := source[:idx]
		for i := range routes {
			if routes[i].Match.Source == prefix {
				return &routes[i], true
			}
		}
	}
	return nil, false
}
