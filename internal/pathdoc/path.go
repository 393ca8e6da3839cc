// Package pathdoc implements dotted-path addressing over untyped JSON
// documents (the result of encoding/json's map[string]any/[]any/scalar
// decoding). A path is a sequence of segments separated by '.'; a segment
// is either a bare key, a bare digit (an array index), or a key
// immediately followed by one or more "[idx]" groups.
package pathdoc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// segKind distinguishes a key-descend step from an index-descend step.
type segKind int

const (
	segKey segKind = iota
	segIndex
)

// Segment is a single descend step produced by Parse.
type Segment struct {
	kind  segKind
	key   string
	index int
}

// IsIndex reports whether this segment descends into an array.
func (s Segment) IsIndex() bool { return s.kind == segIndex }

var bracketSeg = regexp.MustCompile(`^([^\[\]]*)((?:\[[0-9]+\])*)$`)
var bracketGroup = regexp.MustCompile(`\[([0-9]+)\]`)
var digitsOnly = regexp.MustCompile(`^[0-9]+$`)

// Parse splits a dotted path expression into its descend steps. The digit
// form ("a.0.b") and the bracket form ("a[0].b") produce identical
// segment sequences. Whitespace around each dotted part is ignored.
// Parse returns an error only for syntactically malformed input (used to
// validate rule documents up front); Get/Set/Delete never call it in a
// way that can panic at request time.
func Parse(path string) ([]Segment, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("pathdoc: empty path")
	}

	parts := strings.Split(path, ".")
	var segs []Segment
	for _, raw := range parts {
		part := strings.TrimSpace(raw)
		if part == "" {
			return nil, fmt.Errorf("pathdoc: empty segment in %q", path)
		}

		if digitsOnly.MatchString(part) {
			idx, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("pathdoc: bad index %q: %w", part, err)
			}
			segs = append(segs, Segment{kind: segIndex, index: idx})
			continue
		}

		m := bracketSeg.FindStringSubmatch(part)
		if m == nil {
			return nil, fmt.Errorf("pathdoc: malformed segment %q in %q", part, path)
		}
		key, brackets := m[1], m[2]
		if key == "" {
			return nil, fmt.Errorf("pathdoc: missing key before index in %q", part)
		}
		segs = append(segs, Segment{kind: segKey, key: key})

		for _, g := range bracketGroup.FindAllStringSubmatch(brackets, -1) {
			idx, err := strconv.Atoi(g[1])
			if err != nil {
				return nil, fmt.Errorf("pathdoc: bad index %q: %w", g[1], err)
			}
			segs = append(segs, Segment{kind: segIndex, index: idx})
		}
	}
	return segs, nil
}

// MustParse parses a path known to be valid (e.g. a literal in tests) and
// panics if it is not.
func MustParse(path string) []Segment {
	segs, err := Parse(path)
	if err != nil {
		panic(err)
	}
	return segs
}

// Valid reports whether path is syntactically parseable (spec invariant
// that paths used in transform rules and output selectors parse cleanly).
func Valid(path string) bool {
	_, err := Parse(path)
	return err == nil
}
