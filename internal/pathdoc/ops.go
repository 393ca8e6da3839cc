package pathdoc

// Get evaluates path against doc and reports whether it resolved. A
// segment misses, or traverses through a non-container, yields
// found=false rather than an error — Get never panics on a malformed
// document shape.
func Get(doc any, path string) (found bool, value any) {
	segs, err := Parse(path)
	if err != nil {
		return false, nil
	}
	return getSegs(doc, segs)
}

func getSegs(doc any, segs []Segment) (bool, any) {
	cur := doc
	for _, seg := range segs {
		switch seg.kind {
		case segKey:
			m, ok := cur.(map[string]any)
			if !ok {
				return false, nil
			}
			v, ok := m[seg.key]
			if !ok {
				return false, nil
			}
			cur = v
		case segIndex:
			arr, ok := cur.([]any)
			if !ok {
				return false, nil
			}
			if seg.index < 0 || seg.index >= len(arr) {
				return false, nil
			}
			cur = arr[seg.index]
		}
	}
	return true, cur
}

// Set mutates *root, creating intermediate objects/arrays on demand, and
// stores value at path. When a segment carries an index the intermediate
// container created is an array (never an object keyed by the digit);
// skipped array slots are filled with empty objects. A container whose
// existing shape contradicts the segment it must satisfy is replaced, not
// merged — the last writer for a given leaf wins. Set is a silent no-op
// if *root is a non-nil, non-container scalar (a "non-object root").
func Set(root *any, path string, value any) {
	segs, err := Parse(path)
	if err != nil || len(segs) == 0 {
		return
	}
	if *root != nil && !isContainer(*root) {
		return
	}
	*root = setSegs(*root, segs, value)
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}

func setSegs(container any, segs []Segment, value any) any {
	seg := segs[0]
	rest := segs[1:]

	switch seg.kind {
	case segKey:
		m, ok := container.(map[string]any)
		if !ok {
			m = map[string]any{}
		}
		if len(rest) == 0 {
			m[seg.key] = value
		} else {
			m[seg.key] = setSegs(m[seg.key], rest, value)
		}
		return m

	case segIndex:
		arr, ok := container.([]any)
		if !ok {
			arr = []any{}
		}
		for len(arr) <= seg.index {
			arr = append(arr, map[string]any{})
		}
		if len(rest) == 0 {
			arr[seg.index] = value
		} else {
			arr[seg.index] = setSegs(arr[seg.index], rest, value)
		}
		return arr
	}
	return container
}

// Delete removes the leaf addressed by path, leaving parent containers in
// place. It silently no-ops if any intermediate segment misses or if the
// root is not a container.
func Delete(root *any, path string) {
	segs, err := Parse(path)
	if err != nil || len(segs) == 0 {
		return
	}
	if *root == nil || !isContainer(*root) {
		return
	}
	deleteSegs(*root, segs)
}

func deleteSegs(container any, segs []Segment) {
	seg := segs[0]
	rest := segs[1:]

	if len(rest) == 0 {
		switch seg.kind {
		case segKey:
			if m, ok := container.(map[string]any); ok {
				delete(m, seg.key)
			}
		case segIndex:
			// Spec: "delete(doc, path) -> remove a leaf key or array
			// element, leaving parents in place." Removing an array
			// element in place (without shifting) is represented by
			// nulling the slot so sibling indices stay stable.
			if arr, ok := container.([]any); ok && seg.index >= 0 && seg.index < len(arr) {
				arr[seg.index] = nil
			}
		}
		return
	}

	switch seg.kind {
	case segKey:
		m, ok := container.(map[string]any)
		if !ok {
			return
		}
		child, ok := m[seg.key]
		if !ok || !isContainer(child) {
			return
		}
		deleteSegs(child, rest)
	case segIndex:
		arr, ok := container.([]any)
		if !ok || seg.index < 0 || seg.index >= len(arr) {
			return
		}
		child := arr[seg.index]
		if !isContainer(child) {
			return
		}
		deleteSegs(child, rest)
	}
}

// Clone deep-copies a decoded JSON document (map[string]any / []any /
// scalars). The transform engine never mutates its input in place — this
// is how it takes a working copy on entry.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = Clone(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = Clone(vv)
		}
		return out
	default:
		return t
	}
}
