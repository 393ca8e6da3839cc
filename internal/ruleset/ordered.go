package ruleset

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// OrderedStringMap is a string->string mapping that preserves the
// insertion (document) order of its keys. The rename step (spec.md
// §4.2 step 3) and output_template.fields (step 6) both depend on
// iteration following the order the keys appeared in the rule document,
// which a plain Go map cannot guarantee.
type OrderedStringMap struct {
	keys   []string
	values map[string]string
}

// NewOrderedStringMap builds an OrderedStringMap from an explicit key
// order, used by tests.
func NewOrderedStringMap(pairs ...[2]string) OrderedStringMap {
	m := OrderedStringMap{values: make(map[string]string, len(pairs))}
	for _, p := range pairs {
		m.Set(p[0], p[1])
	}
	return m
}

// Set inserts or updates a key, appending it to the iteration order only
// the first time it is seen.
func (m *OrderedStringMap) Set(k, v string) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, exists := m.values[k]; !exists {
		m.keys = append(m.keys, k)
	}
	m.values[k] = v
}

// Len reports the number of entries.
func (m OrderedStringMap) Len() int { return len(m.keys) }

// Range calls fn for each entry in insertion order.
func (m OrderedStringMap) Range(fn func(key, value string)) {
	for _, k := range m.keys {
		fn(k, m.values[k])
	}
}

// Get looks up a single key.
func (m OrderedStringMap) Get(k string) (string, bool) {
	v, ok := m.values[k]
	return v, ok
}

// UnmarshalYAML decodes a YAML mapping node while preserving key order.
func (m *OrderedStringMap) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("ruleset: expected mapping, got kind %d", value.Kind)
	}
	*m = OrderedStringMap{values: make(map[string]string, len(value.Content)/2)}
	for i := 0; i+1 < len(value.Content); i += 2 {
		var k, v string
		if err := value.Content[i].Decode(&k); err != nil {
			return fmt.Errorf("ruleset: decoding key: %w", err)
		}
		if err := value.Content[i+1].Decode(&v); err != nil {
			return fmt.Errorf("ruleset: decoding value for %q: %w", k, err)
		}
		m.Set(k, v)
	}
	return nil
}

// MarshalYAML encodes back to a mapping node in insertion order, used by
// persist_rules.
func (m OrderedStringMap) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range m.keys {
		var keyNode, valNode yaml.Node
		if err := keyNode.Encode(k); err != nil {
			return nil, err
		}
		if err := valNode.Encode(m.values[k]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &keyNode, &valNode)
	}
	return node, nil
}
