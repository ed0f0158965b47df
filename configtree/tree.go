// Package configtree models a resolved experiment configuration as an
// immutable key-value tree. Trees serialize to YAML with deterministic key
// ordering and round-trip losslessly, which is what tracking hooks rely on
// when attaching the configuration as a run artifact.
package configtree

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tree is an immutable nested key-value configuration. The zero value is
// an empty tree; construct populated trees with FromMap or Parse.
type Tree struct {
	root map[string]any
}

// FromMap builds a Tree from a nested map. The input is deep-copied and
// normalized (nested maps become map[string]any, slices become []any), so
// later mutation of the input does not affect the tree.
func FromMap(m map[string]any) *Tree {
	root, _ := normalize(m).(map[string]any)
	if root == nil {
		root = map[string]any{}
	}
	return &Tree{root: root}
}

// Parse reads a YAML document produced by MarshalText (or any YAML
// mapping) back into a Tree.
func Parse(data []byte) (*Tree, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing config tree: %w", err)
	}
	return FromMap(root), nil
}

// MarshalText serializes the tree as a YAML document with keys sorted at
// every level, so identical trees always produce identical documents.
func (t *Tree) MarshalText() ([]byte, error) {
	node, err := buildNode(t.Root())
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(node)
	if err != nil {
		return nil, fmt.Errorf("marshaling config tree: %w", err)
	}
	return out, nil
}

// Root returns the underlying map. Never nil.
func (t *Tree) Root() map[string]any {
	if t == nil || t.root == nil {
		return map[string]any{}
	}
	return t.root
}

// Lookup resolves a dotted path ("trainer.optimizer.lr") to a value.
func (t *Tree) Lookup(path string) (any, bool) {
	cur := any(t.Root())
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Flatten returns a map from dotted leaf paths to values.
func (t *Tree) Flatten() map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", t.Root())
	return out
}

// Keys returns the sorted dotted leaf paths of the tree.
func (t *Tree) Keys() []string {
	flat := t.Flatten()
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of leaf values.
func (t *Tree) Len() int {
	return len(t.Flatten())
}

// Equal reports whether two trees hold the same values.
func (t *Tree) Equal(o *Tree) bool {
	return reflect.DeepEqual(t.Root(), o.Root())
}

func flattenInto(out map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			flattenInto(out, key, child)
			continue
		}
		out[key] = v
	}
}

// normalize deep-copies v, converting every map to map[string]any, every
// slice to []any, and numeric scalars to the types the YAML decoder
// produces (int, float64), so parsed and constructed trees compare equal.
func normalize(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = normalize(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = normalize(child)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		for _, key := range rv.MapKeys() {
			out[fmt.Sprint(key.Interface())] = normalize(rv.MapIndex(key).Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() <= math.MaxInt64 {
			return int(rv.Uint())
		}
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return v
}

// buildNode converts a value into a yaml.Node, sorting mapping keys.
func buildNode(v any) (*yaml.Node, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range keys {
			keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
			valNode, err := buildNode(val[k])
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, keyNode, valNode)
		}
		return node, nil
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range val {
			itemNode, err := buildNode(item)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, itemNode)
		}
		return node, nil
	default:
		node := &yaml.Node{}
		if err := node.Encode(v); err != nil {
			return nil, fmt.Errorf("encoding %v: %w", v, err)
		}
		return node, nil
	}
}
