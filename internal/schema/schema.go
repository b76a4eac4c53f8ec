// Package schema infers structural schemas from observed payload values.
package schema

import (
	"encoding/json"
	"math"
	"sort"
)

// Kind identifies a schema node variant.
type Kind int

const (
	// Null matches a JSON null.
	Null Kind = iota
	// Boolean matches true/false.
	Boolean
	// Integer matches whole-valued numbers.
	Integer
	// Number matches any numeric value.
	Number
	// String matches text, and is the fallback for unrepresentable values.
	String
	// Array matches a homogeneous list described by Items.
	Array
	// Object matches a map with the properties in Props.
	Object
	// OneOf matches any of the Variants.
	OneOf
)

// String returns the JSON-Schema type name for the kind.
func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Boolean:
		return "boolean"
	case Integer:
		return "integer"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	case OneOf:
		return "oneOf"
	default:
		return "unknown"
	}
}

// Prop is one object property. Order within Node.Props is significant and
// preserved through merging and rendering.
type Prop struct {
	Name     string
	Node     *Node
	Required bool
}

// Node is the recursive schema representation. Exactly one variant is
// populated, selected by Kind. Nodes are treated as immutable once built;
// merging produces fresh nodes.
type Node struct {
	Kind     Kind
	Items    *Node   // Array only
	Props    []Prop  // Object only
	Variants []*Node // OneOf only

	// Unstructured marks a String node produced by the recovery fallback
	// for text that could not be interpreted at all.
	Unstructured bool
}

// NewObject returns an empty, most-permissive object node.
func NewObject() *Node {
	return &Node{Kind: Object}
}

// Synthesize infers a schema from one decoded value. It is a pure function:
// the same value always yields the same node, and the input is not modified.
func Synthesize(v interface{}) *Node {
	switch val := v.(type) {
	case nil:
		return &Node{Kind: Null}
	case bool:
		return &Node{Kind: Boolean}
	case string:
		return &Node{Kind: String}
	case float64:
		return numberNode(val)
	case float32:
		return numberNode(float64(val))
	case int:
		return &Node{Kind: Integer}
	case int32:
		return &Node{Kind: Integer}
	case int64:
		return &Node{Kind: Integer}
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return numberNode(f)
		}
		return &Node{Kind: Number}
	case []interface{}:
		return synthesizeArray(val)
	case map[string]interface{}:
		return synthesizeObject(val)
	default:
		// Unrepresentable primitive kinds degrade to string.
		return &Node{Kind: String}
	}
}

func numberNode(f float64) *Node {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		return &Node{Kind: Integer}
	}
	return &Node{Kind: Number}
}

func synthesizeObject(m map[string]interface{}) *Node {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	props := make([]Prop, 0, len(names))
	for _, name := range names {
		props = append(props, Prop{
			Name:     name,
			Node:     Synthesize(m[name]),
			Required: true,
		})
	}
	return &Node{Kind: Object, Props: props}
}

func synthesizeArray(items []interface{}) *Node {
	if len(items) == 0 {
		// Nothing to sample; assume a list of objects.
		return &Node{Kind: Array, Items: NewObject()}
	}

	members := make([]*Node, len(items))
	allObjects := true
	for i, item := range items {
		members[i] = Synthesize(item)
		if members[i].Kind != Object {
			allObjects = false
		}
	}

	// Representative sampling: an all-object array is described by its
	// first member only. Shape drift across members is accepted precision
	// loss, not something to repair here.
	if allObjects {
		return &Node{Kind: Array, Items: members[0]}
	}

	if n, ok := uniformPrimitive(members); ok {
		return &Node{Kind: Array, Items: n}
	}

	variants := dedupe(members)
	if len(variants) == 1 {
		return &Node{Kind: Array, Items: variants[0]}
	}
	return &Node{Kind: Array, Items: &Node{Kind: OneOf, Variants: variants}}
}

// uniformPrimitive reports whether all members share one primitive kind,
// widening integer to number when any element is fractional.
func uniformPrimitive(members []*Node) (*Node, bool) {
	numeric := true
	for _, m := range members {
		if m.Kind != Integer && m.Kind != Number {
			numeric = false
			break
		}
	}
	if numeric {
		kind := Integer
		for _, m := range members {
			if m.Kind == Number {
				kind = Number
				break
			}
		}
		return &Node{Kind: kind}, true
	}

	first := members[0].Kind
	if first == Array || first == Object || first == OneOf {
		return nil, false
	}
	for _, m := range members[1:] {
		if m.Kind != first {
			return nil, false
		}
	}
	return &Node{Kind: first}, true
}

// Equal reports structural equality. Object properties are compared by name
// rather than position, and OneOf variants as an unordered set, so schemas
// that differ only in discovery order compare equal.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || a.Unstructured != b.Unstructured {
		return false
	}
	switch a.Kind {
	case Array:
		return Equal(a.Items, b.Items)
	case Object:
		if len(a.Props) != len(b.Props) {
			return false
		}
		byName := make(map[string]Prop, len(b.Props))
		for _, p := range b.Props {
			byName[p.Name] = p
		}
		for _, p := range a.Props {
			other, ok := byName[p.Name]
			if !ok || other.Required != p.Required || !Equal(p.Node, other.Node) {
				return false
			}
		}
		return true
	case OneOf:
		if len(a.Variants) != len(b.Variants) {
			return false
		}
		matched := make([]bool, len(b.Variants))
	outer:
		for _, v := range a.Variants {
			for i, w := range b.Variants {
				if !matched[i] && Equal(v, w) {
					matched[i] = true
					continue outer
				}
			}
			return false
		}
		return true
	default:
		return true
	}
}

func dedupe(nodes []*Node) []*Node {
	unique := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		seen := false
		for _, u := range unique {
			if Equal(n, u) {
				seen = true
				break
			}
		}
		if !seen {
			unique = append(unique, n)
		}
	}
	return unique
}

// Satisfies reports whether a decoded value conforms to the node. Used by
// tests to check soundness of synthesis and merging.
func Satisfies(v interface{}, n *Node) bool {
	if n == nil {
		return false
	}
	switch n.Kind {
	case Null:
		return v == nil
	case Boolean:
		_, ok := v.(bool)
		return ok
	case Integer:
		f, ok := asFloat(v)
		return ok && f == math.Trunc(f)
	case Number:
		_, ok := asFloat(v)
		return ok
	case String:
		if n.Unstructured {
			return true
		}
		_, ok := v.(string)
		return ok
	case Array:
		items, ok := v.([]interface{})
		if !ok {
			return false
		}
		for _, item := range items {
			if !Satisfies(item, n.Items) {
				return false
			}
		}
		return true
	case Object:
		m, ok := v.(map[string]interface{})
		if !ok {
			return false
		}
		for _, p := range n.Props {
			pv, present := m[p.Name]
			if !present {
				if p.Required {
					return false
				}
				continue
			}
			if !Satisfies(pv, p.Node) {
				return false
			}
		}
		return true
	case OneOf:
		for _, variant := range n.Variants {
			if Satisfies(v, variant) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
