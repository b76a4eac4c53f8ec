package schema

// Merge combines the schemas observed for one logical slot into a single
// node every input would satisfy. It is total: zero inputs yield the most
// permissive schema, one input is returned as-is.
//
// Object inputs are merged permissively: the property set is the union
// across samples, a property stays required only while every sample carries
// it. Anything else is deduplicated by structural equality and, when more
// than one distinct shape remains, wrapped in a oneOf preserving first-seen
// order.
func Merge(nodes []*Node) *Node {
	switch len(nodes) {
	case 0:
		return NewObject()
	case 1:
		return nodes[0]
	}

	allObjects := true
	for _, n := range nodes {
		if n == nil || n.Kind != Object {
			allObjects = false
			break
		}
	}
	if allObjects {
		return mergeObjects(nodes)
	}

	// Flatten oneOf inputs so repeated merging cannot nest alternatives.
	var flat []*Node
	for _, n := range nodes {
		if n != nil && n.Kind == OneOf {
			flat = append(flat, n.Variants...)
			continue
		}
		flat = append(flat, n)
	}

	unique := dedupe(flat)
	if len(unique) == 1 {
		return unique[0]
	}
	return &Node{Kind: OneOf, Variants: unique}
}

func mergeObjects(nodes []*Node) *Node {
	var order []string
	samples := make(map[string][]*Node)
	required := make(map[string]bool)
	presentIn := make(map[string]int)

	for _, n := range nodes {
		for _, p := range n.Props {
			if _, seen := samples[p.Name]; !seen {
				order = append(order, p.Name)
				required[p.Name] = true
			}
			samples[p.Name] = append(samples[p.Name], p.Node)
			presentIn[p.Name]++
			if !p.Required {
				required[p.Name] = false
			}
		}
	}

	props := make([]Prop, 0, len(order))
	for _, name := range order {
		props = append(props, Prop{
			Name:     name,
			Node:     Merge(samples[name]),
			Required: required[name] && presentIn[name] == len(nodes),
		})
	}
	return &Node{Kind: Object, Props: props}
}
