package schema

import (
	"bytes"
	"encoding/json"
	"strconv"

	"gopkg.in/yaml.v3"
)

// MarshalJSON renders the node as a JSON-Schema fragment. Object properties
// are emitted in their recorded order, which encoding/json cannot do for
// maps, hence the manual construction.
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *Node) writeJSON(buf *bytes.Buffer) error {
	buf.WriteByte('{')

	switch n.Kind {
	case OneOf:
		buf.WriteString(`"oneOf":[`)
		for i, v := range n.Variants {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := v.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Array:
		buf.WriteString(`"type":"array","items":`)
		items := n.Items
		if items == nil {
			items = NewObject()
		}
		if err := items.writeJSON(buf); err != nil {
			return err
		}
	case Object:
		buf.WriteString(`"type":"object"`)
		if len(n.Props) > 0 {
			buf.WriteString(`,"properties":{`)
			for i, p := range n.Props {
				if i > 0 {
					buf.WriteByte(',')
				}
				buf.WriteString(strconv.Quote(p.Name))
				buf.WriteByte(':')
				if err := p.Node.writeJSON(buf); err != nil {
					return err
				}
			}
			buf.WriteByte('}')
			if names := requiredNames(n.Props); len(names) > 0 {
				data, err := json.Marshal(names)
				if err != nil {
					return err
				}
				buf.WriteString(`,"required":`)
				buf.Write(data)
			}
		}
	default:
		buf.WriteString(`"type":`)
		buf.WriteString(strconv.Quote(n.Kind.String()))
	}

	if n.Unstructured {
		buf.WriteString(`,"x-unstructured":true`)
	}

	buf.WriteByte('}')
	return nil
}

func requiredNames(props []Prop) []string {
	var names []string
	for _, p := range props {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// MarshalYAML mirrors MarshalJSON for yaml.v3, again preserving property
// order via explicit mapping nodes.
func (n *Node) MarshalYAML() (interface{}, error) {
	return n.yamlNode(), nil
}

func (n *Node) yamlNode() *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode}

	switch n.Kind {
	case OneOf:
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, v := range n.Variants {
			seq.Content = append(seq.Content, v.yamlNode())
		}
		appendYAML(m, "oneOf", seq)
	case Array:
		appendYAML(m, "type", yamlString("array"))
		items := n.Items
		if items == nil {
			items = NewObject()
		}
		appendYAML(m, "items", items.yamlNode())
	case Object:
		appendYAML(m, "type", yamlString("object"))
		if len(n.Props) > 0 {
			props := &yaml.Node{Kind: yaml.MappingNode}
			for _, p := range n.Props {
				appendYAML(props, p.Name, p.Node.yamlNode())
			}
			appendYAML(m, "properties", props)
			if names := requiredNames(n.Props); len(names) > 0 {
				seq := &yaml.Node{Kind: yaml.SequenceNode}
				for _, name := range names {
					seq.Content = append(seq.Content, yamlString(name))
				}
				appendYAML(m, "required", seq)
			}
		}
	default:
		appendYAML(m, "type", yamlString(n.Kind.String()))
	}

	if n.Unstructured {
		appendYAML(m, "x-unstructured", &yaml.Node{
			Kind: yaml.ScalarNode, Tag: "!!bool", Value: "true",
		})
	}

	return m
}

func appendYAML(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content, yamlString(key), value)
}

func yamlString(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}
