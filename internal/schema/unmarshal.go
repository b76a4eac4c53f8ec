package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UnmarshalJSON parses the JSON-Schema fragment form produced by
// MarshalJSON, preserving property order. Used when reloading persisted
// endpoint records.
func (n *Node) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("schema: expected object, got %v", tok)
	}

	parsed := Node{}
	var required []string

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		switch key {
		case "type":
			var typ string
			if err := dec.Decode(&typ); err != nil {
				return err
			}
			if parsed.Kind, err = kindFromType(typ); err != nil {
				return err
			}
		case "items":
			parsed.Items = &Node{}
			if err := dec.Decode(parsed.Items); err != nil {
				return err
			}
		case "oneOf":
			parsed.Kind = OneOf
			if err := dec.Decode(&parsed.Variants); err != nil {
				return err
			}
		case "properties":
			props, err := decodeProps(dec)
			if err != nil {
				return err
			}
			parsed.Props = props
		case "required":
			if err := dec.Decode(&required); err != nil {
				return err
			}
		case "x-unstructured":
			if err := dec.Decode(&parsed.Unstructured); err != nil {
				return err
			}
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return err
			}
		}
	}

	if _, err := dec.Token(); err != nil { // closing brace
		return err
	}

	for i := range parsed.Props {
		for _, name := range required {
			if parsed.Props[i].Name == name {
				parsed.Props[i].Required = true
				break
			}
		}
	}

	*n = parsed
	return nil
}

// decodeProps reads the properties object token by token so the recorded
// order survives the round trip.
func decodeProps(dec *json.Decoder) ([]Prop, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("schema: expected properties object, got %v", tok)
	}

	var props []Prop
	for dec.More() {
		nameTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, _ := nameTok.(string)

		node := &Node{}
		if err := dec.Decode(node); err != nil {
			return nil, err
		}
		props = append(props, Prop{Name: name, Node: node})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return props, nil
}

func kindFromType(typ string) (Kind, error) {
	switch typ {
	case "null":
		return Null, nil
	case "boolean":
		return Boolean, nil
	case "integer":
		return Integer, nil
	case "number":
		return Number, nil
	case "string":
		return String, nil
	case "array":
		return Array, nil
	case "object":
		return Object, nil
	default:
		return 0, fmt.Errorf("schema: unknown type %q", typ)
	}
}
