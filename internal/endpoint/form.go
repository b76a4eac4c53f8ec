package endpoint

import (
	"strings"

	"github.com/PentesterFlow/OpenScribe/internal/htmlform"
	"github.com/PentesterFlow/OpenScribe/internal/pathtmpl"
	"github.com/PentesterFlow/OpenScribe/internal/schema"
)

// RecordForm registers an endpoint discovered from an HTML form. GET forms
// contribute query parameters; mutating forms contribute a request body
// schema under the form's enctype. Parameter and body slots follow the
// same first-observation-wins rules as live traffic, so a later real
// submission never downgrades what the form declared.
func (r *Registry) RecordForm(f htmlform.Form) bool {
	if len(f.Inputs) == 0 {
		return false
	}

	templated := pathtmpl.Template(f.Action)
	method := strings.ToUpper(f.Method)

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[keyFor(method, templated)]
	created := !ok
	if !ok {
		rec = newRecord(method, templated)
		r.records[rec.Key()] = rec
		r.order = append(r.order, rec.Key())
	}

	if method == "GET" {
		for _, input := range f.Inputs {
			r.addParameter(rec, Parameter{
				Name:     input.Name,
				In:       "query",
				Required: input.Required,
				Schema:   inputSchema(input.Type),
			})
		}
		return created
	}

	enctype := f.Enctype
	if enctype == "" {
		enctype = "application/x-www-form-urlencoded"
	}
	if _, exists := rec.RequestBody[enctype]; !exists {
		rec.RequestBody[enctype] = formBodySchema(f.Inputs)
	}
	return created
}

func formBodySchema(inputs []htmlform.Input) *schema.Node {
	props := make([]schema.Prop, 0, len(inputs))
	for _, input := range inputs {
		props = append(props, schema.Prop{
			Name:     input.Name,
			Node:     inputSchema(input.Type),
			Required: input.Required,
		})
	}
	return &schema.Node{Kind: schema.Object, Props: props}
}

// inputSchema maps an HTML input type to a schema kind. Everything submits
// as text on the wire, but number and checkbox fields document intent
// better as their logical types.
func inputSchema(inputType string) *schema.Node {
	switch inputType {
	case "number", "range":
		return &schema.Node{Kind: schema.Number}
	case "checkbox":
		return &schema.Node{Kind: schema.Boolean}
	default:
		return &schema.Node{Kind: schema.String}
	}
}
