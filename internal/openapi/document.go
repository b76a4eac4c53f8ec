// Package openapi assembles the synthesized endpoint records into an
// OpenAPI-style document and renders it as JSON or YAML.
package openapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/PentesterFlow/OpenScribe/internal/endpoint"
	"github.com/PentesterFlow/OpenScribe/internal/schema"
	"github.com/PentesterFlow/OpenScribe/internal/security"
)

const specVersion = "3.0.3"

// Document is the rendered description of everything observed so far.
type Document struct {
	OpenAPI    string              `json:"openapi" yaml:"openapi"`
	Info       Info                `json:"info" yaml:"info"`
	Servers    []Server            `json:"servers,omitempty" yaml:"servers,omitempty"`
	Paths      map[string]PathItem `json:"paths" yaml:"paths"`
	Components *Components         `json:"components,omitempty" yaml:"components,omitempty"`
}

// Info carries the document metadata block.
type Info struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string `json:"version" yaml:"version"`
}

// Server is one observed origin.
type Server struct {
	URL string `json:"url" yaml:"url"`
}

// PathItem maps a lowercase HTTP method to its operation.
type PathItem map[string]*Operation

// Operation describes one method on one templated path.
type Operation struct {
	Parameters  []Parameter           `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	RequestBody *RequestBody          `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Responses   map[string]*Response  `json:"responses" yaml:"responses"`
	Security    []map[string][]string `json:"security,omitempty" yaml:"security,omitempty"`
}

// Parameter is a rendered path, query or header parameter.
type Parameter struct {
	Name     string       `json:"name" yaml:"name"`
	In       string       `json:"in" yaml:"in"`
	Required bool         `json:"required,omitempty" yaml:"required,omitempty"`
	Schema   *schema.Node `json:"schema" yaml:"schema"`
	Example  string       `json:"example,omitempty" yaml:"example,omitempty"`
}

// RequestBody holds the per-content-type request schemas.
type RequestBody struct {
	Content map[string]MediaType `json:"content" yaml:"content"`
}

// MediaType wraps a schema for one content type.
type MediaType struct {
	Schema *schema.Node `json:"schema" yaml:"schema"`
}

// Response is a rendered status code entry.
type Response struct {
	Description string               `json:"description" yaml:"description"`
	Headers     map[string]Header    `json:"headers,omitempty" yaml:"headers,omitempty"`
	Content     map[string]MediaType `json:"content,omitempty" yaml:"content,omitempty"`
}

// Header is a rendered response header with its observed example.
type Header struct {
	Schema  *schema.Node `json:"schema" yaml:"schema"`
	Example string       `json:"example,omitempty" yaml:"example,omitempty"`
}

// Components holds the reusable definitions section.
type Components struct {
	SecuritySchemes map[string]security.Scheme `json:"securitySchemes,omitempty" yaml:"securitySchemes,omitempty"`
}

// Build assembles a document from the registry's records and the registered
// security schemes. The output depends only on the inputs, so repeated
// builds over the same state render identically.
func Build(records []*endpoint.Record, schemes map[string]security.Scheme, baseURL, title, version string) *Document {
	doc := &Document{
		OpenAPI: specVersion,
		Info: Info{
			Title:       title,
			Description: "Generated from observed traffic.",
			Version:     version,
		},
		Paths: make(map[string]PathItem),
	}
	if baseURL != "" {
		doc.Servers = []Server{{URL: baseURL}}
	}

	for _, rec := range records {
		item, ok := doc.Paths[rec.Path]
		if !ok {
			item = make(PathItem)
			doc.Paths[rec.Path] = item
		}
		item[methodKey(rec.Method)] = buildOperation(rec)
	}

	if len(schemes) > 0 {
		doc.Components = &Components{SecuritySchemes: schemes}
	}
	return doc
}

func buildOperation(rec *endpoint.Record) *Operation {
	op := &Operation{
		Responses: make(map[string]*Response, len(rec.Responses)),
	}

	for _, p := range rec.Parameters {
		op.Parameters = append(op.Parameters, Parameter{
			Name:     p.Name,
			In:       p.In,
			Required: p.Required,
			Schema:   p.Schema,
			Example:  p.Example,
		})
	}

	if len(rec.RequestBody) > 0 {
		body := &RequestBody{Content: make(map[string]MediaType, len(rec.RequestBody))}
		for ct, node := range rec.RequestBody {
			body.Content[ct] = MediaType{Schema: node}
		}
		op.RequestBody = body
	}

	for status, resp := range rec.Responses {
		rendered := &Response{Description: statusDescription(status)}
		if len(resp.Headers) > 0 {
			rendered.Headers = make(map[string]Header, len(resp.Headers))
			for name, example := range resp.Headers {
				rendered.Headers[name] = Header{
					Schema:  &schema.Node{Kind: schema.String},
					Example: example,
				}
			}
		}
		if len(resp.Content) > 0 {
			rendered.Content = make(map[string]MediaType, len(resp.Content))
			for ct, node := range resp.Content {
				rendered.Content[ct] = MediaType{Schema: node}
			}
		}
		op.Responses[statusKey(status)] = rendered
	}

	for _, name := range rec.Security {
		op.Security = append(op.Security, map[string][]string{name: {}})
	}
	return op
}

// JSONText renders the document as indented JSON.
func (d *Document) JSONText() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// YAMLText renders the document as YAML.
func (d *Document) YAMLText() ([]byte, error) {
	return yaml.Marshal(d)
}

func methodKey(method string) string {
	switch method {
	case http.MethodGet:
		return "get"
	case http.MethodPut:
		return "put"
	case http.MethodPost:
		return "post"
	case http.MethodDelete:
		return "delete"
	case http.MethodOptions:
		return "options"
	case http.MethodHead:
		return "head"
	case http.MethodPatch:
		return "patch"
	case http.MethodTrace:
		return "trace"
	default:
		return strings.ToLower(method)
	}
}

func statusKey(status int) string {
	if status < 100 || status > 999 {
		return "default"
	}
	return strconv.Itoa(status)
}

func statusDescription(status int) string {
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "Response"
}
