package endpoint

import (
	"github.com/PentesterFlow/OpenScribe/internal/schema"
)

// Parameter is one documented request parameter, unique per (name, in).
type Parameter struct {
	Name     string       `json:"name"`
	In       string       `json:"in"` // "path", "query" or "header"
	Required bool         `json:"required,omitempty"`
	Schema   *schema.Node `json:"schema"`
	Example  string       `json:"example,omitempty"`
}

// Response accumulates what has been observed for one status code.
type Response struct {
	// Content maps content type to the schema merged over every sample
	// observed so far.
	Content map[string]*schema.Node `json:"content,omitempty"`

	// Headers holds response header examples, last write wins per name.
	Headers map[string]string `json:"headers,omitempty"`

	// samples is the full per-content-type schema history. Re-merging over
	// the whole history on every observation keeps the result independent
	// of arrival order.
	samples map[string][]*schema.Node
}

func newResponse() *Response {
	return &Response{
		Content: make(map[string]*schema.Node),
		Headers: make(map[string]string),
		samples: make(map[string][]*schema.Node),
	}
}

// Record is the accumulated contract for one (method, templated path) pair.
type Record struct {
	Method string `json:"method"`
	Path   string `json:"path"` // templated

	Parameters  []Parameter             `json:"parameters,omitempty"`
	RequestBody map[string]*schema.Node `json:"request_body,omitempty"`
	Responses   map[int]*Response       `json:"responses"`

	// Security lists canonical scheme names attached to this endpoint.
	Security []string `json:"security,omitempty"`
}

func newRecord(method, templatedPath string) *Record {
	return &Record{
		Method:      method,
		Path:        templatedPath,
		RequestBody: make(map[string]*schema.Node),
		Responses:   make(map[int]*Response),
	}
}

// Key returns the registry key for the record.
func (r *Record) Key() string {
	return r.Method + " " + r.Path
}

// hasParameter reports whether a parameter with this identity exists.
func (r *Record) hasParameter(name, in string) bool {
	for _, p := range r.Parameters {
		if p.Name == name && p.In == in {
			return true
		}
	}
	return false
}

// addSecurity attaches a scheme reference if not already present.
func (r *Record) addSecurity(name string) {
	for _, existing := range r.Security {
		if existing == name {
			return
		}
	}
	r.Security = append(r.Security, name)
}
