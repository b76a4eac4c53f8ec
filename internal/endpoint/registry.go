// Package endpoint owns the accumulated API contract per (method,
// templated path) pair.
package endpoint

import (
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/PentesterFlow/OpenScribe/internal/exchange"
	"github.com/PentesterFlow/OpenScribe/internal/pathtmpl"
	"github.com/PentesterFlow/OpenScribe/internal/payload"
	"github.com/PentesterFlow/OpenScribe/internal/repair"
	"github.com/PentesterFlow/OpenScribe/internal/schema"
	"github.com/PentesterFlow/OpenScribe/internal/security"
)

// Registry accumulates endpoint records from observed exchanges. All
// mutation happens under one mutex; nothing here touches network or disk.
type Registry struct {
	mu      sync.Mutex
	records map[string]*Record
	order   []string

	schemes *security.Registry
}

// NewRegistry creates a registry that registers detected schemes with the
// given security registry.
func NewRegistry(schemes *security.Registry) *Registry {
	return &Registry{
		records: make(map[string]*Record),
		schemes: schemes,
	}
}

// Record folds one observed exchange into the registry and reports whether
// the templated endpoint was seen for the first time. The only error it can
// return is the unsupported-security-kind integration error; data-shape
// problems degrade the affected slot instead.
func (r *Registry) Record(ex *exchange.Exchange) (created bool, err error) {
	templated := pathtmpl.Template(ex.Path)

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[keyFor(ex.Method, templated)]
	if !ok {
		rec = newRecord(strings.ToUpper(ex.Method), templated)
		r.records[rec.Key()] = rec
		r.order = append(r.order, rec.Key())
		created = true
	}

	if err := r.applySecurity(rec, ex); err != nil {
		return created, err
	}
	r.upsertParameters(rec, ex, templated)
	r.recordRequestBody(rec, ex)
	r.recordResponse(rec, ex)

	return created, nil
}

func keyFor(method, templatedPath string) string {
	return strings.ToUpper(method) + " " + templatedPath
}

func (r *Registry) applySecurity(rec *Record, ex *exchange.Exchange) error {
	hints := security.Detect(ex.RequestHeaders, ex.Query)
	hints = append(hints, ex.SecurityHints...)

	for _, h := range hints {
		name, err := r.schemes.Register(h)
		if err != nil {
			return err
		}
		rec.addSecurity(name)
	}
	return nil
}

// upsertParameters records path, query and header parameters. The first
// observation of a (name, location) pair wins; later duplicates are no-ops.
func (r *Registry) upsertParameters(rec *Record, ex *exchange.Exchange, templated string) {
	for name, example := range pathParamExamples(ex.Path, templated) {
		r.addParameter(rec, Parameter{
			Name:     name,
			In:       "path",
			Required: true,
			Schema:   &schema.Node{Kind: schema.String},
			Example:  example,
		})
	}

	queryNames := make([]string, 0, len(ex.Query))
	for name := range ex.Query {
		queryNames = append(queryNames, name)
	}
	sort.Strings(queryNames)
	for _, name := range queryNames {
		r.addParameter(rec, Parameter{
			Name:    name,
			In:      "query",
			Schema:  &schema.Node{Kind: schema.String},
			Example: ex.Query.Get(name),
		})
	}

	headerNames := make([]string, 0, len(ex.RequestHeaders))
	for name := range ex.RequestHeaders {
		headerNames = append(headerNames, name)
	}
	sort.Strings(headerNames)
	for _, name := range headerNames {
		if !documentableHeader(name) {
			continue
		}
		r.addParameter(rec, Parameter{
			Name:    strings.ToLower(name),
			In:      "header",
			Schema:  &schema.Node{Kind: schema.String},
			Example: ex.RequestHeaders.Get(name),
		})
	}
}

func (r *Registry) addParameter(rec *Record, p Parameter) {
	if rec.hasParameter(p.Name, p.In) {
		return
	}
	rec.Parameters = append(rec.Parameters, p)
}

// recordRequestBody stores the synthesized request schema for non-read-only
// methods. The last non-empty body per content type wins; request bodies
// are never deep-merged across calls.
func (r *Registry) recordRequestBody(rec *Record, ex *exchange.Exchange) {
	if ex.ReadOnly() || len(ex.RequestBody) == 0 {
		return
	}

	contentType := ex.RequestContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	rec.RequestBody[contentType] = bodySchema(string(ex.RequestBody), contentType)
}

// recordResponse synthesizes the response schema, appends it to the sample
// history for (status, content type), and re-merges over the entire history
// so the stored schema never depends on observation order.
func (r *Registry) recordResponse(rec *Record, ex *exchange.Exchange) {
	resp, ok := rec.Responses[ex.Status]
	if !ok {
		resp = newResponse()
		rec.Responses[ex.Status] = resp
	}

	for name := range ex.ResponseHeaders {
		resp.Headers[strings.ToLower(name)] = ex.ResponseHeaders.Get(name)
	}

	if len(ex.ResponseBody) == 0 {
		return
	}

	contentType := ex.ResponseContentType
	if contentType == "" {
		contentType = "text/plain"
	}

	text, err := payload.Decode(ex.ResponseBody, ex.ResponseEncoding, ex.ResponseContentType)
	if err != nil {
		// Undecodable payload: degrade this slot, keep the exchange.
		resp.samples[contentType] = append(resp.samples[contentType],
			&schema.Node{Kind: schema.String, Unstructured: true})
	} else {
		resp.samples[contentType] = append(resp.samples[contentType],
			bodySchema(text, contentType))
	}

	resp.Content[contentType] = schema.Merge(resp.samples[contentType])
}

// bodySchema infers a schema for one body. JSON-ish and untyped text goes
// through the lenient parse plus recovery pipeline; form bodies become an
// object of their fields; anything else is tagged as a plain string.
func bodySchema(text, contentType string) *schema.Node {
	switch {
	case strings.Contains(contentType, "json"),
		contentType == "text/plain",
		contentType == "application/octet-stream":
		return repair.SchemaForText(text)
	case contentType == "application/x-www-form-urlencoded":
		return formSchema(text)
	default:
		return &schema.Node{Kind: schema.String}
	}
}

func formSchema(body string) *schema.Node {
	values, err := url.ParseQuery(body)
	if err != nil || len(values) == 0 {
		return &schema.Node{Kind: schema.String, Unstructured: true}
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	props := make([]schema.Prop, 0, len(names))
	for _, name := range names {
		props = append(props, schema.Prop{
			Name:     name,
			Node:     &schema.Node{Kind: schema.String},
			Required: true,
		})
	}
	return &schema.Node{Kind: schema.Object, Props: props}
}

// pathParamExamples pairs each placeholder of the templated path with the
// concrete segment it replaced.
func pathParamExamples(concrete, templated string) map[string]string {
	concreteSegs := strings.Split(concrete, "/")
	templatedSegs := strings.Split(templated, "/")

	examples := make(map[string]string)
	// The templated path always leads with "/"; align from the right in
	// case the concrete path lacked it.
	offset := len(templatedSegs) - len(concreteSegs)
	for i, seg := range templatedSegs {
		if !strings.HasPrefix(seg, "{") || !strings.HasSuffix(seg, "}") || len(seg) < 3 {
			continue
		}
		name := seg[1 : len(seg)-1]
		j := i - offset
		if j >= 0 && j < len(concreteSegs) && concreteSegs[j] != seg {
			examples[name] = strings.TrimPrefix(concreteSegs[j], ":")
		} else {
			examples[name] = ""
		}
	}
	return examples
}

// skipped request headers: transport mechanics and security carriers that
// are documented elsewhere.
var undocumentedHeaders = map[string]struct{}{
	"host": {}, "connection": {}, "content-length": {}, "content-type": {},
	"accept": {}, "accept-encoding": {}, "accept-language": {},
	"user-agent": {}, "referer": {}, "origin": {}, "cookie": {},
	"cache-control": {}, "pragma": {}, "upgrade": {}, "te": {},
	"transfer-encoding": {}, "authorization": {}, "proxy-authorization": {},
	"x-api-key": {}, "api-key": {}, "x-apikey": {}, "x-auth-token": {},
	"x-forwarded-for": {}, "x-forwarded-proto": {}, "x-forwarded-host": {},
	"x-request-id": {}, "if-none-match": {}, "if-modified-since": {},
}

func documentableHeader(name string) bool {
	name = strings.ToLower(name)
	if _, skip := undocumentedHeaders[name]; skip {
		return false
	}
	return !strings.HasPrefix(name, "sec-")
}

// Get returns the record for a method and concrete or templated path.
func (r *Registry) Get(method, path string) (*Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[keyFor(method, pathtmpl.Template(path))]
	return rec, ok
}

// Records returns the accumulated records in first-seen order. Callers must
// treat them as read-only.
func (r *Registry) Records() []*Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Record, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.records[key])
	}
	return out
}

// Len returns the number of distinct endpoints.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Reset drops every accumulated record.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.records = make(map[string]*Record)
	r.order = nil
	r.mu.Unlock()
}

// Restore re-inserts previously persisted records, used when resuming from
// a state store. Existing records with the same key are replaced.
func (r *Registry) Restore(records []*Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range records {
		if rec == nil {
			continue
		}
		if _, ok := r.records[rec.Key()]; !ok {
			r.order = append(r.order, rec.Key())
		}
		if rec.RequestBody == nil {
			rec.RequestBody = make(map[string]*schema.Node)
		}
		if rec.Responses == nil {
			rec.Responses = make(map[int]*Response)
		}
		for _, resp := range rec.Responses {
			if resp.samples == nil {
				resp.samples = make(map[string][]*schema.Node)
				// Seed the history with the merged schema so later
				// observations keep merging from what was persisted.
				for ct, node := range resp.Content {
					resp.samples[ct] = []*schema.Node{node}
				}
			}
		}
		r.records[rec.Key()] = rec
	}
}
