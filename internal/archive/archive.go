// Package archive keeps a lossless record of every captured exchange and
// renders it as an HTTP Archive document. Response bodies are stored in
// their original encoded form and decoded lazily, at most once, when the
// archive is first read.
package archive

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PentesterFlow/OpenScribe/internal/exchange"
	"github.com/PentesterFlow/OpenScribe/internal/payload"
	"github.com/PentesterFlow/OpenScribe/internal/repair"
)

const harVersion = "1.2"

// Recorder accumulates exchanges and renders them as a HAR document.
type Recorder struct {
	mu      sync.Mutex
	entries []*record
	baseURL string
	creator Creator

	decodes int64
}

// record is one stored exchange. The response body stays encoded until the
// first read resolves it.
type record struct {
	startedAt      time.Time
	duration       time.Duration
	method         string
	path           string
	query          url.Values
	reqHeaders     http.Header
	reqBody        []byte
	reqContentType string
	status         int
	respHeaders    http.Header

	once        sync.Once
	rawBody     []byte
	encoding    string
	contentType string
	text        string
}

// NewRecorder returns an empty recorder. The creator block identifies the
// tool in exported documents.
func NewRecorder(name, version string) *Recorder {
	return &Recorder{creator: Creator{Name: name, Version: version}}
}

// SetBaseURL sets the origin used to build absolute request URLs.
func (r *Recorder) SetBaseURL(base string) {
	r.mu.Lock()
	r.baseURL = strings.TrimRight(base, "/")
	r.mu.Unlock()
}

// Append stores an exchange. The raw response body is retained as captured,
// including any content encoding.
func (r *Recorder) Append(ex *exchange.Exchange) {
	rec := &record{
		startedAt:      ex.StartedAt,
		duration:       ex.Duration,
		method:         ex.Method,
		path:           ex.Path,
		query:          cloneValues(ex.Query),
		reqHeaders:     cloneHeader(ex.RequestHeaders),
		reqBody:        append([]byte(nil), ex.RequestBody...),
		reqContentType: ex.RequestContentType,
		status:         ex.Status,
		respHeaders:    cloneHeader(ex.ResponseHeaders),
		rawBody:        append([]byte(nil), ex.ResponseBody...),
		encoding:       ex.ResponseEncoding,
		contentType:    ex.ResponseContentType,
	}

	r.mu.Lock()
	r.entries = append(r.entries, rec)
	r.mu.Unlock()
}

// Len reports the number of stored exchanges.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Clear discards all stored exchanges.
func (r *Recorder) Clear() {
	r.mu.Lock()
	r.entries = nil
	r.mu.Unlock()
}

// Read renders the archive. Each entry's response body is decoded on the
// first call that reaches it; later reads reuse the resolved text.
func (r *Recorder) Read() *HAR {
	r.mu.Lock()
	recs := make([]*record, len(r.entries))
	copy(recs, r.entries)
	base := r.baseURL
	creator := r.creator
	r.mu.Unlock()

	har := &HAR{Log: Log{
		Version: harVersion,
		Creator: creator,
		Entries: make([]Entry, 0, len(recs)),
	}}
	for _, rec := range recs {
		har.Log.Entries = append(har.Log.Entries, r.render(rec, base))
	}
	return har
}

// ReadText renders the archive as indented JSON.
func (r *Recorder) ReadText() ([]byte, error) {
	return json.MarshalIndent(r.Read(), "", "  ")
}

func (r *Recorder) render(rec *record, base string) Entry {
	rec.once.Do(func() {
		rec.text = resolveBody(rec.rawBody, rec.encoding, rec.contentType)
		atomic.AddInt64(&r.decodes, 1)
	})

	req := Request{
		Method:      rec.method,
		URL:         buildURL(base, rec.path, rec.query),
		HTTPVersion: "HTTP/1.1",
		Headers:     headerPairs(rec.reqHeaders),
		QueryString: queryPairs(rec.query),
	}
	if len(rec.reqBody) > 0 {
		req.PostData = &PostData{
			MimeType: rec.reqContentType,
			Text:     string(rec.reqBody),
		}
	}

	return Entry{
		StartedDateTime: rec.startedAt.UTC().Format(time.RFC3339Nano),
		Time:            float64(rec.duration) / float64(time.Millisecond),
		Request:         req,
		Response: Response{
			Status:      rec.status,
			StatusText:  http.StatusText(rec.status),
			HTTPVersion: "HTTP/1.1",
			Headers:     headerPairs(rec.respHeaders),
			Content: Content{
				Size:     len(rec.text),
				MimeType: rec.contentType,
				Text:     rec.text,
			},
		},
	}
}

// resolveBody decodes an encoded body and normalizes JSON payloads. Bodies
// the repair pass can fix are stored repaired; anything else is kept as the
// decoded text so the archive stays lossless.
func resolveBody(raw []byte, encoding, contentType string) string {
	text, err := payload.Decode(raw, encoding, contentType)
	if err != nil {
		return string(raw)
	}
	if !jsonLike(contentType) {
		return text
	}
	var v interface{}
	if json.Unmarshal([]byte(text), &v) == nil {
		return text
	}
	if repaired, ok := repair.RepairText(text); ok {
		return repaired
	}
	return text
}

func jsonLike(contentType string) bool {
	ct := strings.ToLower(contentType)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.TrimSpace(ct)
	return ct == "application/json" || strings.HasSuffix(ct, "+json")
}

func buildURL(base, path string, query url.Values) string {
	u := base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func headerPairs(h http.Header) []NameValue {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]NameValue, 0, len(names))
	for _, name := range names {
		for _, value := range h[name] {
			pairs = append(pairs, NameValue{Name: name, Value: value})
		}
	}
	return pairs
}

func queryPairs(q url.Values) []NameValue {
	names := make([]string, 0, len(q))
	for name := range q {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]NameValue, 0, len(names))
	for _, name := range names {
		for _, value := range q[name] {
			pairs = append(pairs, NameValue{Name: name, Value: value})
		}
	}
	return pairs
}

func cloneHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for name, values := range h {
		out[name] = append([]string(nil), values...)
	}
	return out
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for name, values := range v {
		out[name] = append([]string(nil), values...)
	}
	return out
}

// decodeCount reports how many stored bodies have been resolved.
func (r *Recorder) decodeCount() int64 {
	return atomic.LoadInt64(&r.decodes)
}
