// Package exchange defines the observed request/response pair handed from
// the transport to the capture engine.
package exchange

import (
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PentesterFlow/OpenScribe/internal/security"
)

// Exchange is one forwarded request paired with its response. It is built
// by the transport, consumed immediately by the endpoint registry and the
// archive recorder, and not retained.
//
// Response bodies are carried as the raw bytes that came off the wire,
// together with their Content-Encoding, so the archive can defer
// decompression until first read.
type Exchange struct {
	Method string
	Path   string
	Query  url.Values

	RequestHeaders     http.Header
	RequestBody        []byte
	RequestContentType string

	Status              int
	ResponseHeaders     http.Header
	ResponseBody        []byte
	ResponseEncoding    string // Content-Encoding of ResponseBody, "" when identity
	ResponseContentType string

	// Hints supplied by the transport in addition to what passive detection
	// finds on the request itself.
	SecurityHints []security.Hint

	StartedAt time.Time
	Duration  time.Duration
}

// FromRequest snapshots the request half of an exchange.
func FromRequest(r *http.Request, body []byte) *Exchange {
	return &Exchange{
		Method:             r.Method,
		Path:               r.URL.Path,
		Query:              r.URL.Query(),
		RequestHeaders:     r.Header.Clone(),
		RequestBody:        body,
		RequestContentType: mediaType(r.Header.Get("Content-Type")),
		StartedAt:          time.Now(),
	}
}

// FinishResponse fills in the response half.
func (ex *Exchange) FinishResponse(status int, headers http.Header, body []byte) {
	ex.Status = status
	ex.ResponseHeaders = headers.Clone()
	ex.ResponseBody = body
	ex.ResponseEncoding = headers.Get("Content-Encoding")
	ex.ResponseContentType = mediaType(headers.Get("Content-Type"))
	ex.Duration = time.Since(ex.StartedAt)
}

// ReadOnly reports whether the method cannot carry a meaningful request
// body for documentation purposes.
func (ex *Exchange) ReadOnly() bool {
	switch strings.ToUpper(ex.Method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

// IsJSONResponse reports whether the response declares a JSON media type.
func (ex *Exchange) IsJSONResponse() bool {
	return isJSON(ex.ResponseContentType)
}

// IsHTMLResponse reports whether the response declares an HTML media type.
func (ex *Exchange) IsHTMLResponse() bool {
	return ex.ResponseContentType == "text/html" ||
		ex.ResponseContentType == "application/xhtml+xml"
}

func isJSON(mediaType string) bool {
	return mediaType == "application/json" ||
		strings.HasSuffix(mediaType, "+json")
}

// mediaType strips parameters like charset from a Content-Type value.
func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mt
}
