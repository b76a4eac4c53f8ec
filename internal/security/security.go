// Package security detects and deduplicates authentication schemes observed
// on captured traffic.
package security

import (
	"sync"

	"github.com/PentesterFlow/OpenScribe/internal/errors"
)

// Kind identifies an authentication mechanism family.
type Kind string

const (
	KindAPIKey        Kind = "api-key"
	KindHTTP          Kind = "http"
	KindOAuth2        Kind = "oauth2"
	KindOpenIDConnect Kind = "openid-connect"
)

// CanonicalName derives the scheme's component key from the kind alone, so
// repeated detections of the same kind collapse to one entry regardless of
// instance data. The second return is false for unsupported kinds.
func (k Kind) CanonicalName() (string, bool) {
	switch k {
	case KindAPIKey:
		return "apiKey", true
	case KindHTTP:
		return "httpAuth", true
	case KindOAuth2:
		return "oauth2", true
	case KindOpenIDConnect:
		return "openIdConnect", true
	default:
		return "", false
	}
}

// Hint is one detected or externally supplied authentication observation.
type Hint struct {
	Kind             Kind
	Name             string // api-key: parameter name as observed
	In               string // api-key: "header" or "query"
	Scheme           string // http: "bearer", "basic", ...
	BearerFormat     string // http bearer: token format when recognizable
	OpenIDConnectURL string // openid-connect discovery URL
}

// Scheme is the stored definition rendered into the document's
// components.securitySchemes section.
type Scheme struct {
	Type             string `json:"type" yaml:"type"`
	Name             string `json:"name,omitempty" yaml:"name,omitempty"`
	In               string `json:"in,omitempty" yaml:"in,omitempty"`
	Scheme           string `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	BearerFormat     string `json:"bearerFormat,omitempty" yaml:"bearerFormat,omitempty"`
	OpenIDConnectURL string `json:"openIdConnectUrl,omitempty" yaml:"openIdConnectUrl,omitempty"`
}

// Registry holds one scheme definition per kind. Re-registering a kind with
// different parameters overwrites the stored definition; last write wins.
type Registry struct {
	mu      sync.Mutex
	schemes map[string]Scheme
}

// NewRegistry creates an empty scheme registry.
func NewRegistry() *Registry {
	return &Registry{schemes: make(map[string]Scheme)}
}

// Register stores the scheme for a hint and returns its canonical name.
// Unsupported kinds raise a security integration error.
func (r *Registry) Register(h Hint) (string, error) {
	name, ok := h.Kind.CanonicalName()
	if !ok {
		return "", errors.NewUnsupportedSecurityKind(string(h.Kind))
	}

	scheme := Scheme{}
	switch h.Kind {
	case KindAPIKey:
		scheme.Type = "apiKey"
		scheme.Name = h.Name
		scheme.In = h.In
	case KindHTTP:
		scheme.Type = "http"
		scheme.Scheme = h.Scheme
		scheme.BearerFormat = h.BearerFormat
	case KindOAuth2:
		scheme.Type = "oauth2"
	case KindOpenIDConnect:
		scheme.Type = "openIdConnect"
		scheme.OpenIDConnectURL = h.OpenIDConnectURL
	}

	r.mu.Lock()
	r.schemes[name] = scheme
	r.mu.Unlock()

	return name, nil
}

// Schemes returns a copy of the registered definitions keyed by canonical
// name.
func (r *Registry) Schemes() map[string]Scheme {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Scheme, len(r.schemes))
	for name, scheme := range r.schemes {
		out[name] = scheme
	}
	return out
}

// Len returns the number of registered schemes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.schemes)
}

// Reset removes all registered schemes.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.schemes = make(map[string]Scheme)
	r.mu.Unlock()
}
