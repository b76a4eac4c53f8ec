package security

import (
	"net/http"
	"net/url"
	"strings"
)

// Header and query parameter names treated as API key carriers.
var (
	apiKeyHeaders = []string{"x-api-key", "api-key", "x-apikey", "x-auth-token"}
	apiKeyParams  = []string{"api_key", "apikey", "api-key"}
)

// Detect inspects request headers and query parameters for authentication
// mechanisms and returns one hint per finding. Detection is passive and
// best-effort: OAuth2 and OpenID Connect cannot be recognized from a single
// request and arrive only as explicit hints from the transport.
func Detect(headers http.Header, query url.Values) []Hint {
	var hints []Hint

	if auth := headers.Get("Authorization"); auth != "" {
		if h, ok := detectAuthorization(auth); ok {
			hints = append(hints, h)
		}
	}

	for _, name := range apiKeyHeaders {
		if headers.Get(name) != "" {
			hints = append(hints, Hint{Kind: KindAPIKey, Name: name, In: "header"})
			break
		}
	}

	for _, name := range apiKeyParams {
		if query.Get(name) != "" {
			hints = append(hints, Hint{Kind: KindAPIKey, Name: name, In: "query"})
			break
		}
	}

	return hints
}

func detectAuthorization(value string) (Hint, bool) {
	scheme, rest, found := strings.Cut(value, " ")
	if !found {
		// A bare token without a scheme prefix is treated as an API key in
		// the Authorization header.
		return Hint{Kind: KindAPIKey, Name: "Authorization", In: "header"}, true
	}

	switch strings.ToLower(scheme) {
	case "bearer":
		h := Hint{Kind: KindHTTP, Scheme: "bearer"}
		if looksLikeJWT(strings.TrimSpace(rest)) {
			h.BearerFormat = "JWT"
		}
		return h, true
	case "basic":
		return Hint{Kind: KindHTTP, Scheme: "basic"}, true
	case "digest":
		return Hint{Kind: KindHTTP, Scheme: "digest"}, true
	default:
		return Hint{Kind: KindHTTP, Scheme: strings.ToLower(scheme)}, true
	}
}

// looksLikeJWT checks for the three dot-separated base64url sections of a
// JSON Web Token.
func looksLikeJWT(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
		for _, r := range part {
			if !isBase64URL(r) {
				return false
			}
		}
	}
	return true
}

func isBase64URL(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_' || r == '=':
		return true
	default:
		return false
	}
}
