package security

import (
	"net/http"
	"net/url"
	"testing"

	scriberrors "github.com/PentesterFlow/OpenScribe/internal/errors"
)

// =============================================================================
// Registry Tests
// =============================================================================

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	name, err := r.Register(Hint{Kind: KindAPIKey, Name: "x-api-key", In: "header"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if name != "apiKey" {
		t.Errorf("canonical name = %q, want apiKey", name)
	}

	scheme := r.Schemes()["apiKey"]
	if scheme.Type != "apiKey" || scheme.Name != "x-api-key" || scheme.In != "header" {
		t.Errorf("scheme = %+v", scheme)
	}
}

func TestRegistry_SameKindCollapses(t *testing.T) {
	r := NewRegistry()

	first, _ := r.Register(Hint{Kind: KindAPIKey, Name: "x-api-key", In: "header"})
	second, _ := r.Register(Hint{Kind: KindAPIKey, Name: "api_key", In: "query"})

	if first != second {
		t.Errorf("names differ: %q vs %q", first, second)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}

	// Last write wins: the stored definition reflects the second hint.
	scheme := r.Schemes()["apiKey"]
	if scheme.Name != "api_key" || scheme.In != "query" {
		t.Errorf("scheme = %+v, want the later registration", scheme)
	}
}

func TestRegistry_UnsupportedKind(t *testing.T) {
	r := NewRegistry()

	_, err := r.Register(Hint{Kind: Kind("saml")})
	if err == nil {
		t.Fatal("unsupported kind must error")
	}
	if !scriberrors.IsUnsupportedSecurityKind(err) {
		t.Errorf("error = %v, want unsupported security kind", err)
	}
	if r.Len() != 0 {
		t.Error("failed registration must not store anything")
	}
}

func TestRegistry_AllKinds(t *testing.T) {
	tests := []struct {
		hint Hint
		name string
		typ  string
	}{
		{Hint{Kind: KindAPIKey, Name: "x-api-key", In: "header"}, "apiKey", "apiKey"},
		{Hint{Kind: KindHTTP, Scheme: "bearer", BearerFormat: "JWT"}, "httpAuth", "http"},
		{Hint{Kind: KindOAuth2}, "oauth2", "oauth2"},
		{Hint{Kind: KindOpenIDConnect, OpenIDConnectURL: "https://idp/.well-known/openid-configuration"}, "openIdConnect", "openIdConnect"},
	}

	r := NewRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, err := r.Register(tt.hint)
			if err != nil {
				t.Fatalf("Register: %v", err)
			}
			if name != tt.name {
				t.Errorf("name = %q, want %q", name, tt.name)
			}
			if got := r.Schemes()[name].Type; got != tt.typ {
				t.Errorf("type = %q, want %q", got, tt.typ)
			}
		})
	}
	if r.Len() != 4 {
		t.Errorf("Len = %d, want 4", r.Len())
	}
}

func TestRegistry_Reset(t *testing.T) {
	r := NewRegistry()
	r.Register(Hint{Kind: KindAPIKey, Name: "x-api-key", In: "header"})

	r.Reset()
	if r.Len() != 0 {
		t.Errorf("Len after reset = %d, want 0", r.Len())
	}
}

// =============================================================================
// Detection Tests
// =============================================================================

func TestDetect(t *testing.T) {
	jwt := "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxIn0.c2ln"

	tests := []struct {
		name    string
		headers http.Header
		query   url.Values
		want    []Hint
	}{
		{
			"nothing",
			http.Header{},
			url.Values{},
			nil,
		},
		{
			"api key header",
			http.Header{"X-Api-Key": {"abc"}},
			url.Values{},
			[]Hint{{Kind: KindAPIKey, Name: "x-api-key", In: "header"}},
		},
		{
			"api key query",
			http.Header{},
			url.Values{"api_key": {"abc"}},
			[]Hint{{Kind: KindAPIKey, Name: "api_key", In: "query"}},
		},
		{
			"bearer jwt",
			http.Header{"Authorization": {"Bearer " + jwt}},
			url.Values{},
			[]Hint{{Kind: KindHTTP, Scheme: "bearer", BearerFormat: "JWT"}},
		},
		{
			"opaque bearer",
			http.Header{"Authorization": {"Bearer opaque$token"}},
			url.Values{},
			[]Hint{{Kind: KindHTTP, Scheme: "bearer"}},
		},
		{
			"basic",
			http.Header{"Authorization": {"Basic dXNlcjpwYXNz"}},
			url.Values{},
			[]Hint{{Kind: KindHTTP, Scheme: "basic"}},
		},
		{
			"bare token",
			http.Header{"Authorization": {"abc123"}},
			url.Values{},
			[]Hint{{Kind: KindAPIKey, Name: "Authorization", In: "header"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.headers, tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("Detect = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("hint[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDetect_MultipleMechanisms(t *testing.T) {
	headers := http.Header{
		"Authorization": {"Bearer tok"},
		"X-Api-Key":     {"abc"},
	}

	got := Detect(headers, url.Values{})
	if len(got) != 2 {
		t.Fatalf("Detect = %+v, want http + api-key", got)
	}
}
