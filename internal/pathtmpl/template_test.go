package pathtmpl

import (
	"reflect"
	"testing"
)

func TestTemplate(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"plain path untouched", "/users", "/users"},
		{"numeric segment", "/users/123", "/users/{id}"},
		{"single occurrence already templates", "/orders/7", "/orders/{id}"},
		{"two numeric segments", "/users/1/posts/2", "/users/{id}/posts/{id2}"},
		{"marked parameter", "/users/:name/avatar", "/users/{name}/avatar"},
		{"mixed markers", "/v2/:tenant/items/42", "/v2/{tenant}/items/{id}"},
		{"non-numeric id kept", "/users/abc123", "/users/abc123"},
		{"root", "/", "/"},
		{"empty", "", "/"},
		{"missing leading slash", "users/5", "/users/{id}"},
		{"trailing slash kept", "/users/5/", "/users/{id}/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Template(tt.path); got != tt.want {
				t.Errorf("Template(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestTemplate_Idempotent(t *testing.T) {
	paths := []string{
		"/users/123",
		"/users/1/posts/2",
		"/users/:name",
		"/already/{id}/templated",
	}

	for _, p := range paths {
		once := Template(p)
		if twice := Template(once); twice != once {
			t.Errorf("Template(Template(%q)) = %q, want %q", p, twice, once)
		}
	}
}

func TestTemplate_StableAcrossCalls(t *testing.T) {
	if Template("/users/123") != Template("/users/456") {
		t.Error("paths differing only in a numeric segment must share a template")
	}
}

func TestParamNames(t *testing.T) {
	got := ParamNames("/users/{id}/posts/{id2}/raw")
	want := []string{"id", "id2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParamNames = %v, want %v", got, want)
	}

	if names := ParamNames("/users"); names != nil {
		t.Errorf("ParamNames on plain path = %v, want nil", names)
	}
}
