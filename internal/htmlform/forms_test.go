package htmlform

import (
	"testing"
)

const loginPage = `<!DOCTYPE html>
<html><body>
<form action="/login" method="post">
  <input type="text" name="username" required>
  <input type="password" name="password" required>
  <input type="checkbox" name="remember">
  <input type="submit" value="Sign in">
</form>
<form method="get" action="/search">
  <input type="search" name="q">
  <select name="sort"><option>asc</option></select>
</form>
<form action="https://other.example.com/track"><input name="x"></form>
<form action="https://app.example.com/subscribe" method="post"><input name="email"></form>
<form><textarea name="comment"></textarea></form>
</body></html>`

func TestExtract(t *testing.T) {
	forms, err := Extract(loginPage, "/account", "app.example.com")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	// The cross-origin form is dropped; the same-host absolute action is
	// kept as a path; the action-less form falls back to the page path.
	if len(forms) != 4 {
		t.Fatalf("len(forms) = %d, want 4: %+v", len(forms), forms)
	}

	login := forms[0]
	if login.Action != "/login" || login.Method != "POST" {
		t.Errorf("login form = %+v", login)
	}
	if len(login.Inputs) != 3 {
		t.Fatalf("login inputs = %+v, submit button must be excluded", login.Inputs)
	}
	if !login.Inputs[0].Required || login.Inputs[0].Name != "username" {
		t.Errorf("username = %+v", login.Inputs[0])
	}
	if login.Inputs[2].Required {
		t.Error("remember is not required")
	}

	search := forms[1]
	if search.Method != "GET" || len(search.Inputs) != 2 {
		t.Errorf("search form = %+v", search)
	}
	if search.Inputs[1].Type != "select" {
		t.Errorf("sort type = %q, want select", search.Inputs[1].Type)
	}

	subscribe := forms[2]
	if subscribe.Action != "/subscribe" || subscribe.Method != "POST" {
		t.Errorf("subscribe form = %+v", subscribe)
	}

	fallback := forms[3]
	if fallback.Action != "/account" || fallback.Inputs[0].Type != "textarea" {
		t.Errorf("fallback form = %+v", fallback)
	}
}

func TestResolveAction(t *testing.T) {
	const host = "api.example.com"

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"/users", "/users", true},
		{"/users?x=1", "/users", true},
		{"/users#top", "/users", true},
		{"https://api.example.com/v1/users", "/v1/users", true},
		{"https://api.example.com", "/", true},
		{"https://API.EXAMPLE.COM/v1", "/v1", true},
		{"//api.example.com/v1/users", "/v1/users", true},
		{"https://other.example.com/track", "", false},
		{"//other.example.com/track", "", false},
		{"relative", "relative", true},
	}

	for _, tt := range tests {
		got, ok := resolveAction(tt.in, host)
		if got != tt.want || ok != tt.ok {
			t.Errorf("resolveAction(%q) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
