package openapi

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/PentesterFlow/OpenScribe/internal/endpoint"
	"github.com/PentesterFlow/OpenScribe/internal/exchange"
	"github.com/PentesterFlow/OpenScribe/internal/schema"
	"github.com/PentesterFlow/OpenScribe/internal/security"
)

func observe(t *testing.T, reg *endpoint.Registry, method, path, reqBody, respBody string) {
	t.Helper()
	ex := &exchange.Exchange{
		Method:              method,
		Path:                path,
		Query:               url.Values{},
		RequestHeaders:      http.Header{},
		Status:              200,
		ResponseHeaders:     http.Header{"Content-Type": {"application/json"}},
		ResponseBody:        []byte(respBody),
		ResponseContentType: "application/json",
	}
	if reqBody != "" {
		ex.RequestBody = []byte(reqBody)
		ex.RequestContentType = "application/json"
	}
	if _, err := reg.Record(ex); err != nil {
		t.Fatalf("record %s %s: %v", method, path, err)
	}
}

// ============================================================================
// Assembly
// ============================================================================

func TestBuild_CollapsesTemplatedPaths(t *testing.T) {
	schemes := security.NewRegistry()
	reg := endpoint.NewRegistry(schemes)
	observe(t, reg, "GET", "/users/1", "", `{"id":1,"name":"Ada"}`)
	observe(t, reg, "GET", "/users/2", "", `{"id":2,"name":"Grace","email":"g@example.com"}`)

	doc := Build(reg.Records(), schemes.Schemes(), "https://api.example.com", "api", "0.1.0")

	if doc.OpenAPI != "3.0.3" {
		t.Errorf("openapi = %q", doc.OpenAPI)
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "https://api.example.com" {
		t.Errorf("servers = %+v", doc.Servers)
	}
	if len(doc.Paths) != 1 {
		t.Fatalf("paths = %d, want 1: %v", len(doc.Paths), doc.Paths)
	}

	item, ok := doc.Paths["/users/{id}"]
	if !ok {
		t.Fatalf("missing /users/{id} path item")
	}
	op, ok := item["get"]
	if !ok {
		t.Fatalf("missing get operation")
	}

	if len(op.Parameters) != 1 || op.Parameters[0].Name != "id" || op.Parameters[0].In != "path" {
		t.Errorf("parameters = %+v", op.Parameters)
	}
	if !op.Parameters[0].Required {
		t.Errorf("path parameter not required")
	}

	resp, ok := op.Responses["200"]
	if !ok {
		t.Fatalf("missing 200 response")
	}
	node := resp.Content["application/json"].Schema
	if node == nil || node.Kind != schema.Object {
		t.Fatalf("response schema = %+v", node)
	}

	// The merged object keeps id and name required; email was absent in one
	// sample and must be optional.
	byName := map[string]schema.Prop{}
	for _, p := range node.Props {
		byName[p.Name] = p
	}
	if !byName["id"].Required || !byName["name"].Required {
		t.Errorf("id/name should be required: %+v", node.Props)
	}
	if byName["email"].Required {
		t.Errorf("email should be optional")
	}
}

func TestBuild_RequestBodyAndMethods(t *testing.T) {
	schemes := security.NewRegistry()
	reg := endpoint.NewRegistry(schemes)
	observe(t, reg, "POST", "/users", `{"name":"Ada"}`, `{"id":1}`)
	observe(t, reg, "GET", "/users", "", `[{"id":1}]`)

	doc := Build(reg.Records(), schemes.Schemes(), "", "api", "0.1.0")

	item := doc.Paths["/users"]
	if item == nil {
		t.Fatalf("missing /users")
	}
	if item["post"] == nil || item["get"] == nil {
		t.Fatalf("want both get and post, got %v", item)
	}

	post := item["post"]
	if post.RequestBody == nil {
		t.Fatalf("post has no request body")
	}
	body := post.RequestBody.Content["application/json"].Schema
	if body == nil || body.Kind != schema.Object {
		t.Errorf("request body schema = %+v", body)
	}

	get := item["get"]
	if get.RequestBody != nil {
		t.Errorf("get should not carry a request body")
	}
	if doc.Servers != nil {
		t.Errorf("servers should be omitted without a base URL")
	}
}

func TestBuild_SecuritySchemes(t *testing.T) {
	schemes := security.NewRegistry()
	reg := endpoint.NewRegistry(schemes)

	ex := &exchange.Exchange{
		Method:              "GET",
		Path:                "/private",
		Query:               url.Values{},
		RequestHeaders:      http.Header{"Authorization": {"Bearer abc.def.ghi"}},
		Status:              200,
		ResponseHeaders:     http.Header{},
		ResponseBody:        []byte(`{}`),
		ResponseContentType: "application/json",
	}
	if _, err := reg.Record(ex); err != nil {
		t.Fatalf("record: %v", err)
	}

	doc := Build(reg.Records(), schemes.Schemes(), "", "api", "0.1.0")

	if doc.Components == nil {
		t.Fatalf("missing components")
	}
	sc, ok := doc.Components.SecuritySchemes["httpAuth"]
	if !ok {
		t.Fatalf("missing httpAuth scheme: %v", doc.Components.SecuritySchemes)
	}
	if sc.Type != "http" || sc.Scheme != "bearer" {
		t.Errorf("scheme = %+v", sc)
	}

	op := doc.Paths["/private"]["get"]
	if len(op.Security) != 1 {
		t.Fatalf("operation security = %+v", op.Security)
	}
	if _, ok := op.Security[0]["httpAuth"]; !ok {
		t.Errorf("operation security missing httpAuth: %+v", op.Security)
	}
}

// ============================================================================
// Rendering
// ============================================================================

func TestDocument_TextRendersDeterministically(t *testing.T) {
	schemes := security.NewRegistry()
	reg := endpoint.NewRegistry(schemes)
	observe(t, reg, "GET", "/users/5", "", `{"id":5,"name":"Ada"}`)
	observe(t, reg, "POST", "/users", `{"name":"Ada"}`, `{"id":6}`)

	doc := Build(reg.Records(), schemes.Schemes(), "https://api.example.com", "api", "0.1.0")

	first, err := doc.JSONText()
	if err != nil {
		t.Fatalf("json render: %v", err)
	}
	second, err := doc.JSONText()
	if err != nil {
		t.Fatalf("json render: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("json output changed between renders")
	}

	// Property order in rendered schemas follows first observation.
	node := doc.Paths["/users/{id}"]["get"].Responses["200"].Content["application/json"].Schema
	rendered, err := node.MarshalJSON()
	if err != nil {
		t.Fatalf("schema render: %v", err)
	}
	text := string(rendered)
	if strings.Index(text, `"id"`) > strings.Index(text, `"name"`) {
		t.Errorf("property order not preserved:\n%s", text)
	}

	y, err := doc.YAMLText()
	if err != nil {
		t.Fatalf("yaml render: %v", err)
	}
	if !strings.Contains(string(y), "openapi: 3.0.3") {
		t.Errorf("yaml missing version:\n%s", y)
	}
	if !strings.Contains(string(y), "/users/{id}") {
		t.Errorf("yaml missing templated path:\n%s", y)
	}
}
