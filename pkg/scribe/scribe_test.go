package scribe

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PentesterFlow/OpenScribe/internal/schema"
)

// apiBackend is a small origin with enough variety to exercise templating,
// merging, security detection and recovery.
func apiBackend() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/users/")
		w.Header().Set("Content-Type", "application/json")
		if id == "2" {
			w.Write([]byte(`{"id":2,"name":"Grace","email":"g@example.com"}`))
			return
		}
		w.Write([]byte(`{"id":1,"name":"Ada"}`))
	})
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":3}`))
			return
		}
		w.Write([]byte(`[{"id":1,"name":"Ada"}]`))
	})
	mux.HandleFunc("/private", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"secret":true}`))
	})
	mux.HandleFunc("/legacy", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{status: 'ok', count: 3,}`))
	})
	mux.HandleFunc("/compressed", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		zw.Write([]byte(`{"large":true}`))
		zw.Close()
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body>
			<form action="/feedback" method="post">
				<input type="text" name="message" required>
				<input type="number" name="rating">
			</form>
			<form action="https://tracker.example.com/collect" method="post">
				<input type="hidden" name="beacon">
			</form>
		</body></html>`))
	})
	return httptest.NewServer(mux)
}

func newEngine(t *testing.T, backendURL string, extra ...Option) (*Scribe, *httptest.Server) {
	t.Helper()
	opts := append([]Option{
		WithTarget(backendURL),
		WithSyncRecording(),
	}, extra...)
	s, err := New(opts...)
	if err != nil {
		t.Fatalf("new scribe: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	handler, err := s.Handler()
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return s, srv
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	return resp
}

func fetchJSON(t *testing.T, url string, v interface{}) {
	t.Helper()
	resp := get(t, url)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

// ============================================================================
// Document synthesis through the proxy
// ============================================================================

func TestScribe_SynthesizesTemplatedDocument(t *testing.T) {
	backend := apiBackend()
	defer backend.Close()
	_, srv := newEngine(t, backend.URL)

	get(t, srv.URL+"/users/1").Body.Close()
	get(t, srv.URL+"/users/2").Body.Close()

	var doc map[string]interface{}
	fetchJSON(t, srv.URL+"/__scribe/openapi.json", &doc)

	if doc["openapi"] != "3.0.3" {
		t.Errorf("openapi = %v", doc["openapi"])
	}
	paths, _ := doc["paths"].(map[string]interface{})
	if _, ok := paths["/users/{id}"]; !ok {
		t.Fatalf("paths = %v, want /users/{id}", paths)
	}
	if len(paths) != 1 {
		t.Errorf("paths = %d entries, want 1 (numeric ids must collapse)", len(paths))
	}

	item := paths["/users/{id}"].(map[string]interface{})
	op := item["get"].(map[string]interface{})
	responses := op["responses"].(map[string]interface{})
	resp200 := responses["200"].(map[string]interface{})
	content := resp200["content"].(map[string]interface{})
	media := content["application/json"].(map[string]interface{})
	schema := media["schema"].(map[string]interface{})
	if schema["type"] != "object" {
		t.Errorf("schema type = %v", schema["type"])
	}

	// email appeared in only one sample so it must not be required.
	required, _ := schema["required"].([]interface{})
	for _, name := range required {
		if name == "email" {
			t.Errorf("email must be optional, required = %v", required)
		}
	}
}

func TestScribe_RequestBodyLastNonEmptyWins(t *testing.T) {
	backend := apiBackend()
	defer backend.Close()
	s, srv := newEngine(t, backend.URL)

	resp, err := http.Post(srv.URL+"/users", "application/json",
		strings.NewReader(`{"name":"Ada"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Post(srv.URL+"/users", "application/json",
		strings.NewReader(`{"name":"Grace","age":36}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	doc := s.Document()
	op := doc.Paths["/users"]["post"]
	if op == nil || op.RequestBody == nil {
		t.Fatalf("missing post operation or request body")
	}
	node := op.RequestBody.Content["application/json"].Schema
	kinds := make(map[string]schema.Kind, len(node.Props))
	for _, p := range node.Props {
		kinds[p.Name] = p.Node.Kind
	}
	// The second, wider body replaced the first; no deep merge.
	if len(kinds) != 2 || kinds["name"] != schema.String || kinds["age"] != schema.Integer {
		t.Errorf("request body props = %+v, want name:string and age:integer", node.Props)
	}
}

func TestScribe_SecuritySchemeDeduplicated(t *testing.T) {
	backend := apiBackend()
	defer backend.Close()
	_, srv := newEngine(t, backend.URL)

	client := &http.Client{}
	for _, token := range []string{"aaa.bbb.ccc", "ddd.eee.fff"} {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/private", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		resp.Body.Close()
	}

	var doc map[string]interface{}
	fetchJSON(t, srv.URL+"/__scribe/openapi.json", &doc)

	components := doc["components"].(map[string]interface{})
	schemes := components["securitySchemes"].(map[string]interface{})
	if len(schemes) != 1 {
		t.Fatalf("schemes = %v, want one httpAuth entry", schemes)
	}
	auth := schemes["httpAuth"].(map[string]interface{})
	if auth["type"] != "http" || auth["scheme"] != "bearer" {
		t.Errorf("scheme = %v", auth)
	}
}

func TestScribe_RecoversMalformedJSON(t *testing.T) {
	backend := apiBackend()
	defer backend.Close()
	s, srv := newEngine(t, backend.URL)

	get(t, srv.URL+"/legacy").Body.Close()

	doc := s.Document()
	op := doc.Paths["/legacy"]["get"]
	if op == nil {
		t.Fatalf("missing /legacy")
	}
	node := op.Responses["200"].Content["application/json"].Schema
	if node == nil {
		t.Fatalf("missing recovered schema")
	}
	byName := map[string]bool{}
	for _, p := range node.Props {
		byName[p.Name] = true
	}
	if !byName["status"] || !byName["count"] {
		t.Errorf("recovered props = %+v, want status and count", node.Props)
	}
}

// ============================================================================
// Archive
// ============================================================================

func TestScribe_ArchiveKeepsEveryExchange(t *testing.T) {
	backend := apiBackend()
	defer backend.Close()
	s, srv := newEngine(t, backend.URL)

	get(t, srv.URL+"/users/1").Body.Close()
	get(t, srv.URL+"/compressed").Body.Close()

	har := s.Archive()
	if len(har.Log.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(har.Log.Entries))
	}

	// The gzip body must come back decoded, and identically on a re-read.
	second := s.Archive()
	for i := range har.Log.Entries {
		if har.Log.Entries[i].Response.Content.Text != second.Log.Entries[i].Response.Content.Text {
			t.Errorf("entry %d changed between reads", i)
		}
	}
	if got := har.Log.Entries[1].Response.Content.Text; got != `{"large":true}` {
		t.Errorf("decoded content = %q", got)
	}

	var harDoc map[string]interface{}
	fetchJSON(t, srv.URL+"/__scribe/archive.har", &harDoc)
	log := harDoc["log"].(map[string]interface{})
	if log["version"] != "1.2" {
		t.Errorf("har version = %v", log["version"])
	}
}

// ============================================================================
// Form discovery
// ============================================================================

func TestScribe_DiscoversEndpointsFromForms(t *testing.T) {
	backend := apiBackend()
	defer backend.Close()
	s, srv := newEngine(t, backend.URL)

	get(t, srv.URL+"/page").Body.Close()

	doc := s.Document()
	item, ok := doc.Paths["/feedback"]
	if !ok {
		t.Fatalf("form endpoint not discovered, paths = %v", doc.Paths)
	}
	op := item["post"]
	if op == nil || op.RequestBody == nil {
		t.Fatalf("missing post operation from form")
	}
	node := op.RequestBody.Content["application/x-www-form-urlencoded"].Schema
	if node == nil {
		t.Fatalf("missing form body schema")
	}
	byName := map[string]bool{}
	for _, p := range node.Props {
		byName[p.Name] = true
	}
	if !byName["message"] || !byName["rating"] {
		t.Errorf("form props = %+v", node.Props)
	}

	// The form posting to another host must not become a local endpoint.
	if _, ok := doc.Paths["/collect"]; ok {
		t.Errorf("cross-origin form registered, paths = %v", doc.Paths)
	}
}

// ============================================================================
// Reset and metrics
// ============================================================================

func TestScribe_ResetClearsEverything(t *testing.T) {
	backend := apiBackend()
	defer backend.Close()
	s, srv := newEngine(t, backend.URL)

	get(t, srv.URL+"/users/1").Body.Close()
	if s.Endpoints() == 0 {
		t.Fatalf("no endpoints before reset")
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/__scribe/reset", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("reset status = %d", resp.StatusCode)
	}

	if s.Endpoints() != 0 {
		t.Errorf("endpoints after reset = %d", s.Endpoints())
	}
	if got := len(s.Archive().Log.Entries); got != 0 {
		t.Errorf("archive entries after reset = %d", got)
	}
	if s.Metrics().Exchanges != 0 {
		t.Errorf("metrics not reset")
	}

	// Capture keeps working after a reset.
	get(t, srv.URL+"/users/1").Body.Close()
	if s.Endpoints() != 1 {
		t.Errorf("endpoints after new traffic = %d", s.Endpoints())
	}
}

func TestScribe_MetricsEndpoint(t *testing.T) {
	backend := apiBackend()
	defer backend.Close()
	_, srv := newEngine(t, backend.URL)

	get(t, srv.URL+"/users/1").Body.Close()
	get(t, srv.URL+"/users/2").Body.Close()

	var snap map[string]interface{}
	fetchJSON(t, srv.URL+"/__scribe/metrics", &snap)
	if snap["exchanges"].(float64) != 2 {
		t.Errorf("exchanges = %v", snap["exchanges"])
	}
	if snap["endpoints"].(float64) != 1 {
		t.Errorf("endpoints = %v", snap["endpoints"])
	}
}

// ============================================================================
// Persistence
// ============================================================================

func TestScribe_ResumesFromStateFile(t *testing.T) {
	backend := apiBackend()
	defer backend.Close()

	statePath := filepath.Join(t.TempDir(), "scribe.db")

	s, srv := newEngine(t, backend.URL, WithStateFile(statePath))
	get(t, srv.URL+"/users/1").Body.Close()
	get(t, srv.URL+"/users/2").Body.Close()
	srv.Close()
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	resumed, err := New(
		WithTarget(backend.URL),
		WithSyncRecording(),
		WithStateFile(statePath),
	)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer resumed.Close()

	if resumed.Endpoints() != 1 {
		t.Fatalf("resumed endpoints = %d, want 1", resumed.Endpoints())
	}
	if got := len(resumed.Archive().Log.Entries); got != 2 {
		t.Errorf("resumed archive entries = %d, want 2", got)
	}

	doc := resumed.Document()
	if _, ok := doc.Paths["/users/{id}"]; !ok {
		t.Errorf("resumed paths = %v", doc.Paths)
	}
}

// ============================================================================
// Configuration
// ============================================================================

func TestNew_ValidatesConfig(t *testing.T) {
	if _, err := New(); err == nil {
		t.Errorf("expected error without a target")
	}
	if _, err := New(WithTarget("not a url")); err == nil {
		t.Errorf("expected error for malformed target")
	}
}

func TestScribe_SetTargetBaseURL(t *testing.T) {
	backend := apiBackend()
	defer backend.Close()
	s, srv := newEngine(t, backend.URL)

	get(t, srv.URL+"/users/1").Body.Close()

	if err := s.SetTargetBaseURL("https://api.example.com/"); err != nil {
		t.Fatalf("set base url: %v", err)
	}
	if err := s.SetTargetBaseURL("not a url"); err == nil {
		t.Errorf("expected error for malformed base url")
	}

	doc := s.Document()
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "https://api.example.com" {
		t.Errorf("servers = %+v", doc.Servers)
	}
	har := s.Archive()
	if len(har.Log.Entries) != 1 {
		t.Fatalf("entries = %d", len(har.Log.Entries))
	}
	if got := har.Log.Entries[0].Request.URL; !strings.HasPrefix(got, "https://api.example.com/") {
		t.Errorf("archive URL = %q", got)
	}
}

func TestConfig_LoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Target = "https://api.example.com"
	cfg.Title = "Example"
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Target != "https://api.example.com" || loaded.Title != "Example" {
		t.Errorf("loaded = %+v", loaded)
	}
	if err := loaded.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}
