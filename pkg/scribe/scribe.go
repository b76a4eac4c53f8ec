// Package scribe observes HTTP traffic through a forwarding proxy and
// synthesizes an OpenAPI-style description plus a lossless traffic archive
// from what actually went over the wire.
package scribe

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/PentesterFlow/OpenScribe/internal/archive"
	"github.com/PentesterFlow/OpenScribe/internal/endpoint"
	"github.com/PentesterFlow/OpenScribe/internal/errors"
	"github.com/PentesterFlow/OpenScribe/internal/exchange"
	"github.com/PentesterFlow/OpenScribe/internal/htmlform"
	"github.com/PentesterFlow/OpenScribe/internal/logger"
	"github.com/PentesterFlow/OpenScribe/internal/metrics"
	"github.com/PentesterFlow/OpenScribe/internal/openapi"
	"github.com/PentesterFlow/OpenScribe/internal/pathtmpl"
	"github.com/PentesterFlow/OpenScribe/internal/payload"
	"github.com/PentesterFlow/OpenScribe/internal/proxy"
	"github.com/PentesterFlow/OpenScribe/internal/security"
	"github.com/PentesterFlow/OpenScribe/internal/storage"
)

const toolName = "openscribe"
const toolVersion = "1.0.0"

// Scribe is the capture engine coordinator. It owns every registry, feeds
// them from observed exchanges and renders the outputs.
type Scribe struct {
	config    *Config
	logger    *logger.Logger
	logOutput io.Writer
	metrics   *metrics.Collector

	schemes  *security.Registry
	registry *endpoint.Registry
	archive  *archive.Recorder
	novelty  *endpoint.Novelty
	store    storage.Store

	target  *url.URL
	baseURL string
	handler *proxy.Handler
	server  *http.Server
	running atomic.Bool

	// mu serializes capture against document reads and resets.
	mu sync.Mutex
}

// New creates a capture engine with the given options.
func New(opts ...Option) (*Scribe, error) {
	s := &Scribe{
		config: DefaultConfig(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	target, err := url.Parse(s.config.Target)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid target URL %q", s.config.Target)
	}
	s.target = target

	if s.logger == nil {
		level := logger.WarnLevel
		if s.config.Debug {
			level = logger.DebugLevel
		} else if s.config.Verbose {
			level = logger.InfoLevel
		}
		cfg := logger.Config{
			Level:     level,
			Pretty:    true,
			Component: "scribe",
		}
		if s.logOutput != nil {
			cfg.Output = s.logOutput
			cfg.Pretty = false
		}
		s.logger = logger.New(cfg)
	}

	s.metrics = metrics.New()
	s.schemes = security.NewRegistry()
	s.registry = endpoint.NewRegistry(s.schemes)
	s.novelty = endpoint.NewNovelty(10000)
	s.archive = archive.NewRecorder(toolName, toolVersion)
	s.baseURL = strings.TrimRight(target.String(), "/")
	s.archive.SetBaseURL(s.baseURL)

	if s.config.State.Enabled {
		s.openStore()
	}

	return s, nil
}

// openStore attaches persistence. Storage failures never stop capture; the
// engine degrades to in-memory operation.
func (s *Scribe) openStore() {
	store, err := storage.NewBoltStore(s.config.State.FilePath)
	if err != nil {
		s.logger.StorageEvent("open", err)
		s.metrics.RecordError()
		return
	}
	s.store = store
	s.resume()
}

// resume rebuilds state from the store: stored exchanges are replayed
// through the normal capture path, and endpoint snapshots fill in anything
// the replay did not cover.
func (s *Scribe) resume() {
	exchanges, err := s.store.LoadExchanges()
	if err != nil {
		s.logger.StorageEvent("load exchanges", err)
		s.metrics.RecordError()
		return
	}
	for _, ex := range exchanges {
		if err := s.record(ex, false); err != nil {
			s.logger.WithError(err).Warn("Skipped stored exchange during resume")
		}
	}
	if len(exchanges) > 0 {
		s.logger.Infof("Resumed %d stored exchanges", len(exchanges))
		return
	}

	records, err := s.store.LoadEndpoints()
	if err != nil {
		s.logger.StorageEvent("load endpoints", err)
		s.metrics.RecordError()
		return
	}
	if len(records) > 0 {
		s.registry.Restore(records)
		s.logger.Infof("Resumed %d endpoint snapshots", len(records))
	}
}

// RecordExchange folds one observed exchange into the engine. The archive
// always keeps the exchange; the only error that can come back is the
// unsupported-security-kind integration error.
func (s *Scribe) RecordExchange(ex *exchange.Exchange) error {
	return s.record(ex, true)
}

func (s *Scribe) record(ex *exchange.Exchange, persist bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.RecordExchange(ex.Status, len(ex.RequestBody)+len(ex.ResponseBody))
	s.logger.ExchangeEvent(ex.Method, ex.Path, ex.Status, ex.Duration)

	s.archive.Append(ex)
	s.metrics.RecordArchiveEntry()

	if persist && s.store != nil {
		if err := s.store.SaveExchange(ex); err != nil {
			s.logger.StorageEvent("save exchange", err)
			s.metrics.RecordError()
		}
	}

	templated := pathtmpl.Template(ex.Path)
	if s.novelty.FirstSighting(strings.ToUpper(ex.Method) + " " + templated) {
		s.metrics.RecordEndpoint()
		s.logger.DiscoveryEvent(strings.ToUpper(ex.Method), templated)
	}

	if ex.IsJSONResponse() && ex.ResponseEncoding == "" && len(ex.ResponseBody) > 0 {
		var parsed interface{}
		if json.Unmarshal(ex.ResponseBody, &parsed) != nil {
			s.metrics.RecordRecovery()
			s.logger.RecoveryEvent(ex.Method+" "+ex.Path, "repaired")
		}
	}

	_, err := s.registry.Record(ex)
	if err != nil {
		s.metrics.RecordError()
		if errors.IsUnsupportedSecurityKind(err) {
			return err
		}
		s.logger.WithError(err).Warn("Failed to fold exchange into registry")
		return nil
	}
	s.metrics.RecordMerge()

	if s.config.FormDiscovery && ex.IsHTMLResponse() {
		s.discoverForms(ex)
	}

	if persist && s.store != nil {
		if rec, ok := s.registry.Get(ex.Method, ex.Path); ok {
			if err := s.store.UpsertEndpoint(rec); err != nil {
				s.logger.StorageEvent("save endpoint", err)
				s.metrics.RecordError()
			}
		}
	}

	return nil
}

// discoverForms registers endpoints found in HTML forms so they appear in
// the document before any live call reaches them.
func (s *Scribe) discoverForms(ex *exchange.Exchange) {
	text, err := payload.Decode(ex.ResponseBody, ex.ResponseEncoding, ex.ResponseContentType)
	if err != nil {
		return
	}
	forms, err := htmlform.Extract(text, ex.Path, s.target.Host)
	if err != nil {
		return
	}
	for _, f := range forms {
		if s.registry.RecordForm(f) {
			templated := pathtmpl.Template(f.Action)
			if s.novelty.FirstSighting(strings.ToUpper(f.Method) + " " + templated) {
				s.metrics.RecordEndpoint()
				s.logger.DiscoveryEvent(strings.ToUpper(f.Method), templated)
			}
		}
	}
}

// Document assembles the current OpenAPI-style description. Successive
// calls without new traffic render identically.
func (s *Scribe) Document() *openapi.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return openapi.Build(
		s.registry.Records(),
		s.schemes.Schemes(),
		s.baseURL,
		s.config.Title,
		s.config.Version,
	)
}

// SetTargetBaseURL overrides the base URL used for absolute archive URLs and
// the document's server entry. Forwarding is unaffected.
func (s *Scribe) SetTargetBaseURL(baseURL string) error {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base URL %q", baseURL)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseURL = strings.TrimRight(u.String(), "/")
	s.archive.SetBaseURL(s.baseURL)
	return nil
}

// DocumentText renders the document as "json" or "yaml".
func (s *Scribe) DocumentText(format string) ([]byte, error) {
	doc := s.Document()
	switch strings.ToLower(format) {
	case "", "json":
		return doc.JSONText()
	case "yaml", "yml":
		return doc.YAMLText()
	default:
		return nil, fmt.Errorf("unknown document format %q", format)
	}
}

// Archive returns the traffic log. The first read resolves each stored
// body; repeated reads reuse the resolved text.
func (s *Scribe) Archive() *archive.HAR {
	return s.archive.Read()
}

// ArchiveText renders the traffic log as indented JSON.
func (s *Scribe) ArchiveText() ([]byte, error) {
	return s.archive.ReadText()
}

// Metrics returns a snapshot of the engine counters.
func (s *Scribe) Metrics() *metrics.Snapshot {
	return s.metrics.Snapshot()
}

// Endpoints returns the number of distinct templated endpoints seen.
func (s *Scribe) Endpoints() int {
	return s.registry.Len()
}

// Reset discards everything observed so far, including persisted state.
func (s *Scribe) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registry.Reset()
	s.schemes.Reset()
	s.archive.Clear()
	s.novelty.Reset()
	s.metrics.Reset()

	if s.store != nil {
		if err := s.store.Clear(); err != nil {
			s.logger.StorageEvent("clear", err)
			s.metrics.RecordError()
		}
	}
	s.logger.Info("Capture state reset")
}

// Close releases the store. The HTTP server, when started, is stopped
// separately via Stop.
func (s *Scribe) Close() error {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			return errors.NewStorageError("close", s.config.State.FilePath, err)
		}
		s.store = nil
	}
	return nil
}
