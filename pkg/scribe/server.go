package scribe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/PentesterFlow/OpenScribe/internal/exchange"
	"github.com/PentesterFlow/OpenScribe/internal/proxy"
)

// controlPrefix reserves a path namespace on the proxy for the engine's own
// endpoints. Requests under it are never forwarded.
const controlPrefix = "/__scribe/"

// Handler builds the full HTTP surface: control endpoints under /__scribe/
// and the capturing forwarder for everything else.
func (s *Scribe) Handler() (http.Handler, error) {
	forwarder, err := s.forwarder()
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc(controlPrefix+"openapi.json", s.handleDocument("json"))
	mux.HandleFunc(controlPrefix+"openapi.yaml", s.handleDocument("yaml"))
	mux.HandleFunc(controlPrefix+"archive.har", s.handleArchive)
	mux.HandleFunc(controlPrefix+"metrics", s.handleMetrics)
	mux.HandleFunc(controlPrefix+"reset", s.handleReset)
	mux.Handle("/", forwarder)
	return mux, nil
}

func (s *Scribe) forwarder() (*proxy.Handler, error) {
	if s.handler != nil {
		return s.handler, nil
	}

	cfg := proxy.Config{
		Target:            s.target,
		MaxBodyBytes:      s.config.MaxBodyBytes,
		RequestsPerSecond: s.config.RateLimit.RequestsPerSecond,
		Burst:             s.config.RateLimit.Burst,
		RecordAsync:       s.config.RecordAsync,
		SkipTLSVerify:     s.config.SkipTLSVerify,
		Timeout:           s.config.Timeout,
	}
	h, err := proxy.New(cfg, func(ex *exchange.Exchange) {
		if err := s.RecordExchange(ex); err != nil {
			s.logger.WithError(err).Error("Exchange rejected")
		}
	}, s.logger)
	if err != nil {
		return nil, err
	}
	s.handler = h
	return h, nil
}

// Start begins serving the capturing proxy on the configured listen
// address. It returns once the server is listening.
func (s *Scribe) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("already running")
	}

	handler, err := s.Handler()
	if err != nil {
		s.running.Store(false)
		return err
	}

	s.server = &http.Server{
		Addr:              s.config.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.running.Store(false)
		return fmt.Errorf("listen on %s: %w", s.config.Listen, err)
	case <-time.After(100 * time.Millisecond):
	}

	s.logger.Infof("Capturing proxy listening on %s, forwarding to %s",
		s.config.Listen, s.target)
	return nil
}

// Stop shuts the server down, waits for in-flight captures and closes the
// store.
func (s *Scribe) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	var firstErr error
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			firstErr = err
		}
		s.server = nil
	}
	if s.handler != nil {
		s.handler.Wait()
		s.handler.Close()
	}
	if err := s.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	s.logger.Info("Capturing proxy stopped")
	return firstErr
}

// Running reports whether the server is up.
func (s *Scribe) Running() bool {
	return s.running.Load()
}

func (s *Scribe) handleDocument(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.handler != nil {
			// Fold in everything already forwarded before rendering.
			s.handler.Wait()
		}

		text, err := s.DocumentText(format)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if format == "yaml" {
			w.Header().Set("Content-Type", "application/yaml")
		} else {
			w.Header().Set("Content-Type", "application/json")
		}
		w.Write(text)
	}
}

func (s *Scribe) handleArchive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.handler != nil {
		s.handler.Wait()
	}

	text, err := s.ArchiveText()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(text)
}

func (s *Scribe) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Metrics())
}

func (s *Scribe) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.handler != nil {
		s.handler.Wait()
	}
	s.Reset()
	w.WriteHeader(http.StatusNoContent)
}
