// Package proxy forwards HTTP traffic to a target origin while handing a
// snapshot of every exchange to the capture engine. Forwarding never blocks
// on capture and never alters what the client sees.
package proxy

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/PentesterFlow/OpenScribe/internal/errors"
	"github.com/PentesterFlow/OpenScribe/internal/exchange"
	"github.com/PentesterFlow/OpenScribe/internal/logger"
)

// Config holds forwarding settings.
type Config struct {
	// Target is the origin all traffic is forwarded to.
	Target *url.URL

	// MaxBodyBytes caps how much of a request or response body is captured.
	MaxBodyBytes int64

	// RequestsPerSecond throttles forwarding when > 0.
	RequestsPerSecond float64
	Burst             int

	// RecordAsync hands exchanges to the engine on a separate goroutine so
	// slow capture never delays the client response.
	RecordAsync bool

	SkipTLSVerify bool
	Timeout       time.Duration
}

// DefaultConfig returns forwarding defaults.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes: 10 * 1024 * 1024,
		Burst:        10,
		RecordAsync:  true,
		Timeout:      30 * time.Second,
	}
}

// Handler is the capturing forwarder. It implements http.Handler.
type Handler struct {
	target    *url.URL
	transport *http.Transport
	limiter   *rate.Limiter
	upgrader  websocket.Upgrader
	dialer    *websocket.Dialer

	onExchange func(*exchange.Exchange)
	log        *logger.Logger

	maxBody int64
	async   bool
	wg      sync.WaitGroup
}

// New creates a forwarder for the configured target. Every completed
// exchange is passed to onExchange.
func New(cfg Config, onExchange func(*exchange.Exchange), log *logger.Logger) (*Handler, error) {
	if cfg.Target == nil {
		return nil, fmt.Errorf("forwarding target is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}

	// DisableCompression keeps response bodies in their wire encoding so
	// the archive can defer decompression until first read.
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		DisableCompression:    true,
		ResponseHeaderTimeout: cfg.Timeout,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.SkipTLSVerify,
		},
	}

	h := &Handler{
		target:    cfg.Target,
		transport: transport,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.SkipTLSVerify,
			},
		},
		onExchange: onExchange,
		log:        log.WithComponent("proxy"),
		maxBody:    cfg.MaxBodyBytes,
		async:      cfg.RecordAsync,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return h, nil
}

// ServeHTTP forwards one request and records the exchange.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil {
		if err := h.limiter.Wait(r.Context()); err != nil {
			http.Error(w, "request cancelled", http.StatusServiceUnavailable)
			return
		}
	}

	if isWebSocketRequest(r) {
		h.serveWebSocket(w, r)
		return
	}

	reqBody, err := io.ReadAll(io.LimitReader(r.Body, h.maxBody))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	r.Body.Close()

	ex := exchange.FromRequest(r, reqBody)

	out, err := h.outboundRequest(r.Context(), r, reqBody)
	if err != nil {
		h.log.WithError(err).Error("Failed to build forwarded request")
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	resp, err := h.transport.RoundTrip(out)
	if err != nil {
		terr := errors.NewTransportError(r.Method+" "+r.URL.Path, err)
		h.log.WithError(terr).Error("Upstream request failed")
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBody))
	if err != nil {
		h.log.WithError(err).Error("Failed to read upstream body")
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	ex.FinishResponse(resp.StatusCode, resp.Header, respBody)

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if len(respBody) > 0 {
		w.Write(respBody)
	}

	h.record(ex)
}

func (h *Handler) outboundRequest(ctx context.Context, r *http.Request, body []byte) (*http.Request, error) {
	u := *r.URL
	u.Scheme = h.target.Scheme
	u.Host = h.target.Host

	out, err := http.NewRequestWithContext(ctx, r.Method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	out.Header = r.Header.Clone()
	for _, name := range hopByHopHeaders {
		out.Header.Del(name)
	}
	out.Host = h.target.Host
	if len(body) > 0 {
		out.ContentLength = int64(len(body))
	}
	return out, nil
}

// serveWebSocket upgrades the client side, dials the target and pumps
// frames in both directions. The handshake itself is recorded as a 101
// exchange; frame payloads are not captured.
func (h *Handler) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	ex := exchange.FromRequest(r, nil)

	target := *r.URL
	target.Host = h.target.Host
	switch h.target.Scheme {
	case "https":
		target.Scheme = "wss"
	default:
		target.Scheme = "ws"
	}

	headers := r.Header.Clone()
	for _, name := range websocketHandshakeHeaders {
		headers.Del(name)
	}

	upstream, resp, err := h.dialer.Dial(target.String(), headers)
	if err != nil {
		status := http.StatusBadGateway
		if resp != nil {
			status = resp.StatusCode
		}
		h.log.WithError(err).Error("WebSocket dial failed")
		http.Error(w, "websocket dial failed", status)
		return
	}
	defer upstream.Close()

	respHeaders := http.Header{}
	if resp != nil {
		respHeaders = resp.Header.Clone()
	}

	client, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.log.WithError(err).Error("WebSocket upgrade failed")
		return
	}
	defer client.Close()

	ex.FinishResponse(http.StatusSwitchingProtocols, respHeaders, nil)
	h.record(ex)

	done := make(chan struct{}, 2)
	go pump(client, upstream, done)
	go pump(upstream, client, done)
	<-done
}

func pump(dst, src *websocket.Conn, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	for {
		mt, data, err := src.ReadMessage()
		if err != nil {
			return
		}
		if err := dst.WriteMessage(mt, data); err != nil {
			return
		}
	}
}

func (h *Handler) record(ex *exchange.Exchange) {
	if h.onExchange == nil {
		return
	}
	if !h.async {
		h.onExchange(ex)
		return
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.onExchange(ex)
	}()
}

// Wait blocks until every in-flight asynchronous capture has been handed
// off. Call before reading documents in tests or during shutdown.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// Close releases idle upstream connections.
func (h *Handler) Close() {
	h.transport.CloseIdleConnections()
}

func isWebSocketRequest(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}

func copyHeaders(dst, src http.Header) {
	for name, values := range src {
		if isHopByHop(name) {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

var hopByHopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

func isHopByHop(name string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}

var websocketHandshakeHeaders = []string{
	"Upgrade", "Connection", "Sec-Websocket-Key", "Sec-Websocket-Version",
	"Sec-Websocket-Extensions", "Sec-Websocket-Protocol",
}
