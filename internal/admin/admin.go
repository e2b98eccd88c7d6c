// Package admin serves the operational HTTP endpoints of voxnote.
//
// The server exposes:
//
//   - /healthz: liveness probe; always returns 200 OK.
//   - /readyz: readiness probe; returns 200 only when all registered
//     [Checker] functions pass.
//   - /v1/models: lists the models available from the configured
//     transcription provider.
//   - /metrics: Prometheus scrape endpoint.
//
// Health responses are JSON objects with a top-level "status" field ("ok"
// or "fail") and a "checks" map containing the result of each named checker.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/voxnote/voxnote/internal/observe"
	"github.com/voxnote/voxnote/pkg/provider/transcribe"
)

// checkTimeout is the maximum time a single readiness check may take before
// the context is cancelled.
const checkTimeout = 5 * time.Second

// shutdownTimeout bounds the graceful drain when Run's context is cancelled.
const shutdownTimeout = 5 * time.Second

// Checker is a named readiness check. The Check function should return nil
// when the dependency is healthy and a non-nil error describing the failure
// otherwise.
type Checker struct {
	// Name is a short label for this check (e.g. "recorder", "provider").
	// It appears as a key in the JSON response.
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// result is the JSON response body for health endpoints.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// modelEntry is one element of the /v1/models response, mirroring the
// OpenAI list shape all three providers speak.
type modelEntry struct {
	ID     string `json:"id"`
	Object string `json:"object"`
}

type modelList struct {
	Object string       `json:"object"`
	Data   []modelEntry `json:"data"`
}

// Server is the admin HTTP server. It is safe for concurrent use; routes
// and checkers are fixed at construction time.
type Server struct {
	srv      *http.Server
	checkers []Checker
	oai      oai.Client
}

// New builds an admin [Server] listening on addr. The provider config
// determines which backend /v1/models queries; checkers are evaluated on
// each /readyz request in the order provided.
func New(addr string, cfg transcribe.Config, metrics *observe.Metrics, checkers ...Checker) *Server {
	s := &Server{
		checkers: append([]Checker(nil), checkers...),
		oai: oai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL),
		),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.HandleFunc("GET /readyz", s.readyz)
	mux.HandleFunc("GET /v1/models", s.models)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the server's root handler, including middleware.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run binds the listen address and serves until ctx is cancelled, then
// drains in-flight requests. It returns nil on a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("admin: bind %s: %w", s.srv.Addr, err)
	}
	slog.Info("admin server listening", "addr", ln.Addr().String())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("admin: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("admin: shutdown: %w", err)
	}
	return nil
}

// healthz is a liveness probe that always returns 200 OK. A running process
// that can serve HTTP is considered alive.
func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// readyz returns 200 only when every registered [Checker] passes. Each
// checker is given a context with a [checkTimeout] deadline derived from
// the request context.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.checkers))
	allOK := true

	for _, c := range s.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := result{
		Status: "ok",
		Checks: checks,
	}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, res)
}

// models lists the configured provider's available models.
func (s *Server) models(w http.ResponseWriter, r *http.Request) {
	page, err := s.oai.Models.List(r.Context())
	if err != nil {
		observe.Logger(r.Context()).Warn("model listing failed", "error", err)
		writeJSON(w, http.StatusBadGateway, result{Status: "fail"})
		return
	}

	list := modelList{Object: "list", Data: make([]modelEntry, 0, len(page.Data))}
	for _, m := range page.Data {
		list.Data = append(list.Data, modelEntry{ID: m.ID, Object: "model"})
	}
	writeJSON(w, http.StatusOK, list)
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
