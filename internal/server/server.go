// Package server exposes the chatbot backend over HTTP: document ingestion
// endpoints, a label inventory endpoint, and the websocket chat protocol.
// The server is started by the `adotb serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adotb/adotb-go/internal/apperrors"
	"github.com/adotb/adotb-go/internal/logging"
	"github.com/adotb/adotb-go/internal/transcribe"
)

// New constructs a Server from the provided config.
func New(cfg *Config) (*Server, error) {
	if cfg == nil || cfg.Pipeline == nil {
		return nil, fmt.Errorf("server: upload pipeline must not be nil")
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		cfg:     cfg,
		pipe:    cfg.Pipeline,
		metrics: newServerMetrics(reg),
		pingers: cfg.Pingers,
		log:     log,
	}
	// Browser clients connect from arbitrary origins, matching the open
	// CORS policy of the REST endpoints.
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	if cfg.Auth == nil {
		log.Warn("authentication disabled: uploads are open and chat labels are not checked")
	}
	// Sessions build their own transcriber per connection; constructing one
	// here surfaces a bad config at startup instead of mid-conversation.
	if cfg.Transcribe != nil {
		if _, err := transcribe.New(cfg.Transcribe); err != nil {
			return nil, fmt.Errorf("server: transcriber: %w", err)
		}
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL
	limited := rl.middleware

	mux := http.NewServeMux()
	mux.Handle("POST /upload/sentences",
		s.route("upload_sentences", limited(s.adminOnly(s.handleUploadSentences))))
	mux.Handle("POST /upload/text-file",
		s.route("upload_text_file", limited(s.adminOnly(s.handleUploadTextFile))))
	mux.Handle("POST /upload/csv-file",
		s.route("upload_csv_file", limited(s.adminOnly(s.handleUploadCSVFile))))
	mux.Handle("GET /source-labels",
		s.route("source_labels", http.HandlerFunc(s.handleSourceLabels)))
	mux.Handle("GET /chat",
		limited(http.HandlerFunc(s.handleChat)))
	mux.Handle("GET /healthz",
		s.route("healthz", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /readyz",
		s.route("readyz", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics",
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// route wraps a handler with per-endpoint metrics instrumentation.
func (s *Server) route(name string, next http.Handler) http.Handler {
	return s.metrics.instrument(name, next)
}

// Handler returns the server's root handler. Used by tests with httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleSourceLabels handles GET /source-labels: the current distinct label
// inventory of the collection.
func (s *Server) handleSourceLabels(w http.ResponseWriter, r *http.Request) {
	store := s.pipe.Store()
	if store == nil {
		s.writeError(w, r, apperrors.Store("no vector store configured", nil, false))
		return
	}
	labels, err := store.Labels(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if labels == nil {
		labels = []string{}
	}
	// The inventory is a bare array, not an object wrapper.
	s.writeJSON(w, http.StatusOK, labels)
}

// writeJSON encodes v with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("response encode error", slog.Any("error", err))
	}
}

// writeError logs err with its correlation context and sends the stable
// {error, details} payload. Raw upstream causes never reach the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.From(err)
	logging.FromContext(r.Context()).Error("request failed",
		slog.String("title", appErr.Title),
		slog.Any("error", err),
	)
	s.writeJSON(w, appErr.HTTPStatus(), errorResponse{
		Error:   appErr.Title,
		Details: appErr.Detail,
	})
}
