package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/adotb/adotb-go/internal/auth"
	"github.com/adotb/adotb-go/internal/generator"
	"github.com/adotb/adotb-go/internal/history"
	"github.com/adotb/adotb-go/internal/pipeline"
	"github.com/adotb/adotb-go/internal/rag"
	"github.com/adotb/adotb-go/internal/transcribe"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8000).
	Port int
	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing a response. It does
	// not apply to hijacked websocket connections.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration

	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger

	// Pipeline is the shared upload pipeline: the vector store and default
	// embedder every request operates on. Required.
	Pipeline *pipeline.UploadPipeline

	// Model is the chat model backing /chat sessions. If nil, /chat turns
	// fail with an upstream error.
	Model generator.ChatModel

	// Transcribe, when non-nil, enables audio input on chat sessions.
	Transcribe *transcribe.Config

	// Auth validates tokens and entitlements. If nil, authentication is
	// disabled (development mode): uploads are open and chat sessions get
	// exactly the labels they request.
	Auth auth.Authenticator

	// History, when non-nil, receives completed chat turns for durable
	// transcript storage.
	History history.Store

	// QueryLimit caps retrieved documents per chat turn. Zero selects the
	// store's default.
	QueryLimit int
	// ContextChars caps the prompt context block. Zero selects the default
	// character budget.
	ContextChars int

	// RateLimit is the sustained request rate allowed per IP on upload and
	// chat endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20
	// if zero.
	RateBurst int

	// Pingers is the ordered list of dependency probes run by GET /readyz.
	// If empty, /readyz returns 200 with no checks.
	Pingers []Pinger

	// Registry receives the server's Prometheus metrics and backs
	// GET /metrics. If nil a fresh registry is created, which keeps unit
	// tests hermetic.
	Registry *prometheus.Registry
}

// Server is the HTTP surface: document ingestion, label inventory, and the
// websocket chat endpoint.
type Server struct {
	cfg        *Config
	pipe       *pipeline.UploadPipeline
	httpServer *http.Server
	upgrader   websocket.Upgrader
	metrics    *serverMetrics
	pingers    []Pinger
	log        *slog.Logger
	// stopRL stops the rate limiter's background eviction goroutine on
	// shutdown.
	stopRL func()
}

// sentencesRequest is the JSON body for POST /upload/sentences.
type sentencesRequest struct {
	// Documents are pre-chunked documents ready for embedding.
	Documents []rag.Document `json:"documents"`
}

// uploadResponse is the JSON response for a successful ingestion.
type uploadResponse struct {
	Message string `json:"message"`
}

// errorResponse is the JSON error payload. Details is a short stable
// string, never a raw upstream cause.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// uploadSuccessMessage is the body clients key on after ingestion.
const uploadSuccessMessage = "Documents added to DB"
