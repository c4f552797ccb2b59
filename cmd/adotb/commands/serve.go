package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/adotb/adotb-go/internal/auth"
	"github.com/adotb/adotb-go/internal/history"
	"github.com/adotb/adotb-go/internal/logging"
	"github.com/adotb/adotb-go/internal/pipeline"
	"github.com/adotb/adotb-go/internal/provider"
	"github.com/adotb/adotb-go/internal/server"
	"github.com/adotb/adotb-go/internal/tracing"
	"github.com/adotb/adotb-go/internal/transcribe"
)

// NewServeCmd constructs the `adotb serve` command, which starts the HTTP
// server with the upload endpoints and the websocket chat endpoint.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the adotb HTTP server and websocket chat endpoint",
		Long: `Start the adotb server on localhost.

The server exposes REST endpoints for uploading documents into the vector
store and a websocket endpoint for interactive chat sessions. Answers are
generated strictly from the stored documents and cite their sources.

Examples:
  adotb serve
  adotb serve --port 9090
  VECTORDB_TYPE=postgres adotb serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing, opt-in and a no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", envOrDefault("MODEL_PROVIDER", "openai")))

			embCfg := embeddingConfigFromEnv()
			pipe := pipeline.NewUploadPipeline()
			if err := pipe.SetEmbedding(embCfg); err != nil {
				return fmt.Errorf("serve: embedding provider: %w", err)
			}
			if err := pipe.SetVectorDB(ctx, vectorDBConfigFromEnv(embCfg.ResolvedDimensions())); err != nil {
				return fmt.Errorf("serve: vector store: %w", err)
			}
			defer func() { _ = pipe.Close() }()
			log.Info("vector store ready", slog.String("backend", envOrDefault("VECTORDB_TYPE", "chroma")))

			// Open the chat history store. ADOTB_HISTORY_DB overrides the
			// default path (~/.adotb/history.db). Set to "disabled" to skip.
			var historyStore history.Store
			dbPath := os.Getenv("ADOTB_HISTORY_DB")
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = history.DefaultDBPath()
					if err != nil {
						log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
					}
				}
				if dbPath != "" {
					hs, hsErr := history.Open(dbPath)
					if hsErr != nil {
						log.Warn("history: failed to open store, disabling", slog.Any("error", hsErr))
					} else {
						historyStore = hs
						defer func() { _ = hs.Close() }()
						log.Info("history: store opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("history: disabled via ADOTB_HISTORY_DB=disabled")
			}

			// Token checks and label entitlements come from Supabase. With no
			// project configured the server runs open, for local development.
			var authenticator auth.Authenticator
			if url := os.Getenv("SUPABASE_URL"); url != "" {
				sa, saErr := auth.NewSupabaseAuth(&auth.SupabaseConfig{
					URL:    url,
					APIKey: os.Getenv("SUPABASE_KEY"),
				})
				if saErr != nil {
					return fmt.Errorf("serve: supabase auth: %w", saErr)
				}
				authenticator = sa
				log.Info("supabase auth enabled", slog.String("url", url))
			}

			var transcribeCfg *transcribe.Config
			if key := os.Getenv("TRANSCRIPTION_API_KEY"); key != "" {
				transcribeCfg = &transcribe.Config{
					Kind:    transcribe.Kind(envOrDefault("TRANSCRIPTION_PROVIDER", string(transcribe.KindWhisper))),
					APIKey:  key,
					Model:   os.Getenv("TRANSCRIPTION_MODEL"),
					BaseURL: os.Getenv("TRANSCRIPTION_ENDPOINT"),
				}
			}

			pingers := []server.Pinger{
				server.NewStorePinger(pipe.Store()),
				server.NewModelPinger(chatModel, envOrDefault("MODEL_PROVIDER", "openai")),
			}

			if !cmd.Flags().Changed("host") {
				host = envOrDefault("ADOTB_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = envInt("ADOTB_PORT", port)
			}

			srv, err := server.New(&server.Config{
				Host:         host,
				Port:         port,
				Logger:       log,
				Pipeline:     pipe,
				Model:        chatModel,
				Transcribe:   transcribeCfg,
				Auth:         authenticator,
				History:      historyStore,
				QueryLimit:   envInt("CHROMA_DB_QUERY_LIMIT", 0),
				ContextChars: envInt("CHAT_CONTEXT_CHARS", 0),
				RateLimit:    envFloat("ADOTB_RATE_LIMIT", 0),
				RateBurst:    envInt("ADOTB_RATE_BURST", 0),
				Pingers:      pingers,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8000, "TCP port to listen on")

	return cmd
}
