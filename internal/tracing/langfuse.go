// Package tracing provides optional Langfuse export for the model calls this
// service makes: answer generation on chat turns and the one-word readiness
// probe. Traces carry the prompt, retrieved context, and completion, which is
// how grounding quality is reviewed in production.
package tracing

import (
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// Setup initialises the Langfuse callback handler if LANGFUSE_PUBLIC_KEY and
// LANGFUSE_SECRET_KEY are set. The serve command registers the handler
// globally so every eino model call is traced, and must call the returned
// flush function before process exit so buffered chat-turn traces are sent.
// Without keys all return values are zero and tracing is silently disabled;
// chat works identically either way.
func Setup() (callbacks.Handler, func(), bool) {
	host := os.Getenv("LANGFUSE_HOST")
	publicKey := os.Getenv("LANGFUSE_PUBLIC_KEY")
	secretKey := os.Getenv("LANGFUSE_SECRET_KEY")

	if publicKey == "" || secretKey == "" {
		return nil, nil, false
	}
	if host == "" {
		host = "http://localhost:3000"
	}

	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      host,
		PublicKey: publicKey,
		SecretKey: secretKey,
	})

	return handler, flusher, true
}
