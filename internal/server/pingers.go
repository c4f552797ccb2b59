package server

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/adotb/adotb-go/internal/generator"
	"github.com/adotb/adotb-go/internal/rag"
)

// Pinger is the interface implemented by any dependency that can report its
// own reachability. Each implementation must return nil when the dependency
// is healthy and a descriptive error otherwise.
// Implementations must be safe to call from multiple goroutines.
type Pinger interface {
	// Ping checks whether the dependency is reachable within the given
	// context.
	Ping(ctx context.Context) error

	// Name returns a short human-readable label used in readiness responses
	// (e.g. "vectordb", "model").
	Name() string
}

// StorePinger probes a vector store by asking for its label inventory,
// which every backend answers with one cheap round trip.
type StorePinger struct {
	store rag.VectorStore
}

// NewStorePinger constructs a StorePinger for the given store.
func NewStorePinger(store rag.VectorStore) *StorePinger {
	return &StorePinger{store: store}
}

// Name returns the dependency label used in readiness responses.
func (p *StorePinger) Name() string { return "vectordb" }

// Ping lists the store's labels as a reachability probe.
func (p *StorePinger) Ping(ctx context.Context) error {
	if _, err := p.store.Labels(ctx); err != nil {
		return fmt.Errorf("label inventory failed: %w", err)
	}
	return nil
}

// ModelPinger probes a chat model backend by sending a minimal generate
// request. The call consumes a handful of tokens, so readiness checks
// against metered backends should be polled sparingly.
type ModelPinger struct {
	model generator.ChatModel
	name  string
}

// NewModelPinger constructs a ModelPinger for the given model and backend
// name.
func NewModelPinger(m generator.ChatModel, name string) *ModelPinger {
	return &ModelPinger{model: m, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *ModelPinger) Name() string { return p.name }

// Ping sends a one-word generate request to the backend.
func (p *ModelPinger) Ping(ctx context.Context) error {
	resp, err := p.model.Generate(ctx, []*schema.Message{schema.UserMessage("ping")})
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("generate returned nil response")
	}
	return nil
}
