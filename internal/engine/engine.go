// Package engine abstracts the LLM backend used for answering, tool selection
// and embeddings, so callers do not depend on a concrete HTTP client.
package engine

import "context"

// Engine is an inference backend: a local Ollama server or any
// OpenAI-compatible endpoint.
type Engine interface {
	// Chat returns the assistant's reply. A non-nil req.Schema requests
	// structured JSON output.
	Chat(ctx context.Context, req ChatRequest) (string, error)

	// Embed returns the embedding vector for text under model.
	Embed(ctx context.Context, model string, text string) ([]float32, error)

	// IsRunning reports whether the backend is reachable.
	IsRunning(ctx context.Context) bool

	// ListModels returns the names of available models.
	ListModels(ctx context.Context) ([]string, error)

	// HasModel reports whether name is available.
	HasModel(ctx context.Context, name string) bool

	// PullModel downloads a model. Hosted backends return ErrPullUnsupported.
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}
