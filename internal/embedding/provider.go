// Package embedding turns text into vectors for the semantic food index and
// the knowledge index. A single Provider is built at startup and passed to
// both.
package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Provider computes embeddings for documents and queries.
type Provider interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Identifier is implemented by providers that can name the vector space
// they produce. Vectors from providers with different identities are not
// comparable.
type Identifier interface {
	ID() string
}

// Identity returns p's ID, or "" when p does not implement Identifier.
func Identity(p Provider) string {
	if id, ok := p.(Identifier); ok {
		return id.ID()
	}
	return ""
}

// Embedder is the subset of engine.Engine that EngineProvider needs.
type Embedder interface {
	Embed(ctx context.Context, model string, text string) ([]float32, error)
}

// EngineProvider embeds text with a model served by an inference engine.
type EngineProvider struct {
	engine Embedder
	model  string
}

// NewEngineProvider creates a provider using the given engine and model name.
func NewEngineProvider(e Embedder, model string) *EngineProvider {
	return &EngineProvider{engine: e, model: model}
}

// ID names the embedding model.
func (p *EngineProvider) ID() string {
	return "engine:" + p.model
}

// EmbedQuery returns the embedding vector for a single text.
func (p *EngineProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := p.engine.Embed(ctx, p.model, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return vec, nil
}

// EmbedDocuments returns embedding vectors for multiple texts concurrently,
// in input order. Returns nil (not error) for empty input.
func (p *EngineProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i, text := range texts {
		g.Go(func() error {
			vec, err := p.engine.Embed(gCtx, p.model, text)
			if err != nil {
				return fmt.Errorf("embedding document %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	dim := len(results[0])
	for i, v := range results {
		if len(v) == 0 || len(v) != dim {
			return nil, fmt.Errorf("document %d: embedding dimension %d, want %d", i, len(v), dim)
		}
	}
	return results, nil
}

var _ Provider = (*EngineProvider)(nil)
