package engine

import (
	"context"

	"github.com/abchbx/nutrition-agent/internal/ollama"
)

// OllamaEngine adapts ollama.Client to Engine.
type OllamaEngine struct {
	client *ollama.Client
}

// NewOllamaEngine creates an OllamaEngine for the server at baseURL.
func NewOllamaEngine(baseURL string) *OllamaEngine {
	return &OllamaEngine{client: ollama.New(baseURL)}
}

func (e *OllamaEngine) Chat(ctx context.Context, req ChatRequest) (string, error) {
	msgs := make([]ollama.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = ollama.Message{Role: m.Role, Content: m.Content}
	}

	var s *ollama.Schema
	if req.Schema != nil {
		s = &ollama.Schema{Type: req.Schema.Type, Required: req.Schema.Required}
		if req.Schema.Properties != nil {
			s.Properties = make(map[string]ollama.SchemaProperty, len(req.Schema.Properties))
			for k, v := range req.Schema.Properties {
				s.Properties[k] = ollama.SchemaProperty{Type: v.Type, Description: v.Description, Enum: v.Enum}
			}
		}
	}

	var opts *ollama.ChatOptions
	if req.Temperature != nil {
		opts = &ollama.ChatOptions{Temperature: req.Temperature}
	}
	return e.client.Chat(ctx, req.Model, msgs, s, opts)
}

func (e *OllamaEngine) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	return e.client.Embed(ctx, model, text)
}

func (e *OllamaEngine) IsRunning(ctx context.Context) bool {
	return e.client.IsRunning(ctx)
}

func (e *OllamaEngine) ListModels(ctx context.Context) ([]string, error) {
	return e.client.ListModels(ctx)
}

func (e *OllamaEngine) HasModel(ctx context.Context, name string) bool {
	return e.client.HasModel(ctx, name)
}

func (e *OllamaEngine) PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error {
	var cb func(ollama.PullProgress)
	if onProgress != nil {
		cb = func(p ollama.PullProgress) {
			onProgress(PullProgress{Status: p.Status, Total: p.Total, Completed: p.Completed})
		}
	}
	return e.client.PullModel(ctx, name, cb)
}
