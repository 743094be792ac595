package engine

import (
	"context"

	"github.com/abchbx/nutrition-agent/internal/openai"
)

// OpenAIEngine adapts an OpenAI-compatible endpoint to Engine.
type OpenAIEngine struct {
	client *openai.Client
}

// NewOpenAIEngine creates an OpenAIEngine. An empty baseURL selects the
// public OpenAI API.
func NewOpenAIEngine(apiKey, baseURL string) *OpenAIEngine {
	return &OpenAIEngine{client: openai.NewClient(apiKey, baseURL)}
}

func (e *OpenAIEngine) Chat(ctx context.Context, req ChatRequest) (string, error) {
	msgs := make([]openai.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.Message{Role: m.Role, Content: m.Content}
	}
	cr := openai.ChatRequest{Model: req.Model, Messages: msgs, Temperature: req.Temperature}
	if req.Schema != nil {
		cr.ResponseFormat = &openai.ResponseFormat{
			Type:       "json_schema",
			JSONSchema: &openai.JSONSchema{Name: "response", Schema: req.Schema},
		}
	}
	return e.client.Chat(ctx, cr)
}

func (e *OpenAIEngine) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	return e.client.Embed(ctx, model, text)
}

func (e *OpenAIEngine) IsRunning(ctx context.Context) bool {
	_, err := e.client.ListModels(ctx)
	return err == nil
}

func (e *OpenAIEngine) ListModels(ctx context.Context) ([]string, error) {
	models, err := e.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.ID
	}
	return names, nil
}

func (e *OpenAIEngine) HasModel(ctx context.Context, name string) bool {
	names, err := e.ListModels(ctx)
	if err != nil {
		return false
	}
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func (e *OpenAIEngine) PullModel(context.Context, string, func(PullProgress)) error {
	return ErrPullUnsupported
}
