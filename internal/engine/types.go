package engine

import "errors"

// ErrPullUnsupported is returned by backends that cannot download models.
var ErrPullUnsupported = errors.New("backend does not support pulling models")

// Message is a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is one non-streaming chat call.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Schema      *Schema
	Temperature *float64
}

// Schema describes the JSON object a structured reply must match.
type Schema struct {
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// SchemaProperty describes a single field within a Schema.
type SchemaProperty struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// PullProgress reports download progress for a model pull.
type PullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}
