package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIEngine_ChatUsesJSONSchemaFormat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"{}"}}]}`)
	}))
	defer srv.Close()

	e := NewOpenAIEngine("k", srv.URL)
	_, err := e.Chat(context.Background(), ChatRequest{
		Model:  "gpt-4o-mini",
		Schema: &Schema{Type: "object", Properties: map[string]SchemaProperty{"tool": {Type: "string"}}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	rf, _ := got["response_format"].(map[string]any)
	js, _ := rf["json_schema"].(map[string]any)
	schema, _ := js["schema"].(map[string]any)
	if rf["type"] != "json_schema" || schema["type"] != "object" {
		t.Errorf("response_format = %v", got["response_format"])
	}
}

func TestOpenAIEngine_ModelsAndPull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"gpt-4o-mini"}]}`)
	}))
	defer srv.Close()

	e := NewOpenAIEngine("k", srv.URL)
	if !e.IsRunning(context.Background()) {
		t.Error("IsRunning() = false")
	}
	if !e.HasModel(context.Background(), "gpt-4o-mini") || e.HasModel(context.Background(), "gpt-4") {
		t.Error("HasModel mismatch")
	}
	if err := e.PullModel(context.Background(), "x", nil); !errors.Is(err, ErrPullUnsupported) {
		t.Errorf("PullModel err = %v", err)
	}
}
