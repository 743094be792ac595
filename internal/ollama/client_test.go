package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func tagsJSON(names ...string) []byte {
	r := tagsResponse{}
	for _, n := range names {
		r.Models = append(r.Models, modelEntry{Name: n})
	}
	b, _ := json.Marshal(r)
	return b
}

func TestIsRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		w.Write(tagsJSON())
	}))
	defer srv.Close()

	if !New(srv.URL).IsRunning(context.Background()) {
		t.Error("IsRunning() = false, want true")
	}
}

func TestIsRunning_Down(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	if New(srv.URL).IsRunning(context.Background()) {
		t.Error("IsRunning() = true, want false")
	}
}

func TestHasModel_MatchesTagSuffix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(tagsJSON("qwen2.5:latest", "bge-m3:latest"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	if !c.HasModel(context.Background(), "qwen2.5") {
		t.Error("HasModel(qwen2.5) = false, want true")
	}
	if c.HasModel(context.Background(), "llama3") {
		t.Error("HasModel(llama3) = true, want false")
	}
}

func TestChat_SendsSchemaAndTemperature(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(chatResponse{
			Message: Message{Role: "assistant", Content: `{"tool":"query_nutrient"}`},
		})
	}))
	defer srv.Close()

	temp := 0.2
	schema := &Schema{
		Type: "object",
		Properties: map[string]SchemaProperty{
			"tool": {Type: "string", Enum: []string{"query_nutrient", "none"}},
		},
		Required: []string{"tool"},
	}
	out, err := New(srv.URL).Chat(context.Background(), "qwen2.5", []Message{
		{Role: "user", Content: "苹果有多少热量"},
	}, schema, &ChatOptions{Temperature: &temp})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out != `{"tool":"query_nutrient"}` {
		t.Errorf("out = %q", out)
	}
	if got.Stream {
		t.Error("stream must be false")
	}
	if got.Options == nil || got.Options.Temperature == nil || *got.Options.Temperature != 0.2 {
		t.Errorf("options = %+v", got.Options)
	}
	format, ok := got.Format.(map[string]any)
	if !ok || format["type"] != "object" {
		t.Fatalf("format = %#v", got.Format)
	}
}

func TestChat_PlainTextOmitsFormat(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		json.NewEncoder(w).Encode(chatResponse{Message: Message{Role: "assistant", Content: "多吃蔬菜"}})
	}))
	defer srv.Close()

	out, err := New(srv.URL).Chat(context.Background(), "m", []Message{{Role: "user", Content: "建议"}}, nil, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out != "多吃蔬菜" {
		t.Errorf("out = %q", out)
	}
	if _, ok := raw["format"]; ok {
		t.Error("format sent without schema")
	}
	if _, ok := raw["options"]; ok {
		t.Error("options sent without ChatOptions")
	}
}

func TestChat_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Chat(context.Background(), "m", nil, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("err = %v, want status 404", err)
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.1, 0.2, 0.3}}})
	}))
	defer srv.Close()

	vec, err := New(srv.URL).Embed(context.Background(), "bge-m3", "苹果")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	want := []float32{0.1, 0.2, 0.3}
	if len(vec) != len(want) {
		t.Fatalf("got %d floats, want 3", len(vec))
	}
	for i, w := range want {
		if vec[i] != w {
			t.Errorf("vec[%d] = %f, want %f", i, vec[i], w)
		}
	}
}

func TestEmbed_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embeddings":[]}`))
	}))
	defer srv.Close()

	if _, err := New(srv.URL).Embed(context.Background(), "m", "x"); err == nil {
		t.Fatal("expected error for empty embeddings")
	}
}

func TestPullModel_Progress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req pullRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Name != "qwen2.5" {
			t.Errorf("pull model = %q", req.Name)
		}
		enc := json.NewEncoder(w)
		enc.Encode(PullProgress{Status: "downloading", Total: 1000, Completed: 500})
		enc.Encode(PullProgress{Status: "downloading", Total: 1000, Completed: 1000})
		enc.Encode(PullProgress{Status: "success"})
	}))
	defer srv.Close()

	var n int
	err := New(srv.URL).PullModel(context.Background(), "qwen2.5", func(PullProgress) { n++ })
	if err != nil {
		t.Fatalf("PullModel: %v", err)
	}
	if n != 3 {
		t.Errorf("received %d progress updates, want 3", n)
	}
}

func TestPullModel_StreamedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(PullProgress{Error: "pull model manifest: file does not exist"})
	}))
	defer srv.Close()

	if err := New(srv.URL).PullModel(context.Background(), "nope", nil); err == nil {
		t.Fatal("expected streamed error to surface")
	}
}
