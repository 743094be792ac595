package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/philippgille/chromem-go"

	"github.com/abchbx/nutrition-agent/internal/embedding"
)

const collectionName = "nutrition_knowledge"

// Passage is a retrieved chunk of knowledge text.
type Passage struct {
	ID         string
	Source     string
	Topic      string
	Content    string
	Similarity float32
}

// Index is an in-memory chromem collection of knowledge chunks.
type Index struct {
	provider embedding.Provider
	col      *chromem.Collection
}

// Build chunks sections, embeds the chunks with provider and loads them into
// a fresh collection.
func Build(ctx context.Context, provider embedding.Provider, sections []Section) (*Index, error) {
	if provider == nil {
		return nil, errors.New("no embedding provider")
	}

	db := chromem.NewDB()
	embed := func(ctx context.Context, text string) ([]float32, error) {
		return provider.EmbedQuery(ctx, text)
	}
	col, err := db.CreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	var docs []chromem.Document
	for _, s := range sections {
		for i, c := range Chunk(s.Text, ChunkSize, ChunkOverlap) {
			meta := map[string]string{"source": s.Source, "section": strconv.Itoa(s.Index)}
			if s.Topic != "" {
				meta["topic"] = s.Topic
			}
			docs = append(docs, chromem.Document{ID: s.id(i), Content: c, Metadata: meta})
		}
	}
	if len(docs) == 0 {
		return &Index{provider: provider, col: col}, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := provider.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding knowledge chunks: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("provider returned %d vectors for %d chunks", len(vectors), len(docs))
	}
	for i := range docs {
		docs[i].Embedding = vectors[i]
	}

	if err := col.AddDocuments(ctx, docs, 4); err != nil {
		return nil, fmt.Errorf("adding knowledge chunks: %w", err)
	}
	slog.Info("knowledge index ready", "chunks", len(docs))
	return &Index{provider: provider, col: col}, nil
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	if ix == nil || ix.col == nil {
		return 0
	}
	return ix.col.Count()
}

// Search returns up to k passages most similar to question, best first.
// Failures are logged and yield no passages.
func (ix *Index) Search(ctx context.Context, question string, k int) []Passage {
	n := ix.Len()
	if n == 0 || k <= 0 || strings.TrimSpace(question) == "" {
		return nil
	}
	if k > n {
		k = n
	}

	q, err := ix.provider.EmbedQuery(ctx, question)
	if err != nil {
		slog.Warn("knowledge search: embedding question failed", "error", err)
		return nil
	}
	res, err := ix.col.QueryEmbedding(ctx, q, k, nil, nil)
	if err != nil {
		slog.Warn("knowledge search failed", "error", err)
		return nil
	}

	out := make([]Passage, len(res))
	for i, r := range res {
		out[i] = Passage{
			ID:         r.ID,
			Source:     r.Metadata["source"],
			Topic:      r.Metadata["topic"],
			Content:    r.Content,
			Similarity: r.Similarity,
		}
	}
	return out
}

// Context joins passages into one prompt block.
func Context(passages []Passage) string {
	parts := make([]string, len(passages))
	for i, p := range passages {
		parts[i] = p.Content
	}
	return strings.Join(parts, "\n\n")
}
