// Package semantic is a brute-force L2 vector index over sentence renderings
// of food records. The dataset is small, so every search scans all rows.
package semantic

import (
	"container/heap"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/abchbx/nutrition-agent/internal/embedding"
	"github.com/abchbx/nutrition-agent/internal/foodtable"
	"github.com/abchbx/nutrition-agent/internal/storage"
)

// IndexFile is the flat vector file inside the index directory.
const IndexFile = "index.flat"

// Document is the text rendering of one record and the record it came from.
type Document struct {
	Position int
	Content  string
	Record   foodtable.Record
}

// Hit is one search result. Distance is the squared L2 distance.
type Hit struct {
	Record   foodtable.Record
	Distance float32
	Position int
}

// Index holds vectors and their documents in insertion order.
type Index struct {
	provider embedding.Provider
	dim      int
	vectors  [][]float32
	docs     []Document
}

// Render produces the sentence that gets embedded for a record.
func Render(r foodtable.Record) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return fmt.Sprintf("%s是一种%s，每100g含有热量%s千卡，蛋白质%sg，碳水化合物%sg，脂肪%sg，膳食纤维%sg，维生素C%smg，钙%smg，铁%smg。",
		r.Name, r.Category, f(r.Calories), f(r.Protein), f(r.Carbs), f(r.Fat),
		f(r.Fiber), f(r.VitaminC), f(r.Calcium), f(r.Iron))
}

// Build embeds every record and, when dir is not empty, persists the flat
// index and the docstore there. An embedding failure is logged and returned
// with a nil index; callers treat that as "semantic search unavailable".
// Persistence failures are logged and do not discard the in-memory index.
func Build(ctx context.Context, dir string, provider embedding.Provider, records []foodtable.Record) (*Index, error) {
	if provider == nil {
		return nil, errors.New("no embedding provider")
	}

	docs := make([]Document, len(records))
	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = Render(r)
		docs[i] = Document{Position: i, Content: texts[i], Record: r}
	}

	slog.Info("building semantic index", "documents", len(docs))
	vectors, err := provider.EmbedDocuments(ctx, texts)
	if err != nil {
		slog.Error("semantic index build failed", "error", err)
		return nil, fmt.Errorf("embedding documents: %w", err)
	}
	if len(vectors) != len(docs) {
		err := fmt.Errorf("provider returned %d vectors for %d documents", len(vectors), len(docs))
		slog.Error("semantic index build failed", "error", err)
		return nil, err
	}

	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	ix := &Index{provider: provider, dim: dim, vectors: vectors, docs: docs}

	if dir != "" {
		if err := ix.persist(dir); err != nil {
			slog.Warn("could not persist semantic index", "dir", dir, "error", err)
		}
	}
	slog.Info("semantic index ready", "documents", len(docs), "dim", dim)
	return ix, nil
}

// Open loads the index persisted in dir. It rebuilds from records when the
// index file is missing, zero-length or corrupt, when the docstore does not
// line up with it, when records no longer match the stored documents, or
// when provider produces vectors of another space.
func Open(ctx context.Context, dir string, provider embedding.Provider, records []foodtable.Record) (*Index, error) {
	ix, err := load(dir, provider)
	if err != nil {
		slog.Info("semantic index unavailable on disk, rebuilding", "dir", dir, "reason", err)
		return Build(ctx, dir, provider, records)
	}
	if !ix.matches(records) {
		slog.Info("semantic index is stale, rebuilding", "dir", dir)
		return Build(ctx, dir, provider, records)
	}
	// Providers without an identity are checked by the width of one query.
	if ix.dim > 0 {
		if v, err := provider.EmbedQuery(ctx, ix.docs[0].Content); err == nil && len(v) != ix.dim {
			slog.Info("semantic index dimension differs from provider, rebuilding", "dir", dir, "index_dim", ix.dim, "provider_dim", len(v))
			return Build(ctx, dir, provider, records)
		}
	}
	slog.Info("loaded semantic index", "dir", dir, "documents", len(ix.docs))
	return ix, nil
}

func load(dir string, provider embedding.Provider) (*Index, error) {
	path := filepath.Join(dir, IndexFile)
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if st.Size() == 0 {
		return nil, errors.New("index file is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dim, vectors, err := decodeFlat(data)
	if err != nil {
		return nil, err
	}

	ds, err := storage.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("opening docstore: %w", err)
	}
	defer ds.Close()

	n, err := ds.CountDocuments()
	if err != nil {
		return nil, fmt.Errorf("reading docstore: %w", err)
	}
	if n != len(vectors) {
		return nil, fmt.Errorf("docstore has %d documents, index has %d vectors", n, len(vectors))
	}
	if d, err := ds.GetMeta("dim"); err != nil || d != strconv.Itoa(dim) {
		return nil, fmt.Errorf("docstore dimension %q does not match index dimension %d", d, dim)
	}
	built, err := ds.GetMeta("provider")
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("reading docstore: %w", err)
	}
	if want := embedding.Identity(provider); built != want {
		return nil, fmt.Errorf("index was built by %q, provider is %q", built, want)
	}

	stored, err := ds.ListDocuments()
	if err != nil {
		return nil, fmt.Errorf("reading docstore: %w", err)
	}
	docs := make([]Document, len(stored))
	for i, d := range stored {
		var rec foodtable.Record
		if err := json.Unmarshal([]byte(d.RecordJSON), &rec); err != nil {
			return nil, fmt.Errorf("decoding document %d: %w", i, err)
		}
		docs[i] = Document{Position: d.Position, Content: d.Content, Record: rec}
	}
	return &Index{provider: provider, dim: dim, vectors: vectors, docs: docs}, nil
}

func (ix *Index) persist(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	ds, err := storage.Open(dir)
	if err != nil {
		return fmt.Errorf("opening docstore: %w", err)
	}
	defer ds.Close()

	rows := make([]storage.Document, len(ix.docs))
	for i, d := range ix.docs {
		b, err := json.Marshal(d.Record)
		if err != nil {
			return fmt.Errorf("encoding record %d: %w", i, err)
		}
		rows[i] = storage.Document{
			Position:   i,
			Name:       d.Record.Name,
			Category:   d.Record.Category,
			Content:    d.Content,
			RecordJSON: string(b),
		}
	}
	if err := ds.ReplaceDocuments(rows); err != nil {
		return err
	}
	if err := ds.SetMeta("dim", strconv.Itoa(ix.dim)); err != nil {
		return err
	}
	if err := ds.SetMeta("provider", embedding.Identity(ix.provider)); err != nil {
		return err
	}
	// The flat file goes last: a crash before this point leaves either no
	// index file or one that disagrees with the docstore, and both rebuild.
	return writeFlat(filepath.Join(dir, IndexFile), ix.dim, ix.vectors)
}

func (ix *Index) matches(records []foodtable.Record) bool {
	if len(records) != len(ix.docs) {
		return false
	}
	for i, r := range records {
		if ix.docs[i].Content != Render(r) {
			return false
		}
	}
	return true
}

// Len returns the number of indexed documents. A nil index has none.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.docs)
}

// Documents returns the indexed documents in insertion order.
func (ix *Index) Documents() []Document {
	if ix == nil {
		return nil
	}
	out := make([]Document, len(ix.docs))
	copy(out, ix.docs)
	return out
}

// Search returns up to k nearest documents for query, nearest first. Equal
// distances keep insertion order. A nil or empty index, k <= 0, or a query
// that cannot be embedded all yield an empty result.
func (ix *Index) Search(ctx context.Context, query string, k int) []Hit {
	if ix == nil || len(ix.docs) == 0 || k <= 0 || strings.TrimSpace(query) == "" {
		return nil
	}

	q, err := ix.provider.EmbedQuery(ctx, query)
	if err != nil {
		slog.Warn("semantic search: embedding query failed", "error", err)
		return nil
	}
	if len(q) != ix.dim {
		slog.Warn("semantic search: query dimension mismatch", "got", len(q), "want", ix.dim)
		return nil
	}

	// Max-heap of the k best so far; the root is the worst kept candidate.
	h := &hitHeap{}
	for i, v := range ix.vectors {
		c := candidate{pos: i, dist: squaredL2(q, v)}
		if h.Len() < k {
			heap.Push(h, c)
			continue
		}
		if c.better((*h)[0]) {
			(*h)[0] = c
			heap.Fix(h, 0)
		}
	}

	hits := make([]Hit, h.Len())
	for i := len(hits) - 1; i >= 0; i-- {
		c := heap.Pop(h).(candidate)
		hits[i] = Hit{Record: ix.docs[c.pos].Record, Distance: c.dist, Position: c.pos}
	}
	return hits
}

type candidate struct {
	pos  int
	dist float32
}

// better orders by distance, then by insertion position.
func (c candidate) better(o candidate) bool {
	if c.dist != o.dist {
		return c.dist < o.dist
	}
	return c.pos < o.pos
}

// hitHeap is a max-heap of candidates: the worst kept result sits at the root.
type hitHeap []candidate

func (h hitHeap) Len() int            { return len(h) }
func (h hitHeap) Less(i, j int) bool  { return h[j].better(h[i]) }
func (h hitHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *hitHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
