package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abchbx/nutrition-agent/internal/embedding"
)

func TestSplitMarkdownKeepsHeadings(t *testing.T) {
	md := "# 营养知识库\n\n简介\n#### 蛋白质\n蛋白质很重要。\n#### 膳食纤维\n纤维有助于消化。\n"

	secs := SplitMarkdown("kb.md", md)
	if len(secs) != 3 {
		t.Fatalf("got %d sections, want 3", len(secs))
	}
	if !strings.HasPrefix(secs[0].Text, "# 营养知识库") {
		t.Errorf("first section = %q", secs[0].Text)
	}
	if !strings.HasPrefix(secs[1].Text, "#### 蛋白质") {
		t.Errorf("second section lost its heading: %q", secs[1].Text)
	}
	if secs[2].Index != 2 || secs[2].Source != "kb.md" {
		t.Errorf("third section = %+v", secs[2])
	}
}

func TestChunkShortTextIsSingle(t *testing.T) {
	got := Chunk("  蛋白质是构成肌肉的基础。 ", 1000, 200)
	if len(got) != 1 || got[0] != "蛋白质是构成肌肉的基础。" {
		t.Errorf("Chunk = %q", got)
	}
	if Chunk("   ", 1000, 200) != nil {
		t.Error("blank text should yield no chunks")
	}
}

func TestChunkOverlapsByRunes(t *testing.T) {
	text := strings.Repeat("营", 2500)

	chunks := Chunk(text, 1000, 200)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	for i, c := range chunks {
		if n := len([]rune(c)); n > 1000 {
			t.Errorf("chunk %d has %d runes", i, n)
		}
	}
	// Windows start at 0, 800 and 1600.
	if n := len([]rune(chunks[2])); n != 900 {
		t.Errorf("last chunk has %d runes, want 900", n)
	}
}

func TestChunkPrefersLineBreak(t *testing.T) {
	text := strings.Repeat("a", 700) + "\n" + strings.Repeat("b", 700)

	chunks := Chunk(text, 1000, 200)
	if chunks[0] != strings.Repeat("a", 700) {
		t.Errorf("first chunk did not stop at the line break: %d runes", len([]rune(chunks[0])))
	}
}

func TestParseHTMLDropsScripts(t *testing.T) {
	page := `<html><head><title>t</title><style>p{}</style></head>
<body><h1>维生素C</h1><script>var x = 1;</script><p>柑橘类水果富含维生素C。</p></body></html>`

	secs, err := ParseHTML("vc.html", strings.NewReader(page))
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	if len(secs) != 1 {
		t.Fatalf("got %d sections", len(secs))
	}
	if strings.Contains(secs[0].Text, "var x") || strings.Contains(secs[0].Text, "p{}") {
		t.Errorf("script or style leaked: %q", secs[0].Text)
	}
	if secs[0].Text != "维生素C\n柑橘类水果富含维生素C。" {
		t.Errorf("text = %q", secs[0].Text)
	}
}

func TestLoadPDFRejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.pdf")
	if err := os.WriteFile(path, []byte("plain text"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPDF(path); err == nil {
		t.Fatal("expected error for a non-PDF file")
	}
}

func TestLoadAllFallsBackToDefaults(t *testing.T) {
	secs := LoadAll(context.Background(), []string{filepath.Join(t.TempDir(), "knowledge_base.md")})
	if len(secs) != 3 {
		t.Fatalf("got %d sections, want 3 defaults", len(secs))
	}
	if !strings.Contains(secs[2].Text, "膳食纤维") {
		t.Errorf("defaults = %+v", secs)
	}
}

func TestLoadAllStopsWhenCancelled(t *testing.T) {
	md := filepath.Join(t.TempDir(), "a.md")
	os.WriteFile(md, []byte("#### 钙\n奶制品含钙。"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	secs := LoadAll(ctx, []string{md})
	if len(secs) != 3 || secs[0].Source == "a.md" {
		t.Errorf("cancelled load = %+v, want the 3 defaults", secs)
	}
}

func TestLoadAllKeepsPathOrder(t *testing.T) {
	dir := t.TempDir()
	md := filepath.Join(dir, "a.md")
	page := filepath.Join(dir, "b.html")
	os.WriteFile(md, []byte("#### 钙\n奶制品含钙。"), 0o644)
	os.WriteFile(page, []byte("<p>菠菜含铁。</p>"), 0o644)

	secs := LoadAll(context.Background(), []string{md, filepath.Join(dir, "missing.md"), page})
	if len(secs) != 2 {
		t.Fatalf("got %d sections, want 2", len(secs))
	}
	if secs[0].Source != "a.md" || secs[1].Source != "b.html" {
		t.Errorf("sources = %q, %q", secs[0].Source, secs[1].Source)
	}
}

type failingProvider struct{}

func (failingProvider) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, errors.New("backend down")
}

func (failingProvider) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("backend down")
}

func TestBuildEmbeddingErrorFails(t *testing.T) {
	if _, err := Build(context.Background(), failingProvider{}, Defaults()); err == nil {
		t.Fatal("expected error")
	}
}

func TestSearchFindsRelevantPassage(t *testing.T) {
	ix, err := Build(context.Background(), embedding.NewHashProvider(0), Defaults())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if ix.Len() != 3 {
		t.Fatalf("Len = %d, want 3", ix.Len())
	}

	got := ix.Search(context.Background(), "膳食纤维有什么作用", 1)
	if len(got) != 1 {
		t.Fatalf("got %d passages", len(got))
	}
	if got[0].Topic != "膳食纤维" || got[0].Source != "builtin" {
		t.Errorf("top passage = %+v", got[0])
	}
}

func TestSearchCapsKAtCollectionSize(t *testing.T) {
	ix, _ := Build(context.Background(), embedding.NewHashProvider(0), Defaults())

	got := ix.Search(context.Background(), "蛋白质", 10)
	if len(got) != 3 {
		t.Fatalf("got %d passages, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Similarity > got[i-1].Similarity {
			t.Errorf("passages not ordered by similarity: %v", got)
		}
	}
}

func TestSearchOnNilOrEmptyIndex(t *testing.T) {
	var ix *Index
	if got := ix.Search(context.Background(), "蛋白质", 3); got != nil {
		t.Errorf("nil index returned %v", got)
	}

	empty, err := Build(context.Background(), embedding.NewHashProvider(0), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := empty.Search(context.Background(), "蛋白质", 3); got != nil {
		t.Errorf("empty index returned %v", got)
	}
}

func TestContextJoinsPassages(t *testing.T) {
	got := Context([]Passage{{Content: "a"}, {Content: "b"}})
	if got != "a\n\nb" {
		t.Errorf("Context = %q", got)
	}
}
