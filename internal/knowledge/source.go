// Package knowledge holds the nutrition knowledge passages used to ground
// question answering, and a vector index over them.
package knowledge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// Section is one unit of source text before chunking.
type Section struct {
	Source string
	Index  int
	Text   string
	Topic  string
}

const headingSep = "\n#### "

// Defaults are served when no knowledge file could be loaded.
func Defaults() []Section {
	return []Section{
		{Source: "builtin", Index: 0, Topic: "基础", Text: "宏量营养素包括碳水化合物、蛋白质和脂肪，是身体能量的主要来源。"},
		{Source: "builtin", Index: 1, Topic: "蛋白质", Text: "蛋白质是构成肌肉、器官和酶的基础，对于生长和修复至关重要。"},
		{Source: "builtin", Index: 2, Topic: "膳食纤维", Text: "膳食纤维有助于肠道健康，能增加饱腹感，常见于蔬菜、水果和全谷物中。"},
	}
}

// SplitMarkdown cuts a document into sections at level-4 headings. Every
// section after the first gets its heading marker back.
func SplitMarkdown(source, content string) []Section {
	parts := strings.Split(content, headingSep)
	var out []Section
	for i, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		text := p
		if i > 0 {
			text = "#### " + p
		}
		out = append(out, Section{Source: source, Index: i, Text: strings.TrimSpace(text)})
	}
	return out
}

// LoadMarkdown reads a Markdown knowledge file.
func LoadMarkdown(path string) ([]Section, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return SplitMarkdown(filepath.Base(path), string(b)), nil
}

// LoadPDF extracts the plain text of a PDF as a single section.
func LoadPDF(path string) ([]Section, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	pr, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extracting text from %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(pr); err != nil {
		return nil, fmt.Errorf("reading text from %s: %w", path, err)
	}
	text := strings.TrimSpace(buf.String())
	if text == "" {
		return nil, nil
	}
	return []Section{{Source: filepath.Base(path), Text: text}}, nil
}

// LoadHTML extracts the visible text of an HTML page.
func LoadHTML(path string) ([]Section, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseHTML(filepath.Base(path), f)
}

// ParseHTML returns one section per block of visible text. Script, style
// and head content is dropped.
func ParseHTML(source string, r io.Reader) ([]Section, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html %s: %w", source, err)
	}

	var blocks []string
	var cur strings.Builder
	flush := func() {
		if s := strings.Join(strings.Fields(cur.String()), " "); s != "" {
			blocks = append(blocks, s)
		}
		cur.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "head", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			cur.WriteString(n.Data)
			cur.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && isBlock(n.Data) {
			flush()
		}
	}
	walk(doc)
	flush()

	if len(blocks) == 0 {
		return nil, nil
	}
	return []Section{{Source: source, Text: strings.Join(blocks, "\n")}}, nil
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "li", "tr", "br", "section", "article",
		"h1", "h2", "h3", "h4", "h5", "h6", "pre", "blockquote", "table":
		return true
	}
	return false
}

// LoadFile dispatches on the file extension.
func LoadFile(path string) ([]Section, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt":
		return LoadMarkdown(path)
	case ".pdf":
		return LoadPDF(path)
	case ".html", ".htm":
		return LoadHTML(path)
	default:
		return nil, fmt.Errorf("unsupported knowledge file %s", path)
	}
}

// LoadAll reads every path concurrently and concatenates the sections in
// path order. Unreadable files are logged and skipped, and loading stops
// when ctx is cancelled. When nothing could be loaded the built-in defaults
// are returned.
func LoadAll(ctx context.Context, paths []string) []Section {
	results := make([][]Section, len(paths))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, p := range paths {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			secs, err := LoadFile(p)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					slog.Warn("knowledge file not found, skipping", "path", p)
				} else {
					slog.Warn("knowledge file could not be loaded", "path", p, "error", err)
				}
				return nil
			}
			results[i] = secs
			return nil
		})
	}
	// Only cancellation fails the group; keep what loaded before it.
	if err := g.Wait(); err != nil {
		slog.Warn("knowledge loading interrupted", "error", err)
	}

	var out []Section
	for _, secs := range results {
		out = append(out, secs...)
	}
	if len(out) == 0 {
		slog.Info("no knowledge loaded, using built-in passages")
		return Defaults()
	}
	slog.Info("knowledge loaded", "sections", len(out), "files", len(paths))
	return out
}

func (s Section) id(chunk int) string {
	return s.Source + "#" + strconv.Itoa(s.Index) + "/" + strconv.Itoa(chunk)
}
