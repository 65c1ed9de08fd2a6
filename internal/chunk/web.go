package chunk

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// WebChunker splits a crawled web page into code-block chunks (fed through
// the AST-aware splitter with the block's tagged language) and prose
// chunks (fed through the paragraph-aware character splitter), per spec
// §4.3 "Web pages".
type WebChunker struct {
	code *CodeChunker
	opts Options
}

// NewWebChunker creates a web chunker sharing a CodeChunker for fenced code.
func NewWebChunker(code *CodeChunker, opts Options) *WebChunker {
	return &WebChunker{code: code, opts: opts.withDefaults()}
}

// ChunkWeb parses html and returns ordered code and prose chunks. relPath
// identifies the page (e.g. its URL path) for payload purposes.
func (w *WebChunker) ChunkWeb(ctx context.Context, html, relPath string) ([]Chunk, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var out []Chunk
	idx := 0

	doc.Find("pre code, pre").Each(func(_ int, sel *goquery.Selection) {
		lang := languageFromClass(sel.AttrOr("class", ""))
		if lang == "" {
			if parent := sel.Parent(); parent != nil {
				lang = languageFromClass(parent.AttrOr("class", ""))
			}
		}
		code := sel.Text()
		if strings.TrimSpace(code) == "" {
			return
		}
		subs, _, _ := w.code.ChunkCode(ctx, []byte(code), lang, relPath)
		for _, c := range subs {
			c.ChunkIndex = idx
			idx++
			out = append(out, c)
		}
		// Remove so prose extraction below doesn't duplicate code text.
		sel.Remove()
	})

	prose := strings.TrimSpace(doc.Text())
	for _, c := range splitParagraphs(relPath, prose, "prose", w.opts) {
		c.ChunkIndex = idx
		idx++
		out = append(out, c)
	}

	return out, nil
}

func languageFromClass(class string) string {
	for _, c := range strings.Fields(class) {
		if strings.HasPrefix(c, "language-") {
			return strings.TrimPrefix(c, "language-")
		}
		if strings.HasPrefix(c, "lang-") {
			return strings.TrimPrefix(c, "lang-")
		}
	}
	return ""
}
