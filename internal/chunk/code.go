package chunk

import (
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/seanblong/reposearch/pkg/models"
)

// CodeChunker produces AST-aware chunks for registered languages and falls
// back to the character splitter otherwise (spec §4.3).
type CodeChunker struct {
	registry *LanguageRegistry
	opts     Options
}

// NewCodeChunker creates a chunker with the default language registry.
func NewCodeChunker(opts Options) *CodeChunker {
	return &CodeChunker{registry: DefaultRegistry(), opts: opts.withDefaults()}
}

// ChunkCode splits source into ordered chunks. languageHint overrides the
// extension-derived language when non-empty. The soft-cap warnings (50
// chunks / 100KB) are returned via the warn return value rather than
// logged directly, so callers can attach file/path context.
func (c *CodeChunker) ChunkCode(ctx context.Context, source []byte, languageHint, relPath string) (chunks []Chunk, warn string, err error) {
	content := SanitizeContent(string(source))
	ext := filepath.Ext(relPath)
	langName, cfg, ok := c.registry.Lookup(ext, languageHint)

	if !ok {
		chunks = splitChars(relPath, content, fallbackLanguageName(languageHint, ext), c.opts)
	} else {
		chunks, err = c.chunkAST(ctx, relPath, content, langName, cfg)
		if err != nil {
			// AST parse failed: fall back rather than failing the file.
			chunks = splitChars(relPath, content, langName, c.opts)
			err = nil
		}
	}

	if len(chunks) > SoftChunkWarnCount || len(content) > SoftSourceWarnSize {
		warn = "large file: chunk count or source size exceeds soft cap"
	}
	return chunks, warn, nil
}

func fallbackLanguageName(hint, ext string) string {
	if hint != "" {
		return hint
	}
	return strings.TrimPrefix(ext, ".")
}

func (c *CodeChunker) chunkAST(ctx context.Context, relPath, content, langName string, cfg topLevelConfig) ([]Chunk, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(cfg.language)

	tree, err := parser.ParseCtx(ctx, nil, []byte(content))
	if err != nil || tree == nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	lineStarts := computeLineStarts(content)

	var boundaries []*sitter.Node
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if isBoundary(child, cfg.nodeTypes) {
			boundaries = append(boundaries, child)
		}
	}

	if len(boundaries) == 0 {
		return splitChars(relPath, content, langName, c.opts), nil
	}

	var out []Chunk
	for i, node := range boundaries {
		startByte, endByte := int(node.StartByte()), int(node.EndByte())
		if startByte >= len(content) || endByte > len(content) || startByte >= endByte {
			continue
		}
		text := content[startByte:endByte]
		startLine := lineForOffset(lineStarts, startByte)
		endLine := lineForOffset(lineStarts, endByte-1)

		sym := symbolFor(node, cfg, content)

		if len(text) <= c.opts.CharTarget*4 {
			out = append(out, Chunk{
				Content:      text,
				RelativePath: relPath,
				StartLine:    startLine,
				EndLine:      endLine,
				ChunkIndex:   i,
				Language:     langName,
				Symbol:       sym,
			})
			continue
		}

		// Oversized symbol: fall back to character splitting within its span,
		// preserving the symbol tag on every sub-chunk.
		for _, sub := range splitChars(relPath, text, langName, c.opts) {
			sub.StartLine += startLine - 1
			sub.EndLine += startLine - 1
			sub.ChunkIndex = len(out)
			sub.Symbol = sym
			out = append(out, sub)
		}
	}
	return out, nil
}

func isBoundary(n *sitter.Node, types []string) bool {
	if n == nil {
		return false
	}
	for _, t := range types {
		if n.Type() == t {
			return true
		}
	}
	return false
}

func symbolFor(n *sitter.Node, cfg topLevelConfig, content string) *models.Symbol {
	nameNode := n.ChildByFieldName(cfg.nameField)
	if nameNode == nil {
		return &models.Symbol{Kind: n.Type()}
	}
	start, end := int(nameNode.StartByte()), int(nameNode.EndByte())
	if start >= len(content) || end > len(content) || start >= end {
		return &models.Symbol{Kind: n.Type()}
	}
	return &models.Symbol{Name: content[start:end], Kind: n.Type()}
}
