package chunk

import "strings"

// splitChars performs the character-based fallback splitter used both when
// a language has no AST grammar registered and for web-page prose (spec
// §4.3): target size and overlap are configurable, and line numbers in the
// output are exact offsets into the original content.
func splitChars(relPath, content, language string, opts Options) []Chunk {
	opts = opts.withDefaults()
	if content == "" {
		return nil
	}

	lineStarts := computeLineStarts(content)
	var out []Chunk
	start := 0
	idx := 0
	for start < len(content) {
		end := start + opts.CharTarget
		if end > len(content) {
			end = len(content)
		} else {
			// avoid splitting mid-line when a nearby newline is close by
			if nl := strings.IndexByte(content[end:minInt(end+64, len(content))], '\n'); nl >= 0 {
				end += nl
			}
		}

		out = append(out, Chunk{
			Content:      content[start:end],
			RelativePath: relPath,
			StartLine:    lineForOffset(lineStarts, start),
			EndLine:      lineForOffset(lineStarts, maxInt(end-1, start)),
			ChunkIndex:   idx,
			Language:     language,
		})
		idx++

		if end >= len(content) {
			break
		}
		next := end - opts.CharOverlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// splitParagraphs is the paragraph-aware variant used for web-page prose:
// it prefers to break on blank-line boundaries before falling back to the
// same target/overlap character logic.
func splitParagraphs(relPath, content, language string, opts Options) []Chunk {
	opts = opts.withDefaults()
	paragraphs := strings.Split(content, "\n\n")

	var b strings.Builder
	var out []Chunk
	lineOffset := 1
	flush := func(text string, startLine int) {
		if strings.TrimSpace(text) == "" {
			return
		}
		for _, c := range splitChars(relPath, text, language, opts) {
			c.StartLine += startLine - 1
			c.EndLine += startLine - 1
			c.ChunkIndex = len(out)
			out = append(out, c)
		}
	}

	groupStartLine := lineOffset
	for _, p := range paragraphs {
		if b.Len()+len(p) > opts.CharTarget && b.Len() > 0 {
			flush(b.String(), groupStartLine)
			groupStartLine = lineOffset
			b.Reset()
		}
		b.WriteString(p)
		b.WriteString("\n\n")
		lineOffset += strings.Count(p, "\n") + 2
	}
	flush(b.String(), groupStartLine)
	return out
}

func computeLineStarts(content string) []int {
	starts := []int{0}
	for i, c := range content {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineForOffset returns the 1-indexed line number containing byte offset.
func lineForOffset(lineStarts []int, offset int) int {
	lo, hi := 0, len(lineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if lineStarts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
