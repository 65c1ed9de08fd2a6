package chunk

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeContentReplacesInvalidUTF8Bytes(t *testing.T) {
	// "\xed\xa0\x80" is a raw WTF-8 encoding of the lone high surrogate
	// U+D800 — genuinely malformed UTF-8, unlike string([]rune{...}), which
	// the Go runtime would already have rewritten to U+FFFD before this
	// function ever saw it.
	s := "a\xed\xa0\x80b"
	require.False(t, utf8.ValidString(s), "fixture must be invalid UTF-8 for this test to mean anything")

	out := SanitizeContent(s)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, "a���b", out)
}

func TestSanitizeContentNoopWhenClean(t *testing.T) {
	s := "clean content, no surrogates"
	assert.Equal(t, s, SanitizeContent(s))
}

func TestSplitCharsPreservesLineNumbers(t *testing.T) {
	content := strings.Repeat("line\n", 500)
	chunks := splitChars("f.txt", content, "text", Options{CharTarget: 100, CharOverlap: 10})
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.GreaterOrEqual(t, c.StartLine, 1, "chunk %d", i)
		assert.GreaterOrEqual(t, c.EndLine, c.StartLine, "chunk %d", i)
	}
	// monotonic, non-decreasing starts across the file
	for i := 1; i < len(chunks); i++ {
		assert.GreaterOrEqual(t, chunks[i].StartLine, chunks[i-1].StartLine)
	}
}

func TestChunkCodeGoAST(t *testing.T) {
	src := []byte(`package main

func Foo() int {
	return 1
}

func Bar() int {
	return 2
}
`)
	c := NewCodeChunker(Options{})
	chunks, _, err := c.ChunkCode(context.Background(), src, "", "main.go")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Foo", chunks[0].Symbol.Name)
	assert.Equal(t, "Bar", chunks[1].Symbol.Name)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, 1, chunks[1].ChunkIndex)
}

func TestChunkCodeFallsBackForUnknownLanguage(t *testing.T) {
	c := NewCodeChunker(Options{CharTarget: 50, CharOverlap: 5})
	src := []byte(strings.Repeat("x", 500))
	chunks, _, err := c.ChunkCode(context.Background(), src, "", "notes.cobol")
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
}

func TestChunkCodeWarnsOnSoftCap(t *testing.T) {
	c := NewCodeChunker(Options{CharTarget: 10, CharOverlap: 1})
	src := []byte(strings.Repeat("y", 10_000))
	_, warn, err := c.ChunkCode(context.Background(), src, "", "big.txt")
	require.NoError(t, err)
	assert.NotEmpty(t, warn)
}

func TestChunkWebSeparatesCodeAndProse(t *testing.T) {
	html := `<html><body>
<p>Some introduction text about the API.</p>
<pre><code class="language-go">func Foo() {}</code></pre>
<p>More prose after the snippet.</p>
</body></html>`
	wc := NewWebChunker(NewCodeChunker(Options{}), Options{})
	chunks, err := wc.ChunkWeb(context.Background(), html, "/docs/page")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	var sawGo bool
	for _, c := range chunks {
		if c.Language == "go" {
			sawGo = true
			assert.Contains(t, c.Content, "func Foo")
		}
	}
	assert.True(t, sawGo, "expected a go-tagged code chunk")
}
