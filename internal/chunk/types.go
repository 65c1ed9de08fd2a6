// Package chunk implements the Chunker (spec §4.3): AST-aware code
// splitting with a character-based fallback, and web-page splitting into
// fenced code blocks versus prose.
package chunk

import "github.com/seanblong/reposearch/pkg/models"

// Defaults for the character-based fallback splitter (spec §4.3, §6).
const (
	DefaultCharTarget  = 1000
	DefaultCharOverlap = 100

	// Soft per-file warning thresholds; there is no hard cap (spec §4.3).
	SoftChunkWarnCount = 50
	SoftSourceWarnSize = 100 * 1024
)

// Options tunes the chunker; zero values fall back to the package defaults.
type Options struct {
	CharTarget  int
	CharOverlap int
}

func (o Options) withDefaults() Options {
	if o.CharTarget <= 0 {
		o.CharTarget = DefaultCharTarget
	}
	if o.CharOverlap <= 0 {
		o.CharOverlap = DefaultCharOverlap
	}
	return o
}

// Chunk is one ordered piece of a source, prior to embedding or persistence.
type Chunk struct {
	Content      string
	RelativePath string
	StartLine    int
	EndLine      int
	ChunkIndex   int
	Language     string
	Symbol       *models.Symbol
}
