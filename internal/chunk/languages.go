package chunk

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// topLevelConfig names the node types a language's top-level declarations
// use, so the AST splitter can find chunk boundaries generically across
// languages instead of special-casing each grammar's shape.
type topLevelConfig struct {
	language   *sitter.Language
	extensions []string
	nodeTypes  []string // function/method/class/type boundaries
	nameField  string
}

// LanguageRegistry maps file extensions and language names to their
// tree-sitter grammar and symbol-boundary node types (spec §4.3 "AST-aware
// splitting by language").
type LanguageRegistry struct {
	mu        sync.RWMutex
	byName    map[string]topLevelConfig
	extToName map[string]string
}

// DefaultRegistry registers the grammars carried over from the teacher
// pack's tree-sitter usage: Go, Python, JavaScript and TypeScript. Any
// other language falls back to the character splitter (spec §4.3).
func DefaultRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		byName:    make(map[string]topLevelConfig),
		extToName: make(map[string]string),
	}
	r.register("go", topLevelConfig{
		language:   golang.GetLanguage(),
		extensions: []string{".go"},
		nodeTypes:  []string{"function_declaration", "method_declaration", "type_declaration"},
		nameField:  "name",
	})
	r.register("python", topLevelConfig{
		language:   python.GetLanguage(),
		extensions: []string{".py"},
		nodeTypes:  []string{"function_definition", "class_definition"},
		nameField:  "name",
	})
	r.register("javascript", topLevelConfig{
		language:   javascript.GetLanguage(),
		extensions: []string{".js", ".jsx", ".mjs"},
		nodeTypes:  []string{"function_declaration", "class_declaration", "method_definition"},
		nameField:  "name",
	})
	r.register("typescript", topLevelConfig{
		language:   typescript.GetLanguage(),
		extensions: []string{".ts"},
		nodeTypes:  []string{"function_declaration", "class_declaration", "method_definition", "interface_declaration"},
		nameField:  "name",
	})
	return r
}

func (r *LanguageRegistry) register(name string, cfg topLevelConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[name] = cfg
	for _, ext := range cfg.extensions {
		r.extToName[ext] = name
	}
}

// Lookup returns the config and language name for a file extension or
// explicit language hint. hint wins when non-empty and registered.
func (r *LanguageRegistry) Lookup(ext, hint string) (string, topLevelConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if hint != "" {
		if cfg, ok := r.byName[strings.ToLower(hint)]; ok {
			return strings.ToLower(hint), cfg, true
		}
	}
	name, ok := r.extToName[strings.ToLower(ext)]
	if !ok {
		return "", topLevelConfig{}, false
	}
	cfg := r.byName[name]
	return name, cfg, true
}
