package chunker

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// LanguageSpec defines the tree-sitter grammar and queries for a language.
type LanguageSpec struct {
	Language *sitter.Language
	// Query is a tree-sitter S-expression query that captures definitions.
	// It must use @chunk for the outer node and @name for the identifier
	// (optional).
	Query string
	// ImportQuery captures file-scope import targets as @import. Empty means
	// the language records no imports.
	ImportQuery string
	Extensions  []string
	// Doc extracts a documentation string for a captured definition node.
	// Nil means no doc extraction for the language.
	Doc func(n *sitter.Node, src []byte) string

	name string
}

// Registry resolves file extensions to registered language specs.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]*LanguageSpec // keyed by extension, without dot
}

// NewRegistry creates a registry with no languages registered.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]*LanguageSpec)}
}

// Register adds a language spec under the given name. A language may be
// registered more than once when dialects need different grammars.
func (r *Registry) Register(name string, spec *LanguageSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	spec.name = name
	for _, ext := range spec.Extensions {
		r.specs[ext] = spec
	}
}

// Lookup resolves a file path by extension to its spec and language name.
// Unregistered extensions return a nil spec.
func (r *Registry) Lookup(path string) (spec *LanguageSpec, lang string) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[ext]
	if !ok {
		return nil, ""
	}
	return s, s.name
}

