package languages

import (
	"github.com/cklxx/codectx/internal/chunker"

	"github.com/smacker/go-tree-sitter/golang"
)

func RegisterGo(r *chunker.Registry) {
	r.Register("go", &chunker.LanguageSpec{
		Language: golang.GetLanguage(),
		Query: `
			(function_declaration name: (identifier) @name) @chunk
			(method_declaration name: (field_identifier) @name) @chunk
			(type_declaration (type_spec name: (type_identifier) @name)) @chunk
		`,
		ImportQuery: `
			(import_spec path: (interpreted_string_literal) @import)
		`,
		Extensions: []string{"go"},
		Doc:        chunker.LeadingComments,
	})
}
