package languages

import (
	"github.com/cklxx/codectx/internal/chunker"

	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

const typescriptQuery = `
	(function_declaration name: (identifier) @name) @chunk
	(class_declaration name: (type_identifier) @name) @chunk
	(method_definition name: (property_identifier) @name) @chunk
	(export_statement (function_declaration name: (identifier) @name)) @chunk
	(export_statement (class_declaration name: (type_identifier) @name)) @chunk
	(lexical_declaration (variable_declarator name: (identifier) @name value: (arrow_function))) @chunk
	(interface_declaration name: (type_identifier) @name) @chunk
	(type_alias_declaration name: (type_identifier) @name) @chunk
`

const typescriptImportQuery = `
	(import_statement source: (string) @import)
`

// RegisterTypeScript registers .ts under the typescript grammar and .tsx
// under the tsx grammar. The grammars differ on JSX, the queries do not.
func RegisterTypeScript(r *chunker.Registry) {
	r.Register("typescript", &chunker.LanguageSpec{
		Language:    typescript.GetLanguage(),
		Query:       typescriptQuery,
		ImportQuery: typescriptImportQuery,
		Extensions:  []string{"ts"},
		Doc:         chunker.LeadingComments,
	})
	r.Register("typescript", &chunker.LanguageSpec{
		Language:    tsx.GetLanguage(),
		Query:       typescriptQuery,
		ImportQuery: typescriptImportQuery,
		Extensions:  []string{"tsx"},
		Doc:         chunker.LeadingComments,
	})
}
