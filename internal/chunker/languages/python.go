package languages

import (
	"github.com/cklxx/codectx/internal/chunker"

	"github.com/smacker/go-tree-sitter/python"
)

func RegisterPython(r *chunker.Registry) {
	r.Register("python", &chunker.LanguageSpec{
		Language: python.GetLanguage(),
		Query: `
			(function_definition name: (identifier) @name) @chunk
			(class_definition name: (identifier) @name) @chunk
			(decorated_definition definition: (function_definition name: (identifier) @name)) @chunk
			(decorated_definition definition: (class_definition name: (identifier) @name)) @chunk
		`,
		ImportQuery: `
			(import_statement name: (dotted_name) @import)
			(import_statement name: (aliased_import name: (dotted_name) @import))
			(import_from_statement module_name: (dotted_name) @import)
			(import_from_statement module_name: (relative_import) @import)
		`,
		Extensions: []string{"py", "pyi"},
		Doc:        chunker.PythonDocstring,
	})
}
