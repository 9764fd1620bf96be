package chunker

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

const maxDocBytes = 300

// PythonDocstring extracts the docstring of a function or class definition:
// the first statement of the body when it is a bare string literal.
func PythonDocstring(n *sitter.Node, src []byte) string {
	def := innerDefinition(n)
	body := def.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first == nil || first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str == nil || str.Type() != "string" {
		return ""
	}
	return summarize(stripStringQuotes(str.Content(src)))
}

// LeadingComments collects the run of comment nodes immediately above a
// definition, stopping at the first gap or non-comment sibling.
func LeadingComments(n *sitter.Node, src []byte) string {
	var parts []string
	row := n.StartPoint().Row
	for prev := n.PrevSibling(); prev != nil; prev = prev.PrevSibling() {
		if prev.Type() != "comment" || prev.EndPoint().Row+1 < row {
			break
		}
		parts = append(parts, cleanComment(prev.Content(src)))
		row = prev.StartPoint().Row
	}
	if len(parts) == 0 {
		return ""
	}
	// Collected bottom-up.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return summarize(strings.Join(parts, "\n"))
}

// summarize reduces doc text to its first paragraph, joined to one line.
func summarize(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if idx := strings.Index(text, "\n\n"); idx >= 0 {
		text = text[:idx]
	}
	fields := strings.Fields(text)
	out := strings.Join(fields, " ")
	if len(out) > maxDocBytes {
		out = out[:maxDocBytes]
	}
	return out
}

func stripStringQuotes(s string) string {
	s = strings.TrimLeft(s, "rRbBuUfF")
	for _, q := range []string{`"""`, "'''", `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}

func cleanComment(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "/*")
		line = strings.TrimSuffix(line, "*/")
		line = strings.TrimPrefix(line, "//")
		line = strings.TrimPrefix(line, "#")
		line = strings.TrimPrefix(line, "*")
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
