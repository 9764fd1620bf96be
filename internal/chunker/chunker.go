package chunker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/cklxx/codectx/internal/lang"
)

const maxChunkBytes = 8192

// OutcomeKind says how a file was chunked.
type OutcomeKind string

const (
	// OutcomeStructured means tree-sitter extracted definition chunks.
	OutcomeStructured OutcomeKind = "structured"
	// OutcomeFallback means fixed-size line windows were used.
	OutcomeFallback OutcomeKind = "fallback"
	// OutcomeBinary means the file was recorded without content.
	OutcomeBinary OutcomeKind = "binary"
	// OutcomeUnreadable means the content could not be decoded as text.
	OutcomeUnreadable OutcomeKind = "unreadable"
)

// Chunk kinds.
const (
	KindFunction = "function"
	KindClass    = "class"
	KindBlock    = "block"
)

// Chunk is a retrievable unit of a source file.
type Chunk struct {
	Kind      string
	Name      string
	StartLine int
	EndLine   int
	Doc       string
	Content   string
}

// Outcome is the full result of chunking one file.
type Outcome struct {
	Kind     OutcomeKind
	Language string
	Chunks   []Chunk
	Imports  []string
	Exports  []string
}

// Chunker parses source files using tree-sitter and extracts semantic chunks,
// falling back to line windows when structure cannot be recovered.
type Chunker struct {
	registry *Registry
}

// New creates a chunker backed by the given registry.
func New(r *Registry) *Chunker {
	return &Chunker{registry: r}
}

var errSyntax = errors.New("syntax errors in parse tree")

// Chunk classifies and splits one file. It never fails: files that cannot be
// parsed structurally degrade to fallback windows, and files that cannot be
// decoded at all come back as OutcomeUnreadable with no chunks.
func (c *Chunker) Chunk(path string, raw []byte) Outcome {
	language := lang.Detect(path)
	if language == lang.Binary {
		return Outcome{Kind: OutcomeBinary, Language: language}
	}
	text, ok := decode(raw)
	if !ok {
		return Outcome{Kind: OutcomeUnreadable, Language: language}
	}

	spec, specLang := c.registry.Lookup(path)
	if spec == nil {
		return Outcome{Kind: OutcomeFallback, Language: language, Chunks: fallbackChunks(text)}
	}

	out, err := c.structured(spec, text)
	if err != nil || len(out.Chunks) == 0 {
		return Outcome{Kind: OutcomeFallback, Language: specLang, Chunks: fallbackChunks(text)}
	}
	out.Kind = OutcomeStructured
	out.Language = specLang
	return out
}

func (c *Chunker) structured(spec *LanguageSpec, text string) (Outcome, error) {
	src := []byte(text)
	parser := sitter.NewParser()
	parser.SetLanguage(spec.Language)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return Outcome{}, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return Outcome{}, errSyntax
	}

	q, err := sitter.NewQuery([]byte(spec.Query), spec.Language)
	if err != nil {
		return Outcome{}, fmt.Errorf("compile query: %w", err)
	}
	defer q.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, root)

	var captures []capture
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		var chunkNode *sitter.Node
		var nameStr string
		for _, cap := range m.Captures {
			switch q.CaptureNameForId(cap.Index) {
			case "chunk":
				chunkNode = cap.Node
			case "name":
				nameStr = cap.Node.Content(src)
			}
		}
		if chunkNode == nil {
			continue
		}
		captures = append(captures, capture{
			node:      chunkNode,
			name:      nameStr,
			startLine: int(chunkNode.StartPoint().Row) + 1,
			endLine:   int(chunkNode.EndPoint().Row) + 1,
			startByte: chunkNode.StartByte(),
			endByte:   chunkNode.EndByte(),
		})
	}

	// When captures overlap, keep only the outer (larger) node.
	captures = dedup(captures)

	var out Outcome
	for _, cap := range captures {
		kind := kindOf(innerDefinition(cap.node).Type())
		doc := ""
		if spec.Doc != nil {
			doc = spec.Doc(cap.node, src)
		}
		if cap.name != "" && isTopLevel(cap.node, root) {
			out.Exports = append(out.Exports, cap.name)
		}

		content := text[cap.startByte:cap.endByte]
		if len(content) > maxChunkBytes {
			out.Chunks = append(out.Chunks, splitOversized(content, cap.name, kind, doc, cap.startLine)...)
		} else {
			out.Chunks = append(out.Chunks, Chunk{
				Kind:      kind,
				Name:      cap.name,
				StartLine: cap.startLine,
				EndLine:   cap.endLine,
				Doc:       doc,
				Content:   content,
			})
		}
	}

	out.Imports = extractImports(spec, root, src)
	out.Exports = dedupStrings(out.Exports)
	return out, nil
}

// extractImports runs the language's import query and returns the unquoted
// import targets in source order, deduplicated.
func extractImports(spec *LanguageSpec, root *sitter.Node, src []byte) []string {
	if spec.ImportQuery == "" {
		return nil
	}
	q, err := sitter.NewQuery([]byte(spec.ImportQuery), spec.Language)
	if err != nil {
		return nil
	}
	defer q.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, root)

	var imports []string
	seen := make(map[string]bool)
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, cap := range m.Captures {
			if q.CaptureNameForId(cap.Index) != "import" {
				continue
			}
			target := strings.Trim(cap.Node.Content(src), "\"'`")
			if target == "" || seen[target] {
				continue
			}
			seen[target] = true
			imports = append(imports, target)
		}
	}
	return imports
}

// innerDefinition unwraps decorator and export wrappers down to the
// definition node they contain.
func innerDefinition(n *sitter.Node) *sitter.Node {
	switch n.Type() {
	case "decorated_definition":
		if d := n.ChildByFieldName("definition"); d != nil {
			return d
		}
	case "export_statement":
		if d := n.ChildByFieldName("declaration"); d != nil {
			return d
		}
	}
	return n
}

func kindOf(nodeType string) string {
	switch nodeType {
	case "class_definition", "class_declaration", "interface_declaration",
		"type_alias_declaration", "type_declaration":
		return KindClass
	default:
		return KindFunction
	}
}

// isTopLevel reports whether the node's parent is the file root. The root is
// the only node whose span covers the entire parsed source among parents.
func isTopLevel(n, root *sitter.Node) bool {
	p := n.Parent()
	return p != nil && p.StartByte() == root.StartByte() && p.EndByte() == root.EndByte() && p.Type() == root.Type()
}

// dedup drops captures nested inside an earlier, wider capture, keeping the
// outermost definition when queries match both a wrapper and its body.
func dedup(caps []capture) []capture {
	if len(caps) <= 1 {
		return caps
	}
	// Widest capture first among those sharing a start byte.
	sort.Slice(caps, func(i, j int) bool {
		if caps[i].startByte != caps[j].startByte {
			return caps[i].startByte < caps[j].startByte
		}
		return (caps[i].endByte - caps[i].startByte) > (caps[j].endByte - caps[j].startByte)
	})

	var result []capture
	var lastEnd uint32
	for _, c := range caps {
		if c.startByte >= lastEnd || lastEnd == 0 {
			result = append(result, c)
			if c.endByte > lastEnd {
				lastEnd = c.endByte
			}
		}
	}
	return result
}

// splitOversized cuts a definition larger than maxChunkBytes into overlapping
// line windows. The doc rides on the first piece.
func splitOversized(content, name, kind, doc string, baseStartLine int) []Chunk {
	lines := strings.Split(content, "\n")
	const windowSize = 40
	const overlap = 10

	var chunks []Chunk
	for i := 0; i < len(lines); {
		end := i + windowSize
		if end > len(lines) {
			end = len(lines)
		}
		ch := Chunk{
			Name:      name,
			Kind:      kind,
			StartLine: baseStartLine + i,
			EndLine:   baseStartLine + end - 1,
			Content:   strings.Join(lines[i:end], "\n"),
		}
		if len(chunks) == 0 {
			ch.Doc = doc
		}
		chunks = append(chunks, ch)
		if end >= len(lines) {
			break
		}
		i += windowSize - overlap
	}
	return chunks
}

func dedupStrings(in []string) []string {
	if len(in) <= 1 {
		return in
	}
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

type capture struct {
	node      *sitter.Node
	name      string
	startLine int
	endLine   int
	startByte uint32
	endByte   uint32
}
