package store

import "time"

// Symbol kinds recorded in file_symbols.
const (
	SymbolImport = "import"
	SymbolExport = "export"
)

// FileRecord is one tracked file in the index.
type FileRecord struct {
	ID         int64
	Path       string
	Language   string
	SizeBytes  int64
	ModifiedAt int64
	Hash       string
	Outcome    string
	IndexedAt  time.Time
}

// Chunk represents a retrievable unit extracted from a source file. FilePath
// and Language are denormalized from the owning file on reads.
type Chunk struct {
	ID        int64
	FileID    int64
	FilePath  string
	Language  string
	Kind      string
	Name      string
	StartLine int
	EndLine   int
	Doc       string
	Content   string
	Hash      string
}

// FileInfo is a file record together with its symbols and chunk count.
type FileInfo struct {
	FileRecord
	Imports    []string
	Exports    []string
	ChunkCount int
}

// RelatedFile is a file sharing import/export symbols with another.
type RelatedFile struct {
	Path          string
	SharedSymbols int
}

// Statistics summarizes the indexed corpus.
type Statistics struct {
	TotalFiles      int
	TotalChunks     int
	FilesByLanguage map[string]int
	ChunksByType    map[string]int
}
