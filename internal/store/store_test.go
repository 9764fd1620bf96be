package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func pyFile(path string) FileRecord {
	return FileRecord{
		Path:       path,
		Language:   "python",
		SizeBytes:  120,
		ModifiedAt: 1700000000,
		Hash:       HashBytes([]byte(path + "-v1")),
		Outcome:    "structured",
	}
}

func TestOpenCreatesParentDirs(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "nested", "data", "index.db"))
	require.NoError(t, err)
	defer s.Close()

	assert.FileExists(t, filepath.Join(dir, "nested", "data", "index.db"))
}

func TestGetFileHash(t *testing.T) {
	s := newTestStore(t)

	hash, err := s.GetFileHash("missing.py")
	require.NoError(t, err)
	assert.Empty(t, hash)

	f := pyFile("app.py")
	_, err = s.ReplaceFile(f, nil, nil, nil)
	require.NoError(t, err)

	hash, err = s.GetFileHash("app.py")
	require.NoError(t, err)
	assert.Equal(t, f.Hash, hash)
}

func TestReplaceFileSwapsChunkSet(t *testing.T) {
	s := newTestStore(t)

	id1, err := s.ReplaceFile(pyFile("app.py"), []Chunk{
		{Kind: "function", Name: "old_one", StartLine: 1, EndLine: 5, Content: "def old_one(): pass"},
		{Kind: "function", Name: "old_two", StartLine: 7, EndLine: 9, Content: "def old_two(): pass"},
	}, []string{"os"}, []string{"old_one", "old_two"})
	require.NoError(t, err)

	f2 := pyFile("app.py")
	f2.Hash = HashBytes([]byte("app.py-v2"))
	id2, err := s.ReplaceFile(f2, []Chunk{
		{Kind: "function", Name: "fresh", StartLine: 1, EndLine: 4, Content: "def fresh(): pass"},
	}, []string{"sys"}, []string{"fresh"})
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "replacing keeps the file id stable")

	info, err := s.GetFileInfo("app.py")
	require.NoError(t, err)
	assert.Equal(t, 1, info.ChunkCount)
	assert.Equal(t, f2.Hash, info.Hash)
	assert.Equal(t, []string{"sys"}, info.Imports)
	assert.Equal(t, []string{"fresh"}, info.Exports)

	gone, err := s.ChunksByName("old_one", "function")
	require.NoError(t, err)
	assert.Empty(t, gone, "no chunk from the previous version may survive")

	fresh, err := s.ChunksByName("fresh", "function")
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "app.py", fresh[0].FilePath)
	assert.Equal(t, "python", fresh[0].Language)
}

func TestReplaceFileComputesChunkHash(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ReplaceFile(pyFile("a.py"), []Chunk{
		{Kind: "function", Name: "f", StartLine: 1, EndLine: 1, Content: "def f(): pass"},
	}, nil, nil)
	require.NoError(t, err)

	chunks, err := s.ChunksByName("f", "function")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, HashBytes([]byte("def f(): pass")), chunks[0].Hash)
}

func TestDeleteFileCascades(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ReplaceFile(pyFile("b.py"), []Chunk{
		{Kind: "class", Name: "Bar", StartLine: 1, EndLine: 3, Content: "class Bar: pass"},
	}, []string{"os"}, []string{"Bar"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteFile("b.py"))

	_, err = s.GetFileInfo("b.py")
	assert.ErrorIs(t, err, ErrNotFound)

	chunks, err := s.ChunksByName("Bar", "class")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	stats, err := s.GetStatistics()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalChunks)
}

func TestListPaths(t *testing.T) {
	s := newTestStore(t)
	for _, p := range []string{"z.py", "a.py", "m/mid.py"} {
		_, err := s.ReplaceFile(pyFile(p), nil, nil, nil)
		require.NoError(t, err)
	}
	paths, err := s.ListPaths()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py", "m/mid.py", "z.py"}, paths)
}

func TestGetFileInfoNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetFileInfo("ghost.py")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChunksByNameScopedToKind(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ReplaceFile(pyFile("dual.py"), []Chunk{
		{Kind: "function", Name: "Thing", StartLine: 1, EndLine: 2, Content: "def Thing(): pass"},
		{Kind: "class", Name: "Thing", StartLine: 4, EndLine: 6, Content: "class Thing: pass"},
	}, nil, nil)
	require.NoError(t, err)

	fns, err := s.ChunksByName("Thing", "function")
	require.NoError(t, err)
	require.Len(t, fns, 1)
	assert.Equal(t, "function", fns[0].Kind)

	classes, err := s.ChunksByName("Thing", "class")
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "class", classes[0].Kind)
}

func TestChunksByIDsPreservesOrder(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ReplaceFile(pyFile("c.py"), []Chunk{
		{Kind: "function", Name: "one", StartLine: 1, EndLine: 1, Content: "def one(): pass"},
		{Kind: "function", Name: "two", StartLine: 3, EndLine: 3, Content: "def two(): pass"},
		{Kind: "function", Name: "three", StartLine: 5, EndLine: 5, Content: "def three(): pass"},
	}, nil, nil)
	require.NoError(t, err)

	all, err := s.AllChunks()
	require.NoError(t, err)
	require.Len(t, all, 3)

	want := []int64{all[2].ID, all[0].ID}
	got, err := s.ChunksByIDs(append(want, 99999))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "three", got[0].Name)
	assert.Equal(t, "one", got[1].Name)

	empty, err := s.ChunksByIDs(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRelatedFiles(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ReplaceFile(pyFile("app.py"), nil, []string{"db", "auth"}, []string{"main"})
	require.NoError(t, err)
	_, err = s.ReplaceFile(pyFile("db.py"), nil, []string{"auth"}, []string{"db", "connect"})
	require.NoError(t, err)
	_, err = s.ReplaceFile(pyFile("auth.py"), nil, nil, []string{"auth"})
	require.NoError(t, err)
	_, err = s.ReplaceFile(pyFile("lonely.py"), nil, []string{"json"}, nil)
	require.NoError(t, err)

	related, err := s.RelatedFiles("app.py", 10)
	require.NoError(t, err)
	require.Len(t, related, 2)

	// db.py shares both "db" (its export, app's import) and "auth".
	assert.Equal(t, "db.py", related[0].Path)
	assert.Equal(t, 2, related[0].SharedSymbols)
	assert.Equal(t, "auth.py", related[1].Path)
	assert.Equal(t, 1, related[1].SharedSymbols)
}

func TestGetStatistics(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ReplaceFile(pyFile("a.py"), []Chunk{
		{Kind: "function", Name: "f", StartLine: 1, EndLine: 1, Content: "x"},
		{Kind: "class", Name: "C", StartLine: 3, EndLine: 5, Content: "y"},
	}, nil, nil)
	require.NoError(t, err)

	goFile := pyFile("b.go")
	goFile.Language = "go"
	_, err = s.ReplaceFile(goFile, []Chunk{
		{Kind: "function", Name: "G", StartLine: 1, EndLine: 2, Content: "z"},
	}, nil, nil)
	require.NoError(t, err)

	stats, err := s.GetStatistics()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalFiles)
	assert.Equal(t, 3, stats.TotalChunks)
	assert.Equal(t, map[string]int{"python": 1, "go": 1}, stats.FilesByLanguage)
	assert.Equal(t, map[string]int{"function": 2, "class": 1}, stats.ChunksByType)
}

func TestGeneration(t *testing.T) {
	s := newTestStore(t)

	gen, err := s.Generation()
	require.NoError(t, err)
	assert.EqualValues(t, 0, gen)

	gen, err = s.BumpGeneration()
	require.NoError(t, err)
	assert.EqualValues(t, 1, gen)

	gen, err = s.BumpGeneration()
	require.NoError(t, err)
	assert.EqualValues(t, 2, gen)

	gen, err = s.Generation()
	require.NoError(t, err)
	assert.EqualValues(t, 2, gen)
}

func TestMeta(t *testing.T) {
	s := newTestStore(t)

	v, err := s.GetMeta("missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetMeta("k", "v1"))
	require.NoError(t, s.SetMeta("k", "v2"))

	v, err = s.GetMeta("k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}
