package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cklxx/codectx/internal/chunker"
	"github.com/cklxx/codectx/internal/chunker/languages"
	"github.com/cklxx/codectx/internal/classify"
	"github.com/cklxx/codectx/internal/config"
	"github.com/cklxx/codectx/internal/store"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func newTestIndexer(t *testing.T, repo string, oracle classify.Oracle) (*Indexer, *store.Store) {
	t.Helper()
	cfg := config.Default()
	cfg.Repo = repo
	require.NoError(t, cfg.Resolve())

	st, err := store.Open(cfg.DBPath())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := chunker.NewRegistry()
	languages.RegisterPython(reg)
	languages.RegisterGo(reg)

	return New(cfg, st, chunker.New(reg), oracle, zap.NewNop()), st
}

func seedToyRepo(t *testing.T) string {
	t.Helper()
	repo := t.TempDir()
	writeFile(t, repo, "a.py", "def foo():\n    return 1\n")
	writeFile(t, repo, "b.py", "class Bar:\n    def method(self):\n        return 2\n")
	writeFile(t, repo, "docs/guide.md", "# Guide\n\nHow to run the thing.\n")
	return repo
}

func TestRunIndexesToyRepo(t *testing.T) {
	repo := seedToyRepo(t)
	ix, st := newTestIndexer(t, repo, nil)

	stats, err := ix.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalFiles)
	assert.Equal(t, 3, stats.Indexed)
	assert.Zero(t, stats.SkippedUnchanged)
	assert.Zero(t, stats.Failed)
	assert.Zero(t, stats.Deleted)
	assert.NotEmpty(t, stats.RunID)

	foo, err := st.ChunksByName("foo", "function")
	require.NoError(t, err)
	require.Len(t, foo, 1)
	assert.Equal(t, "a.py", foo[0].FilePath)

	bar, err := st.ChunksByName("Bar", "class")
	require.NoError(t, err)
	require.Len(t, bar, 1)

	info, err := st.GetFileInfo("a.py")
	require.NoError(t, err)
	assert.Equal(t, "python", info.Language)
	assert.Equal(t, "structured", info.Outcome)

	gen, err := st.Generation()
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
}

func TestRunIsIdempotent(t *testing.T) {
	repo := seedToyRepo(t)
	ix, st := newTestIndexer(t, repo, nil)

	_, err := ix.Run(context.Background())
	require.NoError(t, err)

	stats, err := ix.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Indexed, "an unchanged tree must index nothing")
	assert.Equal(t, 3, stats.SkippedUnchanged)
	assert.Zero(t, stats.Deleted)

	gen, err := st.Generation()
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen, "generation must not move on a no-op run")
}

func TestRunReindexesOnlyChangedFile(t *testing.T) {
	repo := seedToyRepo(t)
	ix, _ := newTestIndexer(t, repo, nil)

	_, err := ix.Run(context.Background())
	require.NoError(t, err)

	writeFile(t, repo, "a.py", "def foo():\n    return 2\n")

	stats, err := ix.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, 2, stats.SkippedUnchanged)
}

func TestRunDeletesRemovedFiles(t *testing.T) {
	repo := seedToyRepo(t)
	ix, st := newTestIndexer(t, repo, nil)

	_, err := ix.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(repo, "b.py")))

	stats, err := ix.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Deleted)

	bar, err := st.ChunksByName("Bar", "class")
	require.NoError(t, err)
	assert.Empty(t, bar, "chunks of a deleted file must disappear with it")

	gen, err := st.Generation()
	require.NoError(t, err)
	assert.Equal(t, int64(2), gen, "a deletion must move the generation")
}

func TestRunHonorsIgnoreRules(t *testing.T) {
	repo := seedToyRepo(t)
	writeFile(t, repo, ".gitignore", "*.log\n!important.log\n")
	writeFile(t, repo, "debug.log", "noise noise noise\n")
	writeFile(t, repo, "important.log", "keep me around\n")
	ix, st := newTestIndexer(t, repo, nil)

	_, err := ix.Run(context.Background())
	require.NoError(t, err)

	paths, err := st.ListPaths()
	require.NoError(t, err)
	assert.Contains(t, paths, "important.log", "a negated pattern must win over an earlier exclusion")
	assert.NotContains(t, paths, "debug.log")
}

func TestRunPrunesExcludedDirs(t *testing.T) {
	repo := t.TempDir()
	writeFile(t, repo, "src/app.py", "def main():\n    pass\n")
	writeFile(t, repo, "node_modules/lib/index.js", "module.exports = {}\n")
	writeFile(t, repo, "venv/lib/helper.py", "def helper():\n    pass\n")
	ix, st := newTestIndexer(t, repo, nil)

	stats, err := ix.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalFiles, "pruned directories never become candidates")

	paths, err := st.ListPaths()
	require.NoError(t, err)
	assert.Equal(t, []string{"src/app.py"}, paths)
}

func TestRunNeverIndexesOwnDataDir(t *testing.T) {
	repo := seedToyRepo(t)
	ix, st := newTestIndexer(t, repo, nil)

	_, err := ix.Run(context.Background())
	require.NoError(t, err)

	paths, err := st.ListPaths()
	require.NoError(t, err)
	for _, p := range paths {
		assert.NotContains(t, p, ".codectx")
	}
}

func TestRunCountsExcludedFiles(t *testing.T) {
	repo := t.TempDir()
	writeFile(t, repo, "app.py", "def main():\n    pass\n")
	writeFile(t, repo, "package-lock.json", "{}\n")
	writeFile(t, repo, "static/app.min.js", "var a=1;\n")
	ix, st := newTestIndexer(t, repo, nil)

	stats, err := ix.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Classification.Excluded)
	assert.Equal(t, 2, stats.Classification.ExcludedByCategory[classify.CategoryGenerated])

	paths, err := st.ListPaths()
	require.NoError(t, err)
	assert.Equal(t, []string{"app.py"}, paths)
}

type fakeOracle struct {
	verdicts []classify.Verdict
}

func (f *fakeOracle) Review(ctx context.Context, candidates []classify.Classification, taskContext string) ([]classify.Verdict, error) {
	return f.verdicts, nil
}

func TestRunOracleDowngradesCandidates(t *testing.T) {
	repo := t.TempDir()
	writeFile(t, repo, "app.py", "def main():\n    pass\n")
	writeFile(t, repo, "docs/notes.md", "scratch notes, nothing durable\n")
	oracle := &fakeOracle{verdicts: []classify.Verdict{
		{Path: "docs/notes.md", Relevance: classify.Low, Reason: "scratch notes"},
	}}
	ix, st := newTestIndexer(t, repo, oracle)

	stats, err := ix.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Classification.Low)

	paths, err := st.ListPaths()
	require.NoError(t, err)
	assert.Equal(t, []string{"app.py"}, paths, "an oracle downgrade to low must keep the file out of the index")
}

func TestRunBinaryFileGetsZeroChunkRecord(t *testing.T) {
	repo := t.TempDir()
	writeFile(t, repo, "logo.png", string([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x01}))
	ix, st := newTestIndexer(t, repo, nil)

	_, err := ix.Run(context.Background())
	require.NoError(t, err)

	info, err := st.GetFileInfo("logo.png")
	require.NoError(t, err)
	assert.Equal(t, "binary", info.Outcome)
	assert.Zero(t, info.ChunkCount)
}

func TestRunRecordsRunMeta(t *testing.T) {
	repo := seedToyRepo(t)
	ix, st := newTestIndexer(t, repo, nil)

	stats, err := ix.Run(context.Background())
	require.NoError(t, err)

	runID, err := st.GetMeta(store.MetaLastRunID)
	require.NoError(t, err)
	assert.Equal(t, stats.RunID, runID)

	runAt, err := st.GetMeta(store.MetaLastRunAt)
	require.NoError(t, err)
	_, err = time.Parse(time.RFC3339, runAt)
	assert.NoError(t, err)
}
