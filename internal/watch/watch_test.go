package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, repo string) <-chan struct{} {
	t.Helper()
	fired := make(chan struct{}, 16)
	w := New(repo, filepath.Join(repo, ".codectx"), 50*time.Millisecond, func(context.Context) {
		fired <- struct{}{}
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx))
	return fired
}

func awaitTrigger(t *testing.T, fired <-chan struct{}) {
	t.Helper()
	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher never fired")
	}
}

func assertQuiet(t *testing.T, fired <-chan struct{}) {
	t.Helper()
	select {
	case <-fired:
		t.Fatal("watcher fired for a path it should ignore")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherCoalescesBursts(t *testing.T) {
	repo := t.TempDir()
	fired := startWatcher(t, repo)

	for _, name := range []string{"a.py", "b.py", "c.py"} {
		require.NoError(t, os.WriteFile(filepath.Join(repo, name), []byte("x\n"), 0o644))
	}

	awaitTrigger(t, fired)
	// The three writes land within one debounce window.
	select {
	case <-fired:
		t.Fatal("burst of writes must coalesce into a single trigger")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherIgnoresDataDir(t *testing.T) {
	repo := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(repo, ".codectx"), 0o755))
	fired := startWatcher(t, repo)

	require.NoError(t, os.WriteFile(filepath.Join(repo, ".codectx", "index.db"), []byte("x"), 0o644))
	assertQuiet(t, fired)
}

func TestWatcherIgnoresExcludedDirs(t *testing.T) {
	repo := t.TempDir()
	fired := startWatcher(t, repo)

	require.NoError(t, os.MkdirAll(filepath.Join(repo, "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "node_modules", "lib.js"), []byte("x"), 0o644))
	assertQuiet(t, fired)
}

func TestWatcherSeesNewSubdirectories(t *testing.T) {
	repo := t.TempDir()
	fired := startWatcher(t, repo)

	require.NoError(t, os.MkdirAll(filepath.Join(repo, "src"), 0o755))
	awaitTrigger(t, fired)

	require.NoError(t, os.WriteFile(filepath.Join(repo, "src", "app.py"), []byte("def f():\n    pass\n"), 0o644))
	awaitTrigger(t, fired)
}
