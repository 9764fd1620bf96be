// Package watch re-runs indexing when the repository changes on disk.
// Events are coalesced: a burst of writes triggers one callback after a
// quiet period, and the incremental indexer skips whatever did not change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/cklxx/codectx/internal/classify"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher watches the repository tree and fires onChange after changes
// settle.
type Watcher struct {
	repo     string
	dataDir  string
	debounce time.Duration
	onChange func(context.Context)
	log      *zap.Logger
	fsw      *fsnotify.Watcher
}

// New wires a watcher over repo. Events under dataDir are ignored so the
// tool never reacts to its own writes.
func New(repo, dataDir string, debounce time.Duration, onChange func(context.Context), log *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		repo:     filepath.Clean(repo),
		dataDir:  filepath.Clean(dataDir),
		debounce: debounce,
		onChange: onChange,
		log:      log,
	}
}

// Start registers watches for the whole tree and begins dispatching in the
// background. It returns once watching is in place; cancelling ctx stops it.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	w.fsw = fsw
	if err := w.addTree(w.repo); err != nil {
		fsw.Close()
		return fmt.Errorf("watch %s: %w", w.repo, err)
	}
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	defer w.fsw.Close()

	timer := time.NewTimer(w.debounce)
	defer timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.skip(ev.Name) {
				continue
			}
			// A new directory needs its own watches before anything
			// written inside it can be seen.
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						w.log.Debug("watch new directory failed", zap.String("path", ev.Name), zap.Error(err))
					}
				}
			}
			w.log.Debug("fs event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))
			timer.Reset(w.debounce)
			pending = true
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Debug("fs watch error", zap.Error(err))
		case <-timer.C:
			if pending {
				pending = false
				w.onChange(ctx)
			}
		}
	}
}

// addTree registers root and every directory below it, pruning the same
// subtrees the index scan prunes.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.skip(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.log.Debug("watch add failed", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

var skipNames = map[string]bool{".git": true, ".hg": true, ".svn": true}

func (w *Watcher) skip(path string) bool {
	clean := filepath.Clean(path)
	if clean == w.dataDir || strings.HasPrefix(clean, w.dataDir+string(filepath.Separator)) {
		return true
	}
	rel, err := filepath.Rel(w.repo, clean)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return true
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if skipNames[seg] || classify.ExcludedDir(seg) {
			return true
		}
	}
	return false
}
