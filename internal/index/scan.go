package index

import (
	"io/fs"
	"path/filepath"

	"github.com/cklxx/codectx/internal/classify"
	"github.com/cklxx/codectx/internal/ignore"
)

// candidate is a file discovered by the walk, before classification.
type candidate struct {
	absPath string
	relPath string
	size    int64
	modTime int64
}

var vcsDirs = map[string]bool{".git": true, ".hg": true, ".svn": true}

// scan walks the repository and collects candidate files. Directory pruning
// happens here: VCS metadata, the tool's own data directory, well-known
// dependency and build trees, and ignore-rule matches are never descended
// into. Unreadable entries and symlinks are skipped, not fatal.
func (ix *Indexer) scan(rules *ignore.RuleSet) ([]candidate, error) {
	absRoot, err := filepath.Abs(ix.cfg.Repo)
	if err != nil {
		return nil, err
	}
	absData, err := filepath.Abs(ix.cfg.DataDir)
	if err != nil {
		return nil, err
	}

	var out []candidate
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			rel, _ := filepath.Rel(absRoot, path)
			rel = filepath.ToSlash(rel)
			if vcsDirs[d.Name()] || path == absData || classify.ExcludedDir(d.Name()) || rules.Ignored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		rel, _ := filepath.Rel(absRoot, path)
		rel = filepath.ToSlash(rel)
		if rules.Ignored(rel, false) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		out = append(out, candidate{
			absPath: path,
			relPath: rel,
			size:    info.Size(),
			modTime: info.ModTime().Unix(),
		})
		return nil
	})
	return out, err
}
