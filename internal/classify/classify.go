// Package classify decides which repository files are worth indexing. A
// deterministic rule stage grades every path; an optional oracle stage lets a
// language model re-grade the files the rules leave undecided.
package classify

import (
	"fmt"
	"path"
	"strings"

	"github.com/cklxx/codectx/internal/lang"
)

// Relevance grades how much a file matters for retrieval.
type Relevance string

const (
	High    Relevance = "high"
	Medium  Relevance = "medium"
	Low     Relevance = "low"
	Exclude Relevance = "exclude"
)

// Category names why a file was excluded.
type Category string

const (
	CategoryNone       Category = "none"
	CategoryVirtualEnv Category = "virtualenv"
	CategoryThirdParty Category = "third_party"
	CategoryGenerated  Category = "generated"
)

// Classification is the relevance analysis result for one path.
type Classification struct {
	Path      string
	Relevance Relevance
	Reason    string
	Category  Category
	SizeKB    float64
}

// FileStat pairs a repo-relative path with its on-disk size.
type FileStat struct {
	Path string
	Size int64
}

const sizeThresholdKB = 1024

var virtualEnvDirs = map[string]bool{
	"venv": true, ".venv": true, "env": true, "virtualenv": true,
	".tox": true, ".nox": true, "__pycache__": true,
	".mypy_cache": true, ".pytest_cache": true, ".ruff_cache": true,
	"build": true, "dist": true, "target": true, ".gradle": true,
	".next": true, ".nuxt": true, ".cache": true, ".eggs": true,
}

var thirdPartyDirs = map[string]bool{
	"node_modules": true, "vendor": true, "third_party": true,
	"site-packages": true, "bower_components": true, ".pnpm": true,
	"jspm_packages": true, "pods": true, "carthage": true,
}

var generatedSuffixes = []string{
	".min.js", ".min.css", ".bundle.js", ".map",
	".pyc", ".pyo", ".class", ".pb.go", "_pb2.py", "_pb2_grpc.py",
	".g.dart", ".snap",
}

var lockFileNames = map[string]bool{
	"package-lock.json": true, "yarn.lock": true, "pnpm-lock.yaml": true,
	"poetry.lock": true, "pipfile.lock": true, "go.sum": true,
	"cargo.lock": true, "composer.lock": true, "gemfile.lock": true,
}

var manifestNames = map[string]bool{
	"package.json": true, "pyproject.toml": true, "setup.py": true,
	"setup.cfg": true, "requirements.txt": true, "go.mod": true,
	"cargo.toml": true, "pom.xml": true, "build.gradle": true,
	"gemfile": true, "makefile": true, "cmakelists.txt": true,
	"tsconfig.json": true, "composer.json": true,
}

var coreSourceExts = map[string]bool{
	"py": true, "pyi": true, "go": true, "js": true, "jsx": true,
	"ts": true, "tsx": true, "mjs": true, "cjs": true, "java": true,
	"rb": true, "rs": true, "c": true, "h": true, "cc": true,
	"cpp": true, "hpp": true, "cs": true, "kt": true, "swift": true,
	"scala": true, "php": true, "lua": true, "ex": true, "exs": true,
	"erl": true, "hs": true, "clj": true, "dart": true, "jl": true,
	"zig": true, "sh": true, "bash": true, "sql": true, "proto": true,
	"vue": true, "svelte": true,
}

var configDocExts = map[string]bool{
	"md": true, "rst": true, "txt": true, "adoc": true,
	"json": true, "yaml": true, "yml": true, "toml": true,
	"ini": true, "cfg": true, "conf": true, "env": true,
	"xml": true, "html": true, "css": true, "scss": true,
	"properties": true, "tf": true, "hcl": true,
}

// Classify applies the rule stage to one repo-relative path.
func Classify(p string, sizeBytes int64) Classification {
	cls := Classification{
		Path:     p,
		Category: CategoryNone,
		SizeKB:   float64(sizeBytes) / 1024,
	}

	if cat, reason := detectExclusion(p); cat != CategoryNone {
		cls.Relevance = Exclude
		cls.Category = cat
		cls.Reason = reason
		return cls
	}

	base := path.Base(p)
	if !strings.Contains(p, "/") && isHighValueName(base) {
		cls.Relevance = High
		cls.Reason = "project metadata file"
		return cls
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(base), "."))
	switch {
	case coreSourceExts[ext]:
		cls.Relevance = High
		cls.Reason = fmt.Sprintf("core source file (%s)", lang.Detect(p))
	case configDocExts[ext]:
		cls.Relevance = Medium
		cls.Reason = "configuration or documentation"
	case cls.SizeKB > sizeThresholdKB:
		cls.Relevance = Low
		cls.Reason = fmt.Sprintf("large file (%.0f KB)", cls.SizeKB)
	default:
		cls.Relevance = Medium
		cls.Reason = "no specific rule matched"
	}
	return cls
}

// ClassifyBatch applies the rule stage to a set of files.
func ClassifyBatch(files []FileStat) []Classification {
	out := make([]Classification, len(files))
	for i, f := range files {
		out[i] = Classify(f.Path, f.Size)
	}
	return out
}

// ExcludedDir reports whether a directory name alone warrants skipping its
// whole subtree during a walk.
func ExcludedDir(name string) bool {
	n := strings.ToLower(name)
	return virtualEnvDirs[n] || thirdPartyDirs[n] || strings.HasSuffix(n, ".egg-info")
}

// detectExclusion checks every exclusion category and joins the reasons of
// all that matched. The first matching category becomes the classification's
// category.
func detectExclusion(p string) (Category, string) {
	segs := strings.Split(p, "/")
	base := segs[len(segs)-1]
	dirs := segs[:len(segs)-1]

	cat := CategoryNone
	var reasons []string
	add := func(c Category, reason string) {
		reasons = append(reasons, reason)
		if cat == CategoryNone {
			cat = c
		}
	}

	if seg := firstDirMatch(dirs, func(d string) bool {
		return virtualEnvDirs[d] || strings.HasSuffix(d, ".egg-info")
	}); seg != "" {
		add(CategoryVirtualEnv, "virtual environment or build directory "+seg)
	}
	if seg := firstDirMatch(dirs, func(d string) bool { return thirdPartyDirs[d] }); seg != "" {
		add(CategoryThirdParty, "third-party dependency directory "+seg)
	}

	lower := strings.ToLower(base)
	if lockFileNames[lower] {
		add(CategoryGenerated, "lock file "+base)
	} else {
		for _, suffix := range generatedSuffixes {
			if strings.HasSuffix(lower, suffix) {
				add(CategoryGenerated, "generated artifact "+base)
				break
			}
		}
	}

	return cat, strings.Join(reasons, "; ")
}

func firstDirMatch(dirs []string, match func(string) bool) string {
	for _, d := range dirs {
		if match(strings.ToLower(d)) {
			return d
		}
	}
	return ""
}

func isHighValueName(base string) bool {
	upper := strings.ToUpper(base)
	for _, prefix := range []string{"README", "LICENSE", "DOCKERFILE"} {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return manifestNames[strings.ToLower(base)]
}

// Stats summarizes one classification pass.
type Stats struct {
	Total              int
	High               int
	Medium             int
	Low                int
	Excluded           int
	ExcludedByCategory map[Category]int
}

// FilterForIndexing selects the paths worth indexing and tallies the rest.
// Only HIGH and MEDIUM files are indexed; LOW and EXCLUDE are counted for
// observability.
func FilterForIndexing(cls []Classification) ([]string, Stats) {
	stats := Stats{Total: len(cls), ExcludedByCategory: make(map[Category]int)}
	var paths []string
	for _, c := range cls {
		switch c.Relevance {
		case High:
			stats.High++
			paths = append(paths, c.Path)
		case Medium:
			stats.Medium++
			paths = append(paths, c.Path)
		case Low:
			stats.Low++
		case Exclude:
			stats.Excluded++
			stats.ExcludedByCategory[c.Category]++
		}
	}
	return paths, stats
}
