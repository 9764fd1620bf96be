// Package lang maps file names to language tags.
package lang

import (
	"path/filepath"
	"strings"
)

// Binary is the tag for files that should never be read as text.
const Binary = "binary"

// Text is the tag for unrecognized extensions.
const Text = "text"

var extToLang = map[string]string{
	"py":     "python",
	"pyi":    "python",
	"go":     "go",
	"js":     "javascript",
	"jsx":    "javascript",
	"mjs":    "javascript",
	"cjs":    "javascript",
	"ts":     "typescript",
	"tsx":    "typescript",
	"java":   "java",
	"rb":     "ruby",
	"rs":     "rust",
	"c":      "c",
	"h":      "c",
	"cc":     "cpp",
	"cpp":    "cpp",
	"cxx":    "cpp",
	"hpp":    "cpp",
	"cs":     "csharp",
	"kt":     "kotlin",
	"kts":    "kotlin",
	"swift":  "swift",
	"scala":  "scala",
	"php":    "php",
	"lua":    "lua",
	"pl":     "perl",
	"ex":     "elixir",
	"exs":    "elixir",
	"erl":    "erlang",
	"hs":     "haskell",
	"clj":    "clojure",
	"dart":   "dart",
	"r":      "r",
	"jl":     "julia",
	"zig":    "zig",
	"sh":     "shell",
	"bash":   "shell",
	"zsh":    "shell",
	"sql":    "sql",
	"proto":  "protobuf",
	"md":     "markdown",
	"rst":    "restructuredtext",
	"json":   "json",
	"yaml":   "yaml",
	"yml":    "yaml",
	"toml":   "toml",
	"ini":    "ini",
	"cfg":    "ini",
	"xml":    "xml",
	"html":   "html",
	"htm":    "html",
	"css":    "css",
	"scss":   "css",
	"less":   "css",
	"tf":     "terraform",
	"hcl":    "hcl",
	"vue":    "vue",
	"svelte": "svelte",
	"txt":    "text",
}

// nameToLang covers well-known files that carry no useful extension.
var nameToLang = map[string]string{
	"dockerfile": "dockerfile",
	"makefile":   "make",
	"gnumakefile": "make",
	"rakefile":   "ruby",
	"gemfile":    "ruby",
}

var binaryExts = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "bmp": true,
	"ico": true, "webp": true, "svgz": true, "tiff": true,
	"pdf": true, "zip": true, "tar": true, "gz": true, "bz2": true,
	"xz": true, "zst": true, "7z": true, "rar": true, "jar": true,
	"war": true, "whl": true, "deb": true, "rpm": true,
	"exe": true, "dll": true, "so": true, "dylib": true, "a": true,
	"o": true, "obj": true, "bin": true, "wasm": true, "class": true,
	"pyc": true, "pyo": true, "pyd": true,
	"woff": true, "woff2": true, "ttf": true, "otf": true, "eot": true,
	"mp3": true, "mp4": true, "wav": true, "ogg": true, "avi": true,
	"mov": true, "mkv": true, "flac": true, "webm": true,
	"db": true, "sqlite": true, "sqlite3": true,
	"pickle": true, "pkl": true, "npy": true, "npz": true,
	"pb": true, "onnx": true, "pt": true, "pth": true, "safetensors": true,
}

// Detect returns the language tag for a file path. Unknown text-like
// extensions return Text; known binary extensions return Binary. It is a
// pure lookup over the file name and extension, no content sniffing.
func Detect(path string) string {
	base := strings.ToLower(filepath.Base(path))
	ext := strings.TrimPrefix(filepath.Ext(base), ".")

	if binaryExts[ext] {
		return Binary
	}
	if l, ok := extToLang[ext]; ok {
		return l
	}
	if l, ok := nameToLang[base]; ok {
		return l
	}
	if strings.HasPrefix(base, "dockerfile.") {
		return "dockerfile"
	}
	return Text
}
