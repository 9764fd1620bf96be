package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"main.py", "python"},
		{"pkg/server.go", "go"},
		{"src/app.tsx", "typescript"},
		{"lib/util.mjs", "javascript"},
		{"README.md", "markdown"},
		{"config.yaml", "yaml"},
		{"config.yml", "yaml"},
		{"Dockerfile", "dockerfile"},
		{"Dockerfile.prod", "dockerfile"},
		{"Makefile", "make"},
		{"notes.txt", "text"},
		{"strange.qqq", "text"},
		{"no_extension", "text"},
		{"logo.png", "binary"},
		{"dist/app.wasm", "binary"},
		{"model.safetensors", "binary"},
		{"cache.sqlite3", "binary"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.path))
		})
	}
}

func TestDetectIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, "python", Detect("SCRIPT.PY"))
	assert.Equal(t, "binary", Detect("PHOTO.JPG"))
	assert.Equal(t, "make", Detect("makefile"))
}
