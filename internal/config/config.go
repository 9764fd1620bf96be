// Package config loads and validates the tool configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	// DataDir is where the index database, vector store, and lexical index
	// live. Defaults to <repo>/.codectx.
	DataDir string `yaml:"data_dir"`
	// Repo is the repository root to index.
	Repo string `yaml:"repo"`
	// TaskContext is free text passed to the relevance oracle to bias its
	// verdicts toward the task at hand.
	TaskContext string `yaml:"task_context"`

	Embedding EmbeddingConfig `yaml:"embedding"`
	Oracle    OracleConfig    `yaml:"oracle"`
	Indexing  IndexingConfig  `yaml:"indexing"`
	Search    SearchConfig    `yaml:"search"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	Dimensions     int    `yaml:"dimensions"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	CacheSize      int    `yaml:"cache_size"`
	BatchSize      int    `yaml:"batch_size"`
}

// OracleConfig configures the optional relevance oracle.
type OracleConfig struct {
	Enabled        bool   `yaml:"enabled"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxCandidates  int    `yaml:"max_candidates"`
}

// IndexingConfig configures the index pass.
type IndexingConfig struct {
	Workers    int    `yaml:"workers"`
	IgnoreFile string `yaml:"ignore_file"`
}

// SearchConfig configures hybrid retrieval.
type SearchConfig struct {
	VectorWeight    float64 `yaml:"vector_weight"`
	KeywordWeight   float64 `yaml:"keyword_weight"`
	OverfetchFactor int     `yaml:"overfetch_factor"`
}

// Default returns a config with all defaults applied and no repo set.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// Load reads a YAML config file and applies defaults for anything unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.ApplyDefaults()
	return &c, nil
}

// ApplyDefaults fills in zero values and expands ~ in paths.
func (c *Config) ApplyDefaults() {
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = "http://localhost:11434"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "nomic-embed-text"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 768
	}
	if c.Embedding.TimeoutSeconds <= 0 {
		c.Embedding.TimeoutSeconds = 60
	}
	if c.Embedding.CacheSize <= 0 {
		c.Embedding.CacheSize = 4096
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 32
	}
	if c.Oracle.BaseURL == "" {
		c.Oracle.BaseURL = c.Embedding.BaseURL
	}
	if c.Oracle.Model == "" {
		c.Oracle.Model = "qwen3:8b"
	}
	if c.Oracle.TimeoutSeconds <= 0 {
		c.Oracle.TimeoutSeconds = 120
	}
	if c.Oracle.MaxCandidates <= 0 {
		c.Oracle.MaxCandidates = 50
	}
	if c.Indexing.Workers <= 0 {
		c.Indexing.Workers = 4
	}
	if c.Indexing.IgnoreFile == "" {
		c.Indexing.IgnoreFile = ".gitignore"
	}
	if c.Search.VectorWeight <= 0 {
		c.Search.VectorWeight = 0.6
	}
	if c.Search.KeywordWeight <= 0 {
		c.Search.KeywordWeight = 0.4
	}
	if c.Search.OverfetchFactor <= 0 {
		c.Search.OverfetchFactor = 2
	}
	c.Repo = expandPath(c.Repo)
	c.DataDir = expandPath(c.DataDir)
}

// Resolve finalizes the repo root and data dir. The repo must exist; the
// data dir defaults to <repo>/.codectx and is created if absent.
func (c *Config) Resolve() error {
	if c.Repo == "" {
		c.Repo = "."
	}
	abs, err := filepath.Abs(c.Repo)
	if err != nil {
		return fmt.Errorf("resolve repo path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("repository root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("repository root %s is not a directory", abs)
	}
	c.Repo = abs

	if c.DataDir == "" {
		c.DataDir = filepath.Join(c.Repo, ".codectx")
	}
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return nil
}

// DBPath returns the path of the relational index database.
func (c *Config) DBPath() string { return filepath.Join(c.DataDir, "index.db") }

// VectorDir returns the directory holding the vector index.
func (c *Config) VectorDir() string { return filepath.Join(c.DataDir, "vectors") }

// LexicalPath returns the directory holding the lexical index.
func (c *Config) LexicalPath() string { return filepath.Join(c.DataDir, "lexical.bleve") }

func expandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
