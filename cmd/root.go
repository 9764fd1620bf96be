package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cklxx/codectx/internal/chunker"
	"github.com/cklxx/codectx/internal/chunker/languages"
	"github.com/cklxx/codectx/internal/classify"
	"github.com/cklxx/codectx/internal/config"
	"github.com/cklxx/codectx/internal/embedder"
	"github.com/cklxx/codectx/internal/index"
	"github.com/cklxx/codectx/internal/lexical"
	"github.com/cklxx/codectx/internal/llm"
	"github.com/cklxx/codectx/internal/retriever"
	"github.com/cklxx/codectx/internal/store"
	"github.com/cklxx/codectx/internal/vector"
)

var (
	flagConfig  string
	flagRepo    string
	flagDataDir string
	flagOllama  string
	flagModel   string
	flagTask    string
	flagDebug   bool
)

var rootCmd = &cobra.Command{
	Use:           "codectx",
	Short:         "Incremental code indexing with hybrid lexical and semantic search",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&flagRepo, "repo", "", "repository root to index (default .)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "index data directory (default <repo>/.codectx)")
	rootCmd.PersistentFlags().StringVar(&flagOllama, "ollama", "", "ollama base URL")
	rootCmd.PersistentFlags().StringVar(&flagModel, "embed-model", "", "embedding model")
	rootCmd.PersistentFlags().StringVar(&flagTask, "task", "", "task context passed to the relevance oracle")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "verbose logging")
}

// loadConfig layers flag overrides on top of the config file, then resolves
// paths.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}
	if flagRepo != "" {
		cfg.Repo = flagRepo
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if flagOllama != "" {
		cfg.Embedding.BaseURL = flagOllama
		cfg.Oracle.BaseURL = flagOllama
	}
	if flagModel != "" {
		cfg.Embedding.Model = flagModel
	}
	if flagTask != "" {
		cfg.TaskContext = flagTask
	}
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger() (*zap.Logger, error) {
	if flagDebug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// app bundles the shared dependencies a command needs.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	store     *store.Store
	vec       *vector.Index
	lex       *lexical.Index
	emb       embedder.Embedder
	indexer   *index.Indexer
	retriever *retriever.Retriever
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := newLogger()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, err
	}

	reg := chunker.NewRegistry()
	languages.RegisterGo(reg)
	languages.RegisterPython(reg)
	languages.RegisterJavaScript(reg)
	languages.RegisterTypeScript(reg)

	var oracle classify.Oracle
	if cfg.Oracle.Enabled && !flagNoOracle {
		oracle = classify.NewLLMOracle(llm.NewClient(cfg.Oracle.BaseURL, cfg.Oracle.Model,
			time.Duration(cfg.Oracle.TimeoutSeconds)*time.Second))
	}

	emb := embedder.NewCached(
		embedder.NewOllamaEmbedder(cfg.Embedding.BaseURL, cfg.Embedding.Model,
			cfg.Embedding.Dimensions, time.Duration(cfg.Embedding.TimeoutSeconds)*time.Second),
		cfg.Embedding.CacheSize)

	vec, err := vector.Open(cfg.VectorDir())
	if err != nil {
		st.Close()
		return nil, err
	}
	lex, err := lexical.Open(cfg.LexicalPath())
	if err != nil {
		vec.Close()
		st.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		log:     log,
		store:   st,
		vec:     vec,
		lex:     lex,
		emb:     emb,
		indexer: index.New(cfg, st, chunker.New(reg), oracle, log),
		retriever: retriever.New(st, vec, lex, emb, retriever.Options{
			VectorWeight:    cfg.Search.VectorWeight,
			KeywordWeight:   cfg.Search.KeywordWeight,
			OverfetchFactor: cfg.Search.OverfetchFactor,
			EmbedBatchSize:  cfg.Embedding.BatchSize,
		}, log),
	}, nil
}

func (a *app) Close() {
	a.lex.Close()
	a.vec.Close()
	a.store.Close()
	_ = a.log.Sync()
}
