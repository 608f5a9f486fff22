package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DirName is the per-project directory holding the store and optional config.
const DirName = ".examprep"

// Config holds all configuration for the exam prep retrieval tool.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StoreConfig holds vector store configuration.
type StoreConfig struct {
	Path        string `yaml:"path"` // relative paths resolve against the project dir
	Collection  string `yaml:"collection"`
	Metric      string `yaml:"metric"`  // "cosine" or "l2"; fixed for the life of a collection
	Backend     string `yaml:"backend"` // "bolt" or "memory"
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// ChunkingConfig holds text splitting configuration.
type ChunkingConfig struct {
	ChunkSize  int      `yaml:"chunk_size"`
	Overlap    int      `yaml:"overlap"`
	Separators []string `yaml:"separators,omitempty"` // coarsest first; empty = paragraph, line, word
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"`    // "gemini", "openai", "ollama", "jina", "mock"
	Model             string  `yaml:"model"`       // e.g., "text-embedding-004"
	APIKeyEnv         string  `yaml:"api_key_env"` // Environment variable for API key
	BaseURL           string  `yaml:"base_url,omitempty"`
	Dimension         int     `yaml:"dimension"` // 0 = model default; otherwise requested and enforced
	TimeoutSecs       int     `yaml:"timeout_secs"`
	Concurrency       int     `yaml:"concurrency"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	DocumentPrefix    string  `yaml:"document_prefix,omitempty"`
	QueryPrefix       string  `yaml:"query_prefix,omitempty"`
}

// IngestConfig holds document ingestion configuration.
type IngestConfig struct {
	Includes        []string `yaml:"includes"`
	Excludes        []string `yaml:"excludes"`
	DefaultType     string   `yaml:"default_type"`
	ReplaceExisting bool     `yaml:"replace_existing"`
	Concurrency     int      `yaml:"concurrency"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK               int `yaml:"top_k"`
	CacheSize          int `yaml:"cache_size"` // 0 disables the query cache
	CacheTTLSecs       int `yaml:"cache_ttl_secs"`
	ContextTokenBudget int `yaml:"context_token_budget"` // 0 = unbounded
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:        filepath.Join(DirName, "store.db"),
			Collection:  "exam_prep",
			Metric:      "cosine",
			Backend:     "bolt",
			TimeoutSecs: 5,
		},
		Chunking: ChunkingConfig{
			ChunkSize: 1000,
			Overlap:   200,
		},
		Embedding: EmbeddingConfig{
			Provider:          "gemini",
			Model:             "text-embedding-004",
			APIKeyEnv:         "GOOGLE_API_KEY",
			Dimension:         0,
			TimeoutSecs:       30,
			Concurrency:       4,
			RequestsPerSecond: 0,
		},
		Ingest: IngestConfig{
			Includes:        []string{"**/*.pdf", "**/*.txt", "**/*.md"},
			Excludes:        []string{"**/.git/**", "**/" + DirName + "/**", "**/node_modules/**"},
			DefaultType:     "book",
			ReplaceExisting: true,
			Concurrency:     2,
		},
		Retrieve: RetrieveConfig{
			TopK:               5,
			CacheSize:          0,
			CacheTTLSecs:       300,
			ContextTokenBudget: 0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for examprep.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "examprep.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, DirName, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if c.Chunking.ChunkSize <= 0 {
		problems = append(problems, "chunking.chunk_size must be positive")
	}
	if c.Chunking.Overlap < 0 {
		problems = append(problems, "chunking.overlap must not be negative")
	}
	if c.Chunking.ChunkSize > 0 && c.Chunking.Overlap >= c.Chunking.ChunkSize {
		problems = append(problems, "chunking.overlap must be smaller than chunking.chunk_size")
	}

	switch strings.ToLower(c.Store.Metric) {
	case "cosine", "l2", "euclidean":
	default:
		problems = append(problems, fmt.Sprintf("unknown store.metric %q", c.Store.Metric))
	}
	switch c.Store.Backend {
	case "bolt", "memory":
	default:
		problems = append(problems, fmt.Sprintf("unknown store.backend %q", c.Store.Backend))
	}
	if c.Store.Collection == "" {
		problems = append(problems, "store.collection must be set")
	}

	switch c.Embedding.Provider {
	case "gemini", "openai", "ollama", "jina", "mock":
	default:
		problems = append(problems, fmt.Sprintf("unknown embedding.provider %q", c.Embedding.Provider))
	}

	if c.Retrieve.TopK <= 0 {
		problems = append(problems, "retrieve.top_k must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// StorePath resolves the configured store file against the project dir.
func StorePath(dir string, cfg *Config) string {
	if filepath.IsAbs(cfg.Store.Path) {
		return cfg.Store.Path
	}
	return filepath.Join(dir, cfg.Store.Path)
}

// EnsureDir ensures the directory holding the store file exists.
func EnsureDir(dir string, cfg *Config) error {
	return os.MkdirAll(filepath.Dir(StorePath(dir, cfg)), 0755)
}
