// Package config provides typed configuration for law-search.
//
// Configuration is resolved in three layers, later layers winning:
// built-in defaults, a YAML file, then LAWSEARCH_* environment variables.
// The loaded Config is constructed once at process start and passed into
// every component constructor; there is no package-level instance.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete law-search configuration.
type Config struct {
	Collector CollectorConfig `yaml:"collector"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Storage   StorageConfig   `yaml:"storage"`
	Search    SearchConfig    `yaml:"search"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CollectorConfig configures statute XML acquisition.
type CollectorConfig struct {
	// BaseURL is the e-Gov open-data endpoint.
	BaseURL string `yaml:"base_url"`
	// DataDir is where downloaded XML files are kept, one per law ID.
	DataDir string `yaml:"data_dir"`
	// Timeout is the per-download HTTP timeout.
	Timeout time.Duration `yaml:"timeout"`
	// PacingInterval is the minimum spacing between bulk downloads.
	// The e-Gov service rate limit is an external constraint.
	PacingInterval time.Duration `yaml:"pacing_interval"`
	// LawIDs is the default document set for bulk collection.
	LawIDs []string `yaml:"law_ids"`
}

// EmbeddingConfig configures the embedding service client.
type EmbeddingConfig struct {
	// Endpoint is the embedding server API endpoint.
	Endpoint string `yaml:"endpoint"`
	// Model is the embedding model identifier.
	Model string `yaml:"model"`
	// Dimensions overrides auto-detection when non-zero.
	Dimensions int `yaml:"dimensions"`
	// BatchSize bounds each model invocation (default 32, range 1-256).
	BatchSize int `yaml:"batch_size"`
	// Timeout is the per-request timeout.
	Timeout time.Duration `yaml:"timeout"`
	// MaxRetries for transient failures.
	MaxRetries int `yaml:"max_retries"`
	// CacheDir is where serialized embedding batches are cached.
	CacheDir string `yaml:"cache_dir"`
	// ShortContentThreshold flags implausibly short content in validation.
	ShortContentThreshold int `yaml:"short_content_threshold"`
	// SlowGenerationThreshold flags implausibly long generation times.
	SlowGenerationThreshold time.Duration `yaml:"slow_generation_threshold"`
	// MaxFragmentLength is the split threshold for long articles.
	MaxFragmentLength int `yaml:"max_fragment_length"`
}

// StorageConfig configures the document store.
type StorageConfig struct {
	// Path is the SQLite database file. Empty means in-memory.
	Path string `yaml:"path"`
	// RetentionDays is the default age cutoff for cleanup.
	RetentionDays int `yaml:"retention_days"`
}

// SearchConfig configures hybrid retrieval.
type SearchConfig struct {
	// FulltextWeight, VectorWeight, GraphWeight are the channel weights.
	// The graph channel is reserved and currently contributes zero.
	FulltextWeight float64 `yaml:"fulltext_weight"`
	VectorWeight   float64 `yaml:"vector_weight"`
	GraphWeight    float64 `yaml:"graph_weight"`
	// MaxResults is the default result limit.
	MaxResults int `yaml:"max_results"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	FilePath string `yaml:"file_path"`
}

// defaultLawIDs is the tax-statute set collected when no ID is given.
var defaultLawIDs = []string{
	"M32HO089", // 所得税法
	"M40HO034", // 法人税法
	"M63HO108", // 消費税法
	"M25HO073", // 相続税法
	"M37HO028", // 国税通則法
	"M37HO029", // 国税徴収法
	"M37HO030",
	"M37HO031",
	"M37HO032",
	"M37HO033",
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Collector: CollectorConfig{
			BaseURL:        "https://elaws.e-gov.go.jp",
			DataDir:        "data/egov",
			Timeout:        60 * time.Second,
			PacingInterval: time.Second,
			LawIDs:         defaultLawIDs,
		},
		Embedding: EmbeddingConfig{
			Endpoint:                "http://localhost:11434",
			Model:                   "jina-embeddings-v3",
			BatchSize:               32,
			Timeout:                 60 * time.Second,
			MaxRetries:              3,
			CacheDir:                "cache/embeddings",
			ShortContentThreshold:   10,
			SlowGenerationThreshold: 10 * time.Second,
			MaxFragmentLength:       1000,
		},
		Storage: StorageConfig{
			Path:          "data/lawsearch.db",
			RetentionDays: 30,
		},
		Search: SearchConfig{
			FulltextWeight: 0.4,
			VectorWeight:   0.4,
			GraphWeight:    0.2,
			MaxResults:     10,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level:    "info",
			FilePath: "logs/lawsearch.log",
		},
	}
}

// Load builds a Config from defaults, an optional YAML file, and environment
// overrides. A missing file at the default path is not an error; an explicit
// path that does not exist is.
func Load(path string) (*Config, error) {
	// .env is optional; ignore absence.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and fills gaps with defaults.
func (c *Config) Validate() error {
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 32
	}
	if c.Embedding.BatchSize > 256 {
		return fmt.Errorf("embedding batch_size %d exceeds maximum 256", c.Embedding.BatchSize)
	}
	if c.Embedding.MaxFragmentLength <= 0 {
		c.Embedding.MaxFragmentLength = 1000
	}
	if c.Search.FulltextWeight < 0 || c.Search.VectorWeight < 0 || c.Search.GraphWeight < 0 {
		return fmt.Errorf("search weights must be non-negative")
	}
	if c.Search.FulltextWeight+c.Search.VectorWeight+c.Search.GraphWeight == 0 {
		return fmt.Errorf("at least one search weight must be positive")
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = 10
	}
	if c.Storage.RetentionDays <= 0 {
		c.Storage.RetentionDays = 30
	}
	return nil
}

// applyEnvOverrides applies LAWSEARCH_* environment variables on top of the
// file-derived configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LAWSEARCH_BASE_URL"); v != "" {
		cfg.Collector.BaseURL = v
	}
	if v := os.Getenv("LAWSEARCH_DATA_DIR"); v != "" {
		cfg.Collector.DataDir = v
	}
	if v := os.Getenv("LAWSEARCH_EMBEDDING_ENDPOINT"); v != "" {
		cfg.Embedding.Endpoint = v
	}
	if v := os.Getenv("LAWSEARCH_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("LAWSEARCH_EMBEDDING_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Embedding.BatchSize = n
		}
	}
	if v := os.Getenv("LAWSEARCH_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("LAWSEARCH_FULLTEXT_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.FulltextWeight = f
		}
	}
	if v := os.Getenv("LAWSEARCH_VECTOR_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.VectorWeight = f
		}
	}
	if v := os.Getenv("LAWSEARCH_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("LAWSEARCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
