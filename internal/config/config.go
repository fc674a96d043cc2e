package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Supported vector store backends.
const (
	StoreChromem = "chromem"
	StoreQdrant  = "qdrant"
	StoreMemory  = "memory"
)

// SplitterConfig configures how documents are split into chunks.
type SplitterConfig struct {
	ChunkSize    int `koanf:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap int `koanf:"chunk_overlap" yaml:"chunk_overlap"`
}

// EmbedderConfig holds configuration for the OpenAI-compatible embedder.
type EmbedderConfig struct {
	Model     string `koanf:"model" yaml:"model"`
	BaseURL   string `koanf:"base_url" yaml:"base_url"`
	APIKeyEnv string `koanf:"api_key_env" yaml:"api_key_env"`
	BatchSize int    `koanf:"batch_size" yaml:"batch_size"`
	APIKey    string `koanf:"-" yaml:"-"`
}

// LLMConfig holds configuration for the chat model.
type LLMConfig struct {
	Model       string  `koanf:"model" yaml:"model"`
	BaseURL     string  `koanf:"base_url" yaml:"base_url"`
	APIKeyEnv   string  `koanf:"api_key_env" yaml:"api_key_env"`
	Temperature float64 `koanf:"temperature" yaml:"temperature"`
	APIKey      string  `koanf:"-" yaml:"-"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	Host   string `koanf:"host" yaml:"host"`
	Port   int    `koanf:"port" yaml:"port"`
	APIKey string `koanf:"api_key" yaml:"api_key"`
	UseTLS bool   `koanf:"use_tls" yaml:"use_tls"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type       string       `koanf:"type" yaml:"type"`
	PersistDir string       `koanf:"persist_dir" yaml:"persist_dir"`
	Collection string       `koanf:"collection" yaml:"collection"`
	Compress   bool         `koanf:"compress" yaml:"compress"`
	Qdrant     QdrantConfig `koanf:"qdrant" yaml:"qdrant"`
}

// RetrieverConfig configures top-k retrieval.
type RetrieverConfig struct {
	TopK int `koanf:"top_k" yaml:"top_k"`
}

// OrchestratorConfig configures a question/answer cycle.
type OrchestratorConfig struct {
	// TimeoutSecs bounds one question/answer cycle. Zero means no timeout.
	TimeoutSecs int `koanf:"timeout_secs" yaml:"timeout_secs"`
}

// RetryConfig bounds retries of remote model calls.
type RetryConfig struct {
	MaxAttempts       int `koanf:"max_attempts" yaml:"max_attempts"`
	InitialIntervalMs int `koanf:"initial_interval_ms" yaml:"initial_interval_ms"`
	MaxIntervalMs     int `koanf:"max_interval_ms" yaml:"max_interval_ms"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	DocsDir      string             `koanf:"docs_dir" yaml:"docs_dir"`
	Splitter     SplitterConfig     `koanf:"splitter" yaml:"splitter"`
	Embedder     EmbedderConfig     `koanf:"embedder" yaml:"embedder"`
	LLM          LLMConfig          `koanf:"llm" yaml:"llm"`
	VectorStore  VectorStoreConfig  `koanf:"vector_store" yaml:"vector_store"`
	Retriever    RetrieverConfig    `koanf:"retriever" yaml:"retriever"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator" yaml:"orchestrator"`
	Retry        RetryConfig        `koanf:"retry" yaml:"retry"`
	Logging      LoggingConfig      `koanf:"logging" yaml:"logging"`
}

// envKeys maps the recognised environment variables to config keys.
var envKeys = map[string]string{
	"DOCS_DIR":           "docs_dir",
	"CHUNK_SIZE":         "splitter.chunk_size",
	"CHUNK_OVERLAP":      "splitter.chunk_overlap",
	"EMBEDDING_MODEL":    "embedder.model",
	"EMBEDDING_BASE_URL": "embedder.base_url",
	"OPENAI_MODEL":       "llm.model",
	"OPENAI_BASE_URL":    "llm.base_url",
	"VECTOR_STORE":       "vector_store.type",
	"CHROMA_PERSIST_DIR": "vector_store.persist_dir",
	"CHROMA_COLLECTION":  "vector_store.collection",
	"QDRANT_HOST":        "vector_store.qdrant.host",
	"QDRANT_PORT":        "vector_store.qdrant.port",
	"QDRANT_API_KEY":     "vector_store.qdrant.api_key",
	"TOP_K":              "retriever.top_k",
	"LOG_LEVEL":          "logging.level",
	"LOG_FORMAT":         "logging.format",
}

// Load reads a config from a specified path and applies environment overrides.
// A missing file is not an error; defaults are used instead.
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err == nil {
			if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := defaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	applyConfigDefaults(cfg)
	cfg.Embedder.APIKey = os.Getenv(cfg.Embedder.APIKeyEnv)
	cfg.LLM.APIKey = os.Getenv(cfg.LLM.APIKeyEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docqa/config.yaml.
// If neither exists, defaults plus environment overrides are returned.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := DefaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg, err := Load("")
	return cfg, "", err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DefaultUserConfigPath returns ~/.config/docqa/config.yaml.
func DefaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docqa", "config.yaml"), nil
}

// Default returns the built-in configuration without consulting files or the environment.
func Default() *AppConfig {
	return defaultConfig()
}

// Validate checks values that would otherwise fail deep inside a component.
func (c *AppConfig) Validate() error {
	if c.Splitter.ChunkSize <= 0 {
		return fmt.Errorf("%w: splitter.chunk_size must be positive", ErrInvalidConfig)
	}
	if c.Splitter.ChunkOverlap < 0 || c.Splitter.ChunkOverlap >= c.Splitter.ChunkSize {
		return fmt.Errorf("%w: splitter.chunk_overlap must be in [0, chunk_size)", ErrInvalidConfig)
	}
	if c.Retriever.TopK <= 0 {
		return fmt.Errorf("%w: retriever.top_k must be positive", ErrInvalidConfig)
	}
	switch c.VectorStore.Type {
	case StoreChromem, StoreMemory:
	case StoreQdrant:
		if c.VectorStore.Qdrant.Host == "" {
			return fmt.Errorf("%w: vector_store.qdrant.host is required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown vector store %q", ErrInvalidConfig, c.VectorStore.Type)
	}
	if strings.TrimSpace(c.VectorStore.Collection) == "" {
		return fmt.Errorf("%w: vector_store.collection is required", ErrInvalidConfig)
	}
	return nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		DocsDir:  "docs",
		Splitter: SplitterConfig{ChunkSize: 1000, ChunkOverlap: 150},
		Embedder: EmbedderConfig{
			Model:     "text-embedding-3-small",
			BaseURL:   "https://api.openai.com/v1",
			APIKeyEnv: "OPENAI_API_KEY",
			BatchSize: 512,
		},
		LLM: LLMConfig{
			Model:     "gpt-5-nano",
			BaseURL:   "https://api.openai.com/v1",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		VectorStore: VectorStoreConfig{
			Type:       StoreChromem,
			PersistDir: "chroma_db",
			Collection: "books",
			Qdrant:     QdrantConfig{Port: 6334},
		},
		Retriever: RetrieverConfig{TopK: 6},
		Retry:     RetryConfig{MaxAttempts: 3, InitialIntervalMs: 500, MaxIntervalMs: 10000},
		Logging:   LoggingConfig{Level: "info", Format: "console"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	def := defaultConfig()
	if cfg.Embedder.APIKeyEnv == "" {
		cfg.Embedder.APIKeyEnv = def.Embedder.APIKeyEnv
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = def.LLM.APIKeyEnv
	}
	if cfg.Embedder.BatchSize <= 0 {
		cfg.Embedder.BatchSize = def.Embedder.BatchSize
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = def.VectorStore.Type
	}
	if cfg.VectorStore.Qdrant.Port == 0 {
		cfg.VectorStore.Qdrant.Port = def.VectorStore.Qdrant.Port
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 1
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
}
