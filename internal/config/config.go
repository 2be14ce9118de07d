package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures the tool API.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// ScraperConfig configures the scrape service.
type ScraperConfig struct {
	Addr         string `yaml:"addr"`
	TimeoutSecs  int    `yaml:"timeout_secs"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
	UserAgent    string `yaml:"user_agent"`
}

// SearchConfig selects and configures the web search backend.
type SearchConfig struct {
	Type        string `yaml:"type"`
	URL         string `yaml:"url"`
	MaxResults  int    `yaml:"max_results"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// ExtractorConfig points at the scrape service.
type ExtractorConfig struct {
	URL         string `yaml:"url"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// GeminiEmbedderConfig configures the Gemini embedder. An API key in
// APIKeyEnv selects the Gemini API; otherwise Project and Location select
// Vertex AI.
type GeminiEmbedderConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Project   string `yaml:"project"`
	Location  string `yaml:"location"`
	Model     string `yaml:"model"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type          string               `yaml:"type"`
	Dimension     int                  `yaml:"dimension"`
	MaxInputChars int                  `yaml:"max_input_chars"`
	CacheMB       int                  `yaml:"cache_mb"`
	OpenAI        OpenAIEmbedderConfig `yaml:"openai"`
	Gemini        GeminiEmbedderConfig `yaml:"gemini"`
}

// ChromemConfig configures the embedded store. An empty path keeps it in memory.
type ChromemConfig struct {
	Path     string `yaml:"path"`
	Compress bool   `yaml:"compress"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type       string        `yaml:"type"`
	Collection string        `yaml:"collection"`
	Chromem    ChromemConfig `yaml:"chromem"`
	Qdrant     QdrantConfig  `yaml:"qdrant"`
	SQLite     SQLiteConfig  `yaml:"sqlite"`
}

// PipelineConfig bounds ingestion and recall.
type PipelineConfig struct {
	MaxResults   int `yaml:"max_results"`
	ContextLimit int `yaml:"context_limit"`
	SnippetLimit int `yaml:"snippet_limit"`
	RecallLimit  int `yaml:"recall_limit"`
	Concurrency  int `yaml:"concurrency"`
}

// SummarizerConfig configures the digest shown by the TUI.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	LogLevel    string            `yaml:"log_level"`
	Server      ServerConfig      `yaml:"server"`
	Scraper     ScraperConfig     `yaml:"scraper"`
	Search      SearchConfig      `yaml:"search"`
	Extractor   ExtractorConfig   `yaml:"extractor"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, goerr.Wrap(err, "failed to read config", goerr.V("path", path))
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse config", goerr.V("path", path))
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/webrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/webrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return goerr.Wrap(err, "failed to create config directory", goerr.V("path", path))
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return goerr.Wrap(err, "failed to encode config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return goerr.Wrap(err, "failed to write config", goerr.V("path", path))
	}
	return nil
}

// Validate rejects unknown component types and impossible limits.
func (c *AppConfig) Validate() error {
	switch c.Search.Type {
	case "searxng":
	default:
		return goerr.New("unknown search type", goerr.V("type", c.Search.Type))
	}
	switch c.Embedder.Type {
	case "hashing", "openai", "gemini":
	default:
		return goerr.New("unknown embedder type", goerr.V("type", c.Embedder.Type))
	}
	switch c.VectorStore.Type {
	case "memory", "qdrant", "sqlite":
	default:
		return goerr.New("unknown vector store type", goerr.V("type", c.VectorStore.Type))
	}
	if c.Embedder.Dimension <= 0 {
		return goerr.New("embedder dimension must be positive", goerr.V("dimension", c.Embedder.Dimension))
	}
	if c.VectorStore.Collection == "" {
		return goerr.New("vector store collection is required")
	}
	if c.Embedder.CacheMB < 0 || c.Embedder.MaxInputChars < 0 {
		return goerr.New("embedder limits must not be negative",
			goerr.V("cache_mb", c.Embedder.CacheMB),
			goerr.V("max_input_chars", c.Embedder.MaxInputChars))
	}
	return nil
}

func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", goerr.Wrap(err, "failed to find home directory")
	}
	return filepath.Join(home, ".config", "webrag", "config.yaml"), nil
}

// Default returns the configuration used when no file exists: SearXNG and
// the scraper at their compose service names, local hashing embeddings and
// the in-memory store.
func Default() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "hashing"},
		VectorStore: VectorStoreConfig{Type: "memory"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}

	if cfg.Scraper.Addr == "" {
		cfg.Scraper.Addr = ":8090"
	}
	if cfg.Scraper.TimeoutSecs == 0 {
		cfg.Scraper.TimeoutSecs = 10
	}
	if cfg.Scraper.MaxBodyBytes == 0 {
		cfg.Scraper.MaxBodyBytes = 5 << 20
	}

	if cfg.Search.Type == "" {
		cfg.Search.Type = "searxng"
	}
	if cfg.Search.URL == "" {
		cfg.Search.URL = "http://searxng:8080"
	}
	if cfg.Search.TimeoutSecs == 0 {
		cfg.Search.TimeoutSecs = 10
	}

	if cfg.Extractor.URL == "" {
		cfg.Extractor.URL = "http://scraper:8090"
	}
	if cfg.Extractor.TimeoutSecs == 0 {
		cfg.Extractor.TimeoutSecs = 10
	}

	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hashing"
	}
	if cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = 384
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}
	if cfg.Embedder.Type == "gemini" {
		if cfg.Embedder.Gemini.APIKeyEnv == "" {
			cfg.Embedder.Gemini.APIKeyEnv = "GEMINI_API_KEY"
		}
		if cfg.Embedder.Gemini.Location == "" {
			cfg.Embedder.Gemini.Location = "us-central1"
		}
		if cfg.Embedder.Gemini.Model == "" {
			cfg.Embedder.Gemini.Model = "gemini-embedding-001"
		}
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "web_memory"
	}
	if cfg.VectorStore.Qdrant.URL == "" {
		cfg.VectorStore.Qdrant.URL = "http://qdrant:6333"
	}
	if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
		cfg.VectorStore.Qdrant.TimeoutSecs = 15
	}
	if cfg.VectorStore.SQLite.Path == "" {
		cfg.VectorStore.SQLite.Path = "webrag.db"
	}

	if cfg.Pipeline.MaxResults == 0 {
		cfg.Pipeline.MaxResults = 5
	}
	if cfg.Pipeline.ContextLimit == 0 {
		cfg.Pipeline.ContextLimit = 15000
	}
	if cfg.Pipeline.SnippetLimit == 0 {
		cfg.Pipeline.SnippetLimit = 2000
	}
	if cfg.Pipeline.RecallLimit == 0 {
		cfg.Pipeline.RecallLimit = 5
	}
	if cfg.Pipeline.Concurrency == 0 {
		cfg.Pipeline.Concurrency = 4
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = cfg.Pipeline.MaxResults
	}

	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 3
	}
}
