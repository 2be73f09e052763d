package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dshills/luarag/internal/chunker"
	"github.com/dshills/luarag/internal/embedder"
	"github.com/dshills/luarag/internal/indexer"
	"github.com/dshills/luarag/internal/retriever"
)

// Config is the complete luarag configuration
type Config struct {
	DBPath    string          `yaml:"db_path" json:"db_path"`
	Log       LogConfig       `yaml:"log" json:"log"`
	Chunker   ChunkerConfig   `yaml:"chunker" json:"chunker"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Index     IndexConfig     `yaml:"index" json:"index"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Watch     WatchConfig     `yaml:"watch" json:"watch"`
}

// LogConfig configures structured logging
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // text or json
	File   string `yaml:"file" json:"file"`     // optional tee target
}

// ChunkerConfig selects and tunes the chunking strategy
type ChunkerConfig struct {
	Strategy      string   `yaml:"strategy" json:"strategy"`
	MinNodeBytes  int      `yaml:"min_node_bytes" json:"min_node_bytes"`
	SpanLines     int      `yaml:"span_lines" json:"span_lines"`
	SegmentLines  int      `yaml:"segment_lines" json:"segment_lines"`
	MinBlockLines int      `yaml:"min_block_lines" json:"min_block_lines"`
	MaxScanLines  int      `yaml:"max_scan_lines" json:"max_scan_lines"`
	Keywords      []string `yaml:"keywords" json:"keywords"`
}

// EmbeddingConfig configures the embedding provider
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider" json:"provider"`
	Model     string        `yaml:"model" json:"model"`
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	APIKey    string        `yaml:"-" json:"-"` // environment only
	Dimension int           `yaml:"dimension" json:"dimension"`
	CacheSize int           `yaml:"cache_size" json:"cache_size"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
}

// SearchConfig configures retrieval
type SearchConfig struct {
	Limit          int     `yaml:"limit" json:"limit"`
	TextWeight     float64 `yaml:"text_weight" json:"text_weight"`
	VectorWeight   float64 `yaml:"vector_weight" json:"vector_weight"`
	MaxTokens      int     `yaml:"max_tokens" json:"max_tokens"`
	RelatedLimit   int     `yaml:"related_limit" json:"related_limit"`
	QueryCacheSize int     `yaml:"query_cache_size" json:"query_cache_size"`
}

// IndexConfig selects the files that are indexed
type IndexConfig struct {
	Pattern      string   `yaml:"pattern" json:"pattern"`
	Recursive    bool     `yaml:"recursive" json:"recursive"`
	ExcludeDirs  []string `yaml:"exclude_dirs" json:"exclude_dirs"`
	ExcludeFiles []string `yaml:"exclude_files" json:"exclude_files"`
	Workers      int      `yaml:"workers" json:"workers"`
}

// ServerConfig configures the MCP and HTTP surfaces
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"` // stdio or http
	HTTPAddr  string `yaml:"http_addr" json:"http_addr"`
}

// WatchConfig configures watch mode
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
}

// Valid option values
var (
	validProviders  = []string{embedder.ProviderOllama, embedder.ProviderOpenAI, embedder.ProviderLocal, embedder.ProviderJina, embedder.ProviderMock}
	validStrategies = []string{string(chunker.StrategyStructural), string(chunker.StrategyRegex)}
	validLevels     = []string{"debug", "info", "warn", "error"}
	validFormats    = []string{"text", "json"}
	validTransports = []string{"stdio", "http"}
)

// NewConfig returns the default configuration
func NewConfig() *Config {
	return &Config{
		DBPath: DefaultDBPath(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Chunker: ChunkerConfig{
			Strategy:      string(chunker.StrategyStructural),
			MinNodeBytes:  chunker.DefaultMinNodeBytes,
			SpanLines:     chunker.DefaultSpanLines,
			SegmentLines:  chunker.DefaultSegmentLines,
			MinBlockLines: chunker.DefaultMinBlockLines,
			MaxScanLines:  chunker.DefaultMaxScanLines,
		},
		Embedding: EmbeddingConfig{
			Provider:  embedder.ProviderOllama,
			CacheSize: embedder.DefaultCacheSize,
			Timeout:   embedder.DefaultTimeout,
		},
		Search: SearchConfig{
			Limit:          retriever.DefaultLimit,
			TextWeight:     retriever.DefaultTextWeight,
			VectorWeight:   retriever.DefaultVectorWeight,
			MaxTokens:      retriever.DefaultMaxTokens,
			RelatedLimit:   retriever.DefaultRelatedLimit,
			QueryCacheSize: 256,
		},
		Index: IndexConfig{
			Pattern:      indexer.DefaultPattern,
			Recursive:    true,
			ExcludeDirs:  append([]string(nil), indexer.DefaultExcludeDirs...),
			ExcludeFiles: append([]string(nil), indexer.DefaultExcludeFiles...),
			Workers:      runtime.NumCPU(),
		},
		Server: ServerConfig{
			Transport: "stdio",
			HTTPAddr:  ":8000",
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
	}
}

// DefaultDBPath is ~/.luarag/index.db, or a relative path without a home
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".luarag", "index.db")
	}
	return filepath.Join(home, ".luarag", "index.db")
}

// Load builds the configuration for dir in order of increasing precedence:
//  1. Defaults
//  2. Project config (.luarag.yaml or .luarag.yml in dir)
//  3. .env in dir, never overriding variables already set
//  4. Environment variables
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	if err := loadDotEnv(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()
	cfg.DBPath = expandHome(cfg.DBPath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads .luarag.yaml, falling back to .luarag.yml
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".luarag.yaml", ".luarag.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	// No config file is fine - use defaults
	return nil
}

// loadYAML decodes path over the current values; absent keys keep them
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LUARAG_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("LUARAG_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LUARAG_LOG_FORMAT"); v != "" {
		c.Log.Format = strings.ToLower(v)
	}
	if v := os.Getenv("LUARAG_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("LUARAG_CHUNKER"); v != "" {
		c.Chunker.Strategy = strings.ToLower(v)
	}

	// Weights accept an explicit zero
	if v := os.Getenv("LUARAG_TEXT_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			c.Search.TextWeight = w
		}
	}
	if v := os.Getenv("LUARAG_VECTOR_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			c.Search.VectorWeight = w
		}
	}
	setInt("LUARAG_MAX_TOKENS", &c.Search.MaxTokens)
	setInt("SEARCH_LIMIT", &c.Search.Limit)
	setInt("LUARAG_WORKERS", &c.Index.Workers)

	if v := os.Getenv("LUARAG_HTTP_ADDR"); v != "" {
		c.Server.HTTPAddr = v
	}

	// Embedding variables keep their conventional names
	if v := os.Getenv(embedder.EnvProvider); v != "" {
		c.Embedding.Provider = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv(embedder.EnvModel); v != "" {
		c.Embedding.Model = v
	}
	setInt(embedder.EnvDimension, &c.Embedding.Dimension)

	switch c.Embedding.Provider {
	case embedder.ProviderOllama:
		if v := os.Getenv(embedder.EnvOllamaURL); v != "" {
			c.Embedding.BaseURL = v
		}
	case embedder.ProviderOpenAI, embedder.ProviderLocal:
		if v := os.Getenv(embedder.EnvOpenAIURL); v != "" {
			c.Embedding.BaseURL = v
		}
		c.Embedding.APIKey = os.Getenv(embedder.EnvOpenAIAPIKey)
	case embedder.ProviderJina:
		c.Embedding.APIKey = os.Getenv(embedder.EnvJinaAPIKey)
	}
}

// setInt overwrites *dst with the integer value of env var name, if valid
func setInt(name string, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		*dst = n
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// Validate checks the final configuration
func (c *Config) Validate() error {
	var errs []error

	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path must not be empty"))
	}
	if c.Search.TextWeight < 0 || c.Search.TextWeight > 1 {
		errs = append(errs, fmt.Errorf("text_weight must be between 0 and 1, got %g", c.Search.TextWeight))
	}
	if c.Search.VectorWeight < 0 || c.Search.VectorWeight > 1 {
		errs = append(errs, fmt.Errorf("vector_weight must be between 0 and 1, got %g", c.Search.VectorWeight))
	}
	if c.Search.TextWeight == 0 && c.Search.VectorWeight == 0 {
		errs = append(errs, errors.New("text_weight and vector_weight must not both be zero"))
	}
	if c.Search.Limit < 1 {
		errs = append(errs, fmt.Errorf("search limit must be at least 1, got %d", c.Search.Limit))
	}
	if c.Search.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("max_tokens must be at least 1, got %d", c.Search.MaxTokens))
	}
	if c.Index.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Index.Workers))
	}
	if !oneOf(c.Embedding.Provider, validProviders) {
		errs = append(errs, fmt.Errorf("embedding provider must be one of %s, got %q",
			strings.Join(validProviders, ", "), c.Embedding.Provider))
	}
	if !oneOf(c.Chunker.Strategy, validStrategies) {
		errs = append(errs, fmt.Errorf("chunker must be one of %s, got %q",
			strings.Join(validStrategies, ", "), c.Chunker.Strategy))
	}
	if !oneOf(c.Log.Level, validLevels) {
		errs = append(errs, fmt.Errorf("log level must be one of %s, got %q",
			strings.Join(validLevels, ", "), c.Log.Level))
	}
	if !oneOf(c.Log.Format, validFormats) {
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.Log.Format))
	}
	if !oneOf(c.Server.Transport, validTransports) {
		errs = append(errs, fmt.Errorf("transport must be stdio or http, got %q", c.Server.Transport))
	}
	if _, err := filepath.Match(c.Index.Pattern, "x.lua"); err != nil {
		errs = append(errs, fmt.Errorf("invalid file pattern %q: %w", c.Index.Pattern, err))
	}

	return errors.Join(errs...)
}

func oneOf(v string, valid []string) bool {
	v = strings.ToLower(v)
	for _, ok := range valid {
		if v == ok {
			return true
		}
	}
	return false
}

// WriteYAML writes the configuration to a YAML file
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// ChunkerOptions converts the chunker section
func (c *Config) ChunkerOptions() chunker.Options {
	opts := chunker.Options{
		MinNodeBytes:  c.Chunker.MinNodeBytes,
		SpanLines:     c.Chunker.SpanLines,
		SegmentLines:  c.Chunker.SegmentLines,
		MinBlockLines: c.Chunker.MinBlockLines,
		MaxScanLines:  c.Chunker.MaxScanLines,
	}
	if len(c.Chunker.Keywords) > 0 {
		opts.Keywords = c.Chunker.Keywords
	}
	return opts
}

// EmbedderConfig converts the embedding section
func (c *Config) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:  c.Embedding.Provider,
		Model:     c.Embedding.Model,
		BaseURL:   c.Embedding.BaseURL,
		APIKey:    c.Embedding.APIKey,
		Dimension: c.Embedding.Dimension,
		CacheSize: c.Embedding.CacheSize,
		Timeout:   c.Embedding.Timeout,
	}
}

// Weights returns the configured fusion weights
func (c *Config) Weights() retriever.Weights {
	return retriever.Weights{Text: c.Search.TextWeight, Vector: c.Search.VectorWeight}
}

// DirectoryOptions returns the default directory run options
func (c *Config) DirectoryOptions() indexer.DirectoryOptions {
	return indexer.DirectoryOptions{Recursive: c.Index.Recursive, Pattern: c.Index.Pattern}
}
