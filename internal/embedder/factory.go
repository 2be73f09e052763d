package embedder

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by NewFromEnv
const (
	EnvProvider     = "EMBEDDING_PROVIDER"
	EnvModel        = "EMBEDDING_MODEL"
	EnvOllamaURL    = "OLLAMA_BASE_URL"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvOpenAIURL    = "OPENAI_BASE_URL"
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvDimension    = "EMBEDDING_DIMENSION"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	Dimension int // 0 means the provider default
	CacheSize int // 0 means DefaultCacheSize, negative disables caching
	Timeout   time.Duration
}

// New creates an embedder with explicit configuration. Unless caching is
// disabled the provider is wrapped in a CachedEmbedder.
func New(cfg Config) (Embedder, error) {
	inner, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize < 0 {
		return inner, nil
	}
	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}

func newProvider(cfg Config) (Embedder, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderOllama
	}

	switch provider {
	case ProviderOllama:
		dim := cfg.Dimension
		if dim == 0 && (cfg.Model == "" || cfg.Model == DefaultOllamaModel) {
			dim = OllamaDimension
		}
		return NewOllamaProvider(cfg.BaseURL, cfg.Model, dim, cfg.Timeout), nil
	case ProviderOpenAI:
		dim := cfg.Dimension
		if dim == 0 && (cfg.Model == "" || cfg.Model == DefaultOpenAIModel) {
			dim = OpenAIDimension
		}
		return NewOpenAIProvider(ProviderOpenAI, cfg.APIKey, cfg.BaseURL, cfg.Model, dim, cfg.Timeout)
	case ProviderLocal:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultLocalURL
		}
		return NewOpenAIProvider(ProviderLocal, cfg.APIKey, baseURL, cfg.Model, cfg.Dimension, cfg.Timeout)
	case ProviderJina:
		dim := cfg.Dimension
		if dim == 0 && (cfg.Model == "" || cfg.Model == DefaultJinaModel) {
			dim = JinaDimension
		}
		return NewJinaProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, dim, cfg.Timeout)
	case ProviderMock:
		return NewMockProvider(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// ConfigFromEnv builds a Config from the environment
func ConfigFromEnv() Config {
	cfg := Config{
		Provider: DetectProvider(),
		Model:    os.Getenv(EnvModel),
	}

	switch cfg.Provider {
	case ProviderOllama:
		cfg.BaseURL = os.Getenv(EnvOllamaURL)
	case ProviderOpenAI, ProviderLocal:
		cfg.APIKey = os.Getenv(EnvOpenAIAPIKey)
		cfg.BaseURL = os.Getenv(EnvOpenAIURL)
	case ProviderJina:
		cfg.APIKey = os.Getenv(EnvJinaAPIKey)
	}

	if v := os.Getenv(EnvDimension); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Dimension = n
		}
	}
	return cfg
}

// NewFromEnv creates an embedder based on environment variables
func NewFromEnv() (Embedder, error) {
	return New(ConfigFromEnv())
}

// DetectProvider returns the provider that would be used based on current environment.
// An explicit EMBEDDING_PROVIDER wins; otherwise ollama is the default.
func DetectProvider() string {
	if provider := os.Getenv(EnvProvider); provider != "" {
		return strings.ToLower(strings.TrimSpace(provider))
	}
	return ProviderOllama
}
