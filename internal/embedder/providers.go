package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dshills/luarag/pkg/types"
)

// Provider configuration
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"
	ProviderJina   = "jina"
	ProviderMock   = "mock"

	// Default models
	DefaultOllamaModel = "nomic-embed-text"
	DefaultOpenAIModel = "text-embedding-ada-002"
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultMockModel   = "mock-bow"

	// Dimensions
	OllamaDimension = 768
	OpenAIDimension = 1536
	JinaDimension   = 1024
	MockDimension   = 256

	// Endpoints
	DefaultOllamaURL = "http://localhost:11434"
	DefaultJinaURL   = "https://api.jina.ai"
	DefaultLocalURL  = "http://localhost:8080/v1"

	// MaxBatchSize bounds the texts sent in one provider request
	MaxBatchSize = 100

	// DefaultCacheSize is the default number of cached embeddings
	DefaultCacheSize = 1000

	// DefaultTimeout bounds one provider request
	DefaultTimeout = 30 * time.Second
)

// batches splits texts into MaxBatchSize groups
func batches(texts []string) [][]string {
	var out [][]string
	for start := 0; start < len(texts); start += MaxBatchSize {
		end := start + MaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		out = append(out, texts[start:end])
	}
	return out
}

// runBatches embeds texts group by group and assembles the response
func runBatches(ctx context.Context, provider, model string, dimension int, texts []string,
	call func(context.Context, []string) ([][]float32, error)) (*BatchEmbeddingResponse, error) {
	resp := &BatchEmbeddingResponse{
		Embeddings: make([]*Embedding, 0, len(texts)),
		Provider:   provider,
		Model:      model,
	}
	for _, group := range batches(texts) {
		vectors, err := call(ctx, group)
		if err != nil {
			return nil, types.ProviderError(provider+" embed", err)
		}
		if err := checkVectors(vectors, len(group), dimension); err != nil {
			return nil, types.ProviderError(provider+" embed", err)
		}
		for _, v := range vectors {
			resp.Embeddings = append(resp.Embeddings, &Embedding{
				Vector:    v,
				Dimension: len(v),
				Provider:  provider,
				Model:     model,
			})
		}
	}
	return resp, nil
}

// single embeds one text through the batch path
func single(ctx context.Context, e Embedder, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	resp, err := e.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, types.ProviderError(e.Provider()+" embed", fmt.Errorf("no embeddings returned"))
	}
	return resp.Embeddings[0], nil
}

// postJSON sends body to url and decodes a 2xx JSON response into out
func postJSON(ctx context.Context, client *http.Client, url, apiKey string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api error %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// OllamaProvider implements Embedder using the Ollama /api/embed endpoint
type OllamaProvider struct {
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
}

// NewOllamaProvider creates an Ollama embedder
func NewOllamaProvider(baseURL, model string, dimension int, timeout time.Duration) *OllamaProvider {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OllamaProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (o *OllamaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return single(ctx, o, req)
}

func (o *OllamaProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	return runBatches(ctx, ProviderOllama, o.model, o.dimension, req.Texts, o.callAPI)
}

func (o *OllamaProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"model": o.model,
		"input": texts,
	}
	var apiResp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := postJSON(ctx, o.httpClient, o.baseURL+"/api/embed", "", reqBody, &apiResp); err != nil {
		return nil, err
	}
	return apiResp.Embeddings, nil
}

func (o *OllamaProvider) Dimension() int {
	if o.dimension == 0 {
		return OllamaDimension
	}
	return o.dimension
}

func (o *OllamaProvider) Provider() string {
	return ProviderOllama
}

func (o *OllamaProvider) Model() string {
	return o.model
}

func (o *OllamaProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// JinaProvider implements Embedder using the Jina AI embeddings API
type JinaProvider struct {
	apiKey     string
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
}

// NewJinaProvider creates a new Jina AI embedder
func NewJinaProvider(apiKey, baseURL, model string, dimension int, timeout time.Duration) (*JinaProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvJinaAPIKey)
	}
	if baseURL == "" {
		baseURL = DefaultJinaURL
	}
	if model == "" {
		model = DefaultJinaModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &JinaProvider{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (j *JinaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return single(ctx, j, req)
}

func (j *JinaProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	return runBatches(ctx, ProviderJina, j.model, j.dimension, req.Texts, j.callAPI)
}

func (j *JinaProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"input": texts,
		"model": j.model,
	}
	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := postJSON(ctx, j.httpClient, j.baseURL+"/v1/embeddings", j.apiKey, reqBody, &apiResp); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(apiResp.Data))
	for _, d := range apiResp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

func (j *JinaProvider) Dimension() int {
	if j.dimension == 0 {
		return JinaDimension
	}
	return j.dimension
}

func (j *JinaProvider) Provider() string {
	return ProviderJina
}

func (j *JinaProvider) Model() string {
	return j.model
}

func (j *JinaProvider) Close() error {
	j.httpClient.CloseIdleConnections()
	return nil
}

// OpenAIProvider implements Embedder with the go-openai client. With a custom
// base URL it serves any OpenAI-compatible embeddings server.
type OpenAIProvider struct {
	client     *openai.Client
	httpClient *http.Client
	name       string
	model      string
	dimension  int
}

// NewOpenAIProvider creates an OpenAI embedder. name is ProviderOpenAI or
// ProviderLocal; a local provider does not require an API key.
func NewOpenAIProvider(name, apiKey, baseURL, model string, dimension int, timeout time.Duration) (*OpenAIProvider, error) {
	if apiKey == "" && name == ProviderOpenAI {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	httpClient := &http.Client{Timeout: timeout}
	cfg.HTTPClient = httpClient

	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(cfg),
		httpClient: httpClient,
		name:       name,
		model:      model,
		dimension:  dimension,
	}, nil
}

func (o *OpenAIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return single(ctx, o, req)
}

func (o *OpenAIProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	return runBatches(ctx, o.name, o.model, o.dimension, req.Texts, o.callAPI)
}

func (o *OpenAIProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(o.model),
	})
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

func (o *OpenAIProvider) Dimension() int {
	if o.dimension == 0 {
		return OpenAIDimension
	}
	return o.dimension
}

func (o *OpenAIProvider) Provider() string {
	return o.name
}

func (o *OpenAIProvider) Model() string {
	return o.model
}

func (o *OpenAIProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// MockProvider is an offline embedder. Each word is hashed into a bucket of
// a bag-of-words vector, so texts sharing identifiers land close together.
type MockProvider struct {
	dimension int
}

// NewMockProvider creates a deterministic offline embedder
func NewMockProvider(dimension int) *MockProvider {
	if dimension <= 0 {
		dimension = MockDimension
	}
	return &MockProvider{dimension: dimension}
}

func (m *MockProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return single(ctx, m, req)
}

func (m *MockProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	return runBatches(ctx, ProviderMock, DefaultMockModel, m.dimension, req.Texts,
		func(ctx context.Context, texts []string) ([][]float32, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out := make([][]float32, len(texts))
			for i, t := range texts {
				out[i] = m.vector(t)
			}
			return out, nil
		})
}

func (m *MockProvider) vector(text string) []float32 {
	v := make([]float32, m.dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(m.dimension)]++
	}
	return NormalizeVector(v)
}

func (m *MockProvider) Dimension() int {
	return m.dimension
}

func (m *MockProvider) Provider() string {
	return ProviderMock
}

func (m *MockProvider) Model() string {
	return DefaultMockModel
}

func (m *MockProvider) Close() error {
	return nil
}
