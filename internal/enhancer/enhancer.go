package enhancer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dshills/luarag/internal/retriever"
	"github.com/dshills/luarag/pkg/types"
)

// SnippetLimit is how many chunks are retrieved for one prompt
const SnippetLimit = 5

// DefaultVocabulary decides whether a prompt is about DCS mission scripting
var DefaultVocabulary = []string{
	"dcs", "lua", "mission", "script", "trigger", "event", "xsaf",
	"waypoint", "aircraft", "helicopter", "unit", "group", "coalition",
	"task", "zone", "airbase", "missioncommands", "timer", "scheduler",
}

// Searcher is the retrieval the enhancer needs
type Searcher interface {
	HybridSearch(ctx context.Context, q string, limit int, w retriever.Weights) *types.SearchResponse
}

// Config names the assistant in the generated prompts
type Config struct {
	Domain     string // default "DCS World"
	Codebase   string // default "XSAF"
	Vocabulary []string
	MaxTokens  int
	Logger     *slog.Logger
}

// Result is the outcome of enhancing one prompt
type Result struct {
	Prompt       string `json:"enhanced_prompt"`
	Enhanced     bool   `json:"enhanced"`
	SnippetCount int    `json:"snippet_count"`
}

// Enhancer wraps user prompts with retrieved code context
type Enhancer struct {
	searcher Searcher
	cfg      Config
	vocab    []string
	logger   *slog.Logger
}

// New creates an Enhancer
func New(s Searcher, cfg Config) *Enhancer {
	if cfg.Domain == "" {
		cfg.Domain = "DCS World"
	}
	if cfg.Codebase == "" {
		cfg.Codebase = "XSAF"
	}
	if cfg.Vocabulary == nil {
		cfg.Vocabulary = DefaultVocabulary
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = retriever.DefaultMaxTokens
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	vocab := make([]string, len(cfg.Vocabulary))
	for i, w := range cfg.Vocabulary {
		vocab[i] = strings.ToLower(w)
	}
	return &Enhancer{searcher: s, cfg: cfg, vocab: vocab, logger: cfg.Logger.With("component", "enhancer")}
}

// IsDomainRelated reports whether query mentions any vocabulary word,
// case-insensitively and as a substring.
func (e *Enhancer) IsDomainRelated(query string) bool {
	q := strings.ToLower(query)
	for _, w := range e.vocab {
		if w != "" && strings.Contains(q, w) {
			return true
		}
	}
	return false
}

// Enhance returns prompt wrapped with retrieved snippets. Unrelated prompts
// and failed retrievals come back unchanged with Enhanced false.
func (e *Enhancer) Enhance(ctx context.Context, prompt string) Result {
	original := Result{Prompt: prompt}
	if strings.TrimSpace(prompt) == "" || !e.IsDomainRelated(prompt) {
		return original
	}

	resp := e.searcher.HybridSearch(ctx, prompt, SnippetLimit, retriever.Weights{})
	if resp == nil {
		return original
	}
	if len(resp.Results) == 0 {
		if len(resp.Degraded) > 0 {
			e.logger.Warn("retrieval failed, returning original prompt", "degraded", len(resp.Degraded))
			return original
		}
		return Result{Prompt: e.withoutSnippets(prompt), Enhanced: true}
	}

	snippets, n := retriever.FormatContext(resp.Results, e.cfg.MaxTokens)
	if n == 0 {
		return Result{Prompt: e.withoutSnippets(prompt), Enhanced: true}
	}
	return Result{Prompt: e.withSnippets(snippets, prompt), Enhanced: true, SnippetCount: n}
}

func (e *Enhancer) withSnippets(snippets, query string) string {
	return fmt.Sprintf(`You are an expert in %[1]s Lua programming assistant.
Use the following relevant code snippets from the %[2]s codebase to help answer the question.

%[3]s

Question: %[4]s

Instructions:
- Reference specific functions, variables, or patterns from the provided code snippets when relevant
- Explain how the code works and provide examples based on the %[2]s patterns shown
- If the code snippets don't contain relevant information, acknowledge this and provide general %[5]s Lua guidance
`, e.cfg.Domain, e.cfg.Codebase, snippets, query, shortDomain(e.cfg.Domain))
}

func (e *Enhancer) withoutSnippets(query string) string {
	return fmt.Sprintf(`You are an expert in %[1]s Lua programming assistant.

Question: %[2]s

Instructions:
- Provide detailed guidance for %[1]s Lua scripting
- Include practical examples and best practices
- Focus on %[3]s-specific APIs and patterns
`, e.cfg.Domain, query, shortDomain(e.cfg.Domain))
}

// shortDomain is the first word of the domain name, "DCS" for "DCS World"
func shortDomain(domain string) string {
	if f := strings.Fields(domain); len(f) > 0 {
		return f[0]
	}
	return domain
}
