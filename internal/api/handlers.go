package api

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/dshills/luarag/internal/app"
	"github.com/dshills/luarag/internal/indexer"
	"github.com/dshills/luarag/internal/retriever"
	"github.com/dshills/luarag/pkg/types"
)

// defaultLimit matches the original API's request default
const defaultLimit = 5

// Handler implements the API endpoints
type Handler struct {
	app    *app.App
	logger *slog.Logger
}

// SearchRequest is the body of POST /search
type SearchRequest struct {
	Query        string   `json:"query"`
	Limit        int      `json:"limit"`
	SearchType   string   `json:"search_type"`
	TextWeight   *float64 `json:"text_weight"`
	VectorWeight *float64 `json:"vector_weight"`
}

// ContextRequest is the body of POST /context
type ContextRequest struct {
	Query     string `json:"query"`
	Limit     int    `json:"limit"`
	Detailed  *bool  `json:"detailed"`
	MaxTokens int    `json:"max_tokens"`
}

// EnhancePromptRequest is the body of POST /enhance_prompt
type EnhancePromptRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

// IndexFileRequest is the body of POST /index/file
type IndexFileRequest struct {
	FilePath string `json:"file_path"`
}

// IndexDirectoryRequest is the body of POST /index/directory
type IndexDirectoryRequest struct {
	DirectoryPath string `json:"directory_path"`
	Recursive     *bool  `json:"recursive"`
	FilePattern   string `json:"file_pattern"`
}

// Root describes the service
func (h *Handler) Root(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "luarag API", "status": "operational"})
}

// Health reports liveness
func (h *Handler) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "healthy"})
}

// Stats returns index statistics
func (h *Handler) Stats(c fiber.Ctx) error {
	stats, err := h.app.Stats(c.Context())
	if err != nil {
		return h.internal(c, "stats", err)
	}
	return c.JSON(stats)
}

// Search runs a text, vector or hybrid search
func (h *Handler) Search(c fiber.Ctx) error {
	var input SearchRequest
	if err := c.Bind().Body(&input); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(input.Query) == "" {
		return badRequest(c, "query is required")
	}

	limit, err := checkLimit(input.Limit)
	if err != nil {
		return badRequest(c, err.Error())
	}

	mode := types.SearchMode(input.SearchType)
	if mode == "" {
		mode = types.SearchModeHybrid
	}
	if mode != types.SearchModeText && mode != types.SearchModeVector && mode != types.SearchModeHybrid {
		return badRequest(c, "search_type must be text, vector or hybrid")
	}

	weights := h.app.Config.Weights()
	if input.TextWeight != nil {
		weights.Text = *input.TextWeight
	}
	if input.VectorWeight != nil {
		weights.Vector = *input.VectorWeight
	}
	if err := weights.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	resp, err := h.app.Retriever.Search(c.Context(), retriever.SearchRequest{
		Query:   input.Query,
		Limit:   limit,
		Mode:    mode,
		Weights: weights,
	})
	if err != nil {
		return h.internal(c, "search", err)
	}
	return c.JSON(resp)
}

// Context returns a formatted, token-bounded context block
func (h *Handler) Context(c fiber.Ctx) error {
	var input ContextRequest
	if err := c.Bind().Body(&input); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(input.Query) == "" {
		return badRequest(c, "query is required")
	}

	limit, err := checkLimit(input.Limit)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if input.MaxTokens < 0 {
		return badRequest(c, "max_tokens must be positive")
	}

	resp, err := h.app.Retriever.GetContext(c.Context(), input.Query, limit, input.MaxTokens)
	if err != nil {
		return h.internal(c, "context", err)
	}
	if input.Detailed != nil && !*input.Detailed {
		resp.Results = nil
	} else if resp.Results == nil {
		resp.Results = []types.SearchResult{}
	}
	return c.JSON(resp)
}

// EnhancePrompt wraps a prompt with retrieved code context
func (h *Handler) EnhancePrompt(c fiber.Ctx) error {
	var input EnhancePromptRequest
	if err := c.Bind().Body(&input); err != nil {
		return badRequest(c, "invalid request body")
	}
	if input.Prompt == "" {
		return badRequest(c, "prompt is required")
	}

	res := h.app.Enhancer.Enhance(c.Context(), input.Prompt)
	return c.JSON(fiber.Map{"enhanced_prompt": res.Prompt})
}

// RelatedChunks returns chunks near a chunk in the same file
func (h *Handler) RelatedChunks(c fiber.Ctx) error {
	id := fiber.Params[int64](c, "id", -1)
	if id < 0 {
		return badRequest(c, "chunk id must be a non-negative integer")
	}
	limit := fiber.Query[int](c, "limit", retriever.DefaultRelatedLimit)
	if limit < 1 || limit > retriever.MaxLimit {
		return badRequest(c, "limit must be between 1 and 100")
	}

	results, err := h.app.Retriever.GetRelatedChunks(c.Context(), id, limit)
	if err != nil {
		return h.internal(c, "related chunks", err)
	}
	return c.JSON(fiber.Map{"chunk_id": id, "results": results, "count": len(results)})
}

// IndexFile indexes one file
func (h *Handler) IndexFile(c fiber.Ctx) error {
	var input IndexFileRequest
	if err := c.Bind().Body(&input); err != nil {
		return badRequest(c, "invalid request body")
	}
	if input.FilePath == "" {
		return badRequest(c, "file_path is required")
	}

	info, err := os.Stat(input.FilePath)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "file not found"})
	}
	if info.IsDir() {
		return badRequest(c, "file_path is a directory")
	}

	res, err := h.app.IndexFile(c.Context(), input.FilePath)
	if err != nil {
		return h.indexFailure(c, err)
	}
	return c.JSON(res)
}

// IndexDirectory indexes a directory tree
func (h *Handler) IndexDirectory(c fiber.Ctx) error {
	var input IndexDirectoryRequest
	if err := c.Bind().Body(&input); err != nil {
		return badRequest(c, "invalid request body")
	}
	if input.DirectoryPath == "" {
		return badRequest(c, "directory_path is required")
	}

	info, err := os.Stat(input.DirectoryPath)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "directory not found"})
	}
	if !info.IsDir() {
		return badRequest(c, "directory_path is not a directory")
	}

	opts := h.app.Config.DirectoryOptions()
	if input.Recursive != nil {
		opts.Recursive = *input.Recursive
	}
	if input.FilePattern != "" {
		opts.Pattern = input.FilePattern
	}

	res, err := h.app.IndexDirectory(c.Context(), input.DirectoryPath, opts)
	if err != nil && res == nil {
		return h.indexFailure(c, err)
	}
	return c.JSON(fiber.Map{
		"run_id":      res.RunID,
		"indexed":     res.Indexed,
		"unchanged":   res.Unchanged,
		"succeeded":   res.Succeeded(),
		"failed":      res.Failed,
		"excluded":    res.Excluded,
		"removed":     res.Removed,
		"errors":      res.Errors,
		"duration_ms": res.Duration.Milliseconds(),
	})
}

// DeleteFile removes a file from the index
func (h *Handler) DeleteFile(c fiber.Ctx) error {
	path := c.Query("path")
	if path == "" {
		return badRequest(c, "path query parameter is required")
	}

	deleted, err := h.app.DeleteFile(c.Context(), path)
	if err != nil {
		return h.indexFailure(c, err)
	}
	return c.JSON(fiber.Map{"file_path": path, "deleted": deleted})
}

func checkLimit(limit int) (int, error) {
	if limit == 0 {
		return defaultLimit, nil
	}
	if limit < 1 || limit > retriever.MaxLimit {
		return 0, errors.New("limit must be between 1 and 100")
	}
	return limit, nil
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func (h *Handler) internal(c fiber.Ctx, op string, err error) error {
	h.logger.Error("request failed", "op", op, "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

func (h *Handler) indexFailure(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, indexer.ErrIndexLocked):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, types.ErrEmptyContent):
		return badRequest(c, err.Error())
	default:
		return h.internal(c, "index", err)
	}
}
