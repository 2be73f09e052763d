package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/luarag/internal/indexer"
	"github.com/dshills/luarag/internal/retriever"
	"github.com/dshills/luarag/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodePathNotFound       = -32001 // Specified path does not exist
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // File or chunk not in the index
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

// maxReportedErrors caps the per-file errors echoed by index_directory
const maxReportedErrors = 5

// handleIndexFile handles the index_file tool invocation
func (s *Server) handleIndexFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requireString(args, "file_path")
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, newMCPError(ErrorCodePathNotFound, "file not found", map[string]interface{}{
			"param":  "file_path",
			"reason": err.Error(),
		})
	}
	if info.IsDir() {
		return nil, newMCPError(ErrorCodeInvalidParams, "file_path is a directory, use index_directory", map[string]interface{}{
			"param": "file_path",
		})
	}

	res, err := s.app.IndexFile(ctx, path)
	if err != nil {
		return nil, indexError(err)
	}

	return mcp.NewToolResultText(formatJSON(res)), nil
}

// handleIndexDirectory handles the index_directory tool invocation
func (s *Server) handleIndexDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	dir, err := requireString(args, "directory_path")
	if err != nil {
		return nil, err
	}

	if err := validateDir(dir); err != nil {
		return nil, newMCPError(ErrorCodePathNotFound, "invalid directory", map[string]interface{}{
			"param":  "directory_path",
			"reason": err.Error(),
		})
	}

	opts := indexer.DirectoryOptions{
		Recursive: getBoolDefault(args, "recursive", s.app.Config.Index.Recursive),
		Pattern:   getStringDefault(args, "file_pattern", s.app.Config.Index.Pattern),
	}

	result, err := s.app.IndexDirectory(ctx, dir, opts)
	if err != nil && result == nil {
		return nil, indexError(err)
	}

	response := map[string]interface{}{
		"run_id":      result.RunID,
		"indexed":     result.Indexed,
		"unchanged":   result.Unchanged,
		"succeeded":   result.Succeeded(),
		"failed":      result.Failed,
		"excluded":    result.Excluded,
		"removed":     result.Removed,
		"duration_ms": result.Duration.Milliseconds(),
	}
	if err != nil {
		response["interrupted"] = err.Error()
	}

	if len(result.Errors) > 0 {
		// Include first few errors
		errorCount := len(result.Errors)
		if errorCount > maxReportedErrors {
			response["errors"] = result.Errors[:maxReportedErrors]
			response["error_count"] = errorCount
		} else {
			response["errors"] = result.Errors
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleDeleteFile handles the delete_file tool invocation
func (s *Server) handleDeleteFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requireString(args, "file_path")
	if err != nil {
		return nil, err
	}

	deleted, err := s.app.DeleteFile(ctx, path)
	if err != nil {
		return nil, indexError(err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"file_path": path,
		"deleted":   deleted,
	})), nil
}

// handleSearchCode handles the search_code tool invocation
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, err := requireQuery(args, "query")
	if err != nil {
		return nil, err
	}

	limit, err := getLimit(args, "limit", s.app.Config.Search.Limit)
	if err != nil {
		return nil, err
	}

	searchType := getStringDefault(args, "search_type", string(types.SearchModeHybrid))
	mode := types.SearchMode(searchType)
	if mode != types.SearchModeText && mode != types.SearchModeVector && mode != types.SearchModeHybrid {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid search_type", map[string]interface{}{
			"param":   "search_type",
			"value":   searchType,
			"allowed": []string{"text", "vector", "hybrid"},
		})
	}

	weights := s.app.Config.Weights()
	weights.Text = getFloatDefault(args, "text_weight", weights.Text)
	weights.Vector = getFloatDefault(args, "vector_weight", weights.Vector)
	if err := weights.Validate(); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid weights", map[string]interface{}{
			"reason": err.Error(),
		})
	}

	resp, err := s.app.Retriever.Search(ctx, retriever.SearchRequest{
		Query:   query,
		Limit:   limit,
		Mode:    mode,
		Weights: weights,
	})
	if err != nil {
		return nil, searchError(err)
	}

	return mcp.NewToolResultText(formatJSON(resp)), nil
}

// handleGetContext handles the get_context tool invocation
func (s *Server) handleGetContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, err := requireQuery(args, "query")
	if err != nil {
		return nil, err
	}

	limit, err := getLimit(args, "limit", 5)
	if err != nil {
		return nil, err
	}

	maxTokens := getIntDefault(args, "max_tokens", s.app.Retriever.MaxTokens())
	if maxTokens < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "max_tokens must be at least 1", map[string]interface{}{
			"param": "max_tokens",
			"value": maxTokens,
		})
	}

	resp, err := s.app.Retriever.GetContext(ctx, query, limit, maxTokens)
	if err != nil {
		return nil, searchError(err)
	}
	if !getBoolDefault(args, "detailed", true) {
		resp.Results = nil
	}

	return mcp.NewToolResultText(formatJSON(resp)), nil
}

// handleGetRelatedChunks handles the get_related_chunks tool invocation
func (s *Server) handleGetRelatedChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	if _, ok := args["chunk_id"]; !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "chunk_id parameter is required", map[string]interface{}{
			"param":  "chunk_id",
			"reason": "missing",
		})
	}
	chunkID := int64(getIntDefault(args, "chunk_id", 0))

	limit, err := getLimit(args, "limit", retriever.DefaultRelatedLimit)
	if err != nil {
		return nil, err
	}

	results, err := s.app.Retriever.GetRelatedChunks(ctx, chunkID, limit)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get related chunks", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"chunk_id": chunkID,
		"results":  results,
		"count":    len(results),
	})), nil
}

// handleEnhancePrompt handles the enhance_prompt tool invocation
func (s *Server) handleEnhancePrompt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	prompt, err := requireString(args, "prompt")
	if err != nil {
		return nil, err
	}

	return mcp.NewToolResultText(formatJSON(s.app.Enhancer.Enhance(ctx, prompt))), nil
}

// handleGetStats handles the get_stats tool invocation
func (s *Server) handleGetStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.app.Stats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get stats", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(stats)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// indexError maps an indexing failure to an MCP error
func indexError(err error) error {
	data := map[string]interface{}{"error": err.Error()}
	switch {
	case errors.Is(err, indexer.ErrIndexLocked):
		return newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", data)
	case errors.Is(err, types.ErrEmptyContent), errors.Is(err, types.ErrInvalidChunk):
		return newMCPError(ErrorCodeInvalidParams, "file cannot be indexed", data)
	case errors.Is(err, os.ErrNotExist):
		return newMCPError(ErrorCodePathNotFound, "file not found", data)
	default:
		return newMCPError(ErrorCodeInternalError, "indexing failed", data)
	}
}

// searchError maps a retrieval failure to an MCP error
func searchError(err error) error {
	if errors.Is(err, types.ErrEmptyQuery) {
		return newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", nil)
	}
	return newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
		"error": err.Error(),
	})
}

// validateDir checks that path is an existing directory
func validateDir(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}
	return nil
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// requireString extracts a mandatory non-empty string parameter
func requireString(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || val == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return val, nil
}

// requireQuery is requireString with the empty-query error code
func requireQuery(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || val == "" {
		return "", newMCPError(ErrorCodeEmptyQuery, key+" parameter is required and cannot be empty", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return val, nil
}

// getLimit extracts a 1-100 limit parameter
func getLimit(args map[string]interface{}, key string, defaultValue int) (int, error) {
	limit := getIntDefault(args, key, defaultValue)
	if limit < 1 || limit > retriever.MaxLimit {
		return 0, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("%s must be between 1 and %d", key, retriever.MaxLimit), map[string]interface{}{
			"param": key,
			"value": limit,
		})
	}
	return limit, nil
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a number parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	switch val := args[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
