package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexFileTool returns the tool definition for index_file
func indexFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_file",
		Description: "Index or re-index a single Lua file. Unchanged files are skipped.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Path to the Lua file",
				},
			},
			Required: []string{"file_path"},
		},
	}
}

// indexDirectoryTool returns the tool definition for index_directory
func indexDirectoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_directory",
		Description: "Index every matching Lua file under a directory",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"directory_path": map[string]interface{}{
					"type":        "string",
					"description": "Directory to index",
				},
				"recursive": map[string]interface{}{
					"type":        "boolean",
					"description": "Descend into subdirectories",
					"default":     true,
				},
				"file_pattern": map[string]interface{}{
					"type":        "string",
					"description": "Glob over file names",
					"default":     "*.lua",
				},
			},
			Required: []string{"directory_path"},
		},
	}
}

// deleteFileTool returns the tool definition for delete_file
func deleteFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_file",
		Description: "Remove a file and all of its chunks from the index",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Indexed path of the file",
				},
			},
			Required: []string{"file_path"},
		},
	}
}

// searchCodeTool returns the tool definition for search_code
func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Search indexed DCS World Lua code by keyword or natural language",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (identifier, keyword or natural language)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"search_type": map[string]interface{}{
					"type":        "string",
					"description": "text (substring), vector (semantic) or hybrid (weighted fusion of both)",
					"enum":        []string{"text", "vector", "hybrid"},
					"default":     "hybrid",
				},
				"text_weight": map[string]interface{}{
					"type":        "number",
					"description": "Hybrid weight of the text score (0.0-1.0)",
					"minimum":     0.0,
					"maximum":     1.0,
				},
				"vector_weight": map[string]interface{}{
					"type":        "number",
					"description": "Hybrid weight of the vector score (0.0-1.0)",
					"minimum":     0.0,
					"maximum":     1.0,
				},
			},
			Required: []string{"query"},
		},
	}
}

// getContextTool returns the tool definition for get_context
func getContextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_context",
		Description: "Build a token-bounded context block of relevant Lua code for a prompt",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "What the context is for",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of chunks to consider (1-100)",
					"default":     5,
					"minimum":     1,
					"maximum":     100,
				},
				"max_tokens": map[string]interface{}{
					"type":        "integer",
					"description": "Token budget of the context block (estimated as characters/4)",
					"default":     8000,
					"minimum":     1,
				},
				"detailed": map[string]interface{}{
					"type":        "boolean",
					"description": "Also return the included results",
					"default":     true,
				},
			},
			Required: []string{"query"},
		},
	}
}

// getRelatedChunksTool returns the tool definition for get_related_chunks
func getRelatedChunksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_related_chunks",
		Description: "Return chunks from the same file as a chunk, nearest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"chunk_id": map[string]interface{}{
					"type":        "integer",
					"description": "Id of the reference chunk",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of chunks (1-100)",
					"default":     5,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"chunk_id"},
		},
	}
}

// enhancePromptTool returns the tool definition for enhance_prompt
func enhancePromptTool() mcp.Tool {
	return mcp.Tool{
		Name:        "enhance_prompt",
		Description: "Wrap a DCS scripting question with retrieved XSAF code context",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"prompt": map[string]interface{}{
					"type":        "string",
					"description": "The user's question",
				},
			},
			Required: []string{"prompt"},
		},
	}
}

// getStatsTool returns the tool definition for get_stats
func getStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_stats",
		Description: "Report index statistics and the active embedding provider",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
