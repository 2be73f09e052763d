// Package mcp implements the Model Context Protocol (MCP) server for luarag.
//
// The server exposes the indexing and retrieval operations to AI coding
// assistants as tools:
//   - index_file, index_directory, delete_file: maintain the index
//   - search_code: text, vector or hybrid search
//   - get_context: a token-bounded context block for an LLM prompt
//   - get_related_chunks: neighbours of a chunk in the same file
//   - enhance_prompt: wrap a DCS question with retrieved XSAF code
//   - get_stats: index statistics and the embedding provider
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Every tool answers with a single JSON text content block.
//
// # Tool: search_code
//
//	Request:
//	{
//	  "name": "search_code",
//	  "arguments": {
//	    "query": "spawn escort group",
//	    "limit": 5,
//	    "search_type": "hybrid"
//	  }
//	}
//
//	Response:
//	{
//	  "query": "spawn escort group",
//	  "search_type": "hybrid",
//	  "results": [
//	    {
//	      "id": 42,
//	      "file_path": "XSAF/escort.lua",
//	      "chunk_type": "function",
//	      "content": "function spawnEscort(group, zone) ... end",
//	      "metadata": {"function_name": "spawnEscort", "parameters": ["group", "zone"]},
//	      "line_start": 12,
//	      "line_end": 30,
//	      "score": 0.81,
//	      "text_score": 1,
//	      "vector_score": 0.73
//	    }
//	  ],
//	  "count": 1
//	}
//
// A search mode that fails is listed under "degraded" and the response
// carries whatever the other mode found.
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "luarag": {
//	      "command": "/usr/local/bin/luarag",
//	      "args": ["serve"],
//	      "env": {
//	        "EMBEDDING_PROVIDER": "ollama"
//	      }
//	    }
//	  }
//	}
//
// # Error Handling
//
// Errors carry a JSON-RPC code:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (database, provider, etc.)
//   - -32001: Path not found
//   - -32002: Indexing in progress
//   - -32004: Empty query
//
// # Logging
//
// The server logs to stderr; stdout is reserved for the MCP protocol.
package mcp
