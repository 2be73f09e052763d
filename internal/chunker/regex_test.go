package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/luarag/pkg/types"
)

func regexChunks(t *testing.T, src string) []types.Chunk {
	t.Helper()
	return NewRegex(DefaultOptions()).Chunk(context.Background(), src, "test.lua")
}

func TestRegex_SimpleFunction(t *testing.T) {
	chunks := regexChunks(t, "function foo(a, b)\n  return a+b\nend\n")

	require.Len(t, chunks, 1)
	c := chunks[0]
	assert.Equal(t, types.ChunkFunction, c.ChunkType)
	assert.Equal(t, 1, c.LineStart)
	assert.Equal(t, 3, c.LineEnd)
	assert.Equal(t, "foo", c.Metadata.FunctionName())
	assert.Equal(t, []string{"a", "b"}, c.Metadata.Function.Parameters)
}

func TestRegex_FunctionForms(t *testing.T) {
	src := `local function helper(x)
  return x
end

function M:run(a)
  if a then
    return helper(a)
  end
end

M.start = function(self, delay)
  timer.scheduleFunction(self.tick, nil, delay)
end
`
	chunks := regexChunks(t, src)

	tests := []struct {
		name   string
		start  int
		end    int
		params []string
		local  bool
		method bool
	}{
		{name: "helper", start: 1, end: 3, params: []string{"x"}, local: true},
		{name: "M:run", start: 5, end: 9, params: []string{"a"}, method: true},
		{name: "M.start", start: 11, end: 13, params: []string{"self", "delay"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := findChunk(chunks, types.ChunkFunction, tt.name)
			require.NotNil(t, c)
			assert.Equal(t, tt.start, c.LineStart)
			assert.Equal(t, tt.end, c.LineEnd)
			assert.Equal(t, tt.params, c.Metadata.Function.Parameters)
			assert.Equal(t, tt.local, c.Metadata.Function.Local)
			assert.Equal(t, tt.method, c.Metadata.Function.Method)
		})
	}
}

func TestRegex_TerminatorInStringOrComment(t *testing.T) {
	tests := []struct {
		name string
		src  string
		end  int
	}{
		{name: "string", src: "function f()\n  print(\"the end\")\nend\n", end: 3},
		{name: "comment", src: "function f()\n  -- end here\n  return 1\nend\n", end: 4},
		{name: "table literal", src: "function f()\n  local t = {\n    a = 1,\n  }\n  return t\nend\n", end: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := regexChunks(t, tt.src)
			c := findChunk(chunks, types.ChunkFunction, "f")
			require.NotNil(t, c)
			assert.Equal(t, tt.end, c.LineEnd)
		})
	}
}

func TestRegex_MissingTerminatorUsesSpan(t *testing.T) {
	src := "function f()\n" + strings.Repeat("x = 1\n", 40)

	chunks := regexChunks(t, src)

	c := findChunk(chunks, types.ChunkFunction, "f")
	require.NotNil(t, c)
	assert.Equal(t, 1, c.LineStart)
	assert.Equal(t, DefaultSpanLines, c.LineEnd)
}

func TestRegex_NestedFunctionParent(t *testing.T) {
	src := `function outer()
  local function inner()
    return 1
  end
  return inner
end
`
	chunks := regexChunks(t, src)

	require.Len(t, chunks, 2)
	assert.Equal(t, "outer", chunks[0].Metadata.FunctionName())
	assert.Nil(t, chunks[0].ParentIndex)
	assert.Equal(t, "inner", chunks[1].Metadata.FunctionName())
	require.NotNil(t, chunks[1].ParentIndex)
	assert.Equal(t, 0, *chunks[1].ParentIndex)
}

func TestRegex_ControlBlocks(t *testing.T) {
	t.Run("kept", func(t *testing.T) {
		chunks := regexChunks(t, "for i = 1, 10 do\n  local x = i\n  print(x)\n  print(i)\nend\n")

		require.Len(t, chunks, 1)
		assert.Equal(t, types.ChunkControlBlock, chunks[0].ChunkType)
		require.NotNil(t, chunks[0].Metadata.Block)
		assert.Equal(t, "for", chunks[0].Metadata.Block.Kind)
		assert.Equal(t, 5, chunks[0].LineEnd)
	})

	t.Run("too short becomes segment", func(t *testing.T) {
		chunks := regexChunks(t, "local a = 1\nif a then\n  print(a)\nend\n")

		require.Len(t, chunks, 1)
		assert.Equal(t, types.ChunkCodeSegment, chunks[0].ChunkType)
		assert.Equal(t, 1, chunks[0].LineStart)
		assert.Equal(t, 4, chunks[0].LineEnd)
		assert.Equal(t, "0", chunks[0].Metadata.Extra["segment_index"])
	})

	t.Run("inside function skipped", func(t *testing.T) {
		chunks := regexChunks(t, "function f(a)\n  if a then\n    print(a)\n    print(a)\n    print(a)\n  end\nend\n")

		require.Len(t, chunks, 1)
		assert.Equal(t, types.ChunkFunction, chunks[0].ChunkType)
	})
}

func TestRegex_Segments(t *testing.T) {
	chunks := regexChunks(t, strings.Repeat("x = 1\n", 120))

	require.Len(t, chunks, 3)
	spans := [][2]int{{1, 50}, {51, 100}, {101, 120}}
	for i, c := range chunks {
		assert.Equal(t, types.ChunkCodeSegment, c.ChunkType)
		assert.Equal(t, spans[i][0], c.LineStart)
		assert.Equal(t, spans[i][1], c.LineEnd)
	}
	require.NotNil(t, chunks[0].Metadata.File)
	assert.Nil(t, chunks[1].Metadata.File)
	assert.Equal(t, "2", chunks[2].Metadata.Extra["segment_index"])
}

func TestRegex_FileChunk(t *testing.T) {
	src := `--[[
  Mission helpers
]]
local M = {}
local json = require("json")

function M.go()
  return json.encode({})
end

return M
`
	chunks := regexChunks(t, src)

	require.Len(t, chunks, 2)
	file := chunks[0]
	assert.Equal(t, types.ChunkFile, file.ChunkType)
	assert.Equal(t, 1, file.LineStart)
	assert.Equal(t, 3, file.LineEnd)
	require.NotNil(t, file.Metadata.File)
	assert.Equal(t, "M", file.Metadata.File.ModuleName)
	assert.Equal(t, []string{"json"}, file.Metadata.File.Requires)
	assert.Equal(t, 1, file.Metadata.File.FunctionCount)
	assert.Equal(t, "Mission helpers", file.Metadata.File.DocComment)

	assert.Equal(t, "M.go", chunks[1].Metadata.FunctionName())
	assert.Nil(t, chunks[1].ParentIndex)
}

func TestRegex_FileChunkWithoutDocComment(t *testing.T) {
	src := `local M = {}
local json = require("json")

function M.go()
  return json.encode({})
end

return M
`
	chunks := regexChunks(t, src)

	require.Len(t, chunks, 2)
	file := chunks[0]
	assert.Equal(t, types.ChunkFile, file.ChunkType)
	assert.Equal(t, 1, file.LineStart)
	assert.Equal(t, 2, file.LineEnd)
	assert.Equal(t, "local M = {}\nlocal json = require(\"json\")", file.Content)
	require.NotNil(t, file.Metadata.File)
	assert.Equal(t, "M", file.Metadata.File.ModuleName)
	assert.Equal(t, []string{"json"}, file.Metadata.File.Requires)
	assert.Empty(t, file.Metadata.File.DocComment)

	assert.Equal(t, "M.go", chunks[1].Metadata.FunctionName())
	assert.Nil(t, chunks[1].Metadata.File)
}

func TestRegex_FileMetadataOnFirstUnit(t *testing.T) {
	src := "function spawn(unit)\n  return unit\nend\nlocal json = require(\"json\")\n"

	chunks := regexChunks(t, src)

	require.Len(t, chunks, 1)
	c := chunks[0]
	assert.Equal(t, types.ChunkFunction, c.ChunkType)
	assert.Equal(t, "spawn", c.Metadata.FunctionName())
	require.NotNil(t, c.Metadata.File)
	assert.Equal(t, 1, c.Metadata.File.FunctionCount)
	assert.Equal(t, []string{"json"}, c.Metadata.File.Requires)

	flat := c.Metadata.Map()
	assert.Equal(t, "spawn", flat[types.KeyFunctionName])
	assert.Equal(t, 1, flat[types.KeyFunctionCount])
}

func TestRegex_QuoteInsideOtherQuotes(t *testing.T) {
	src := `function greet()
  print("don't panic")
end

function other()
  return 'say "hi"'
end
`
	chunks := regexChunks(t, src)

	greet := findChunk(chunks, types.ChunkFunction, "greet")
	require.NotNil(t, greet)
	assert.Equal(t, 1, greet.LineStart)
	assert.Equal(t, 3, greet.LineEnd)

	other := findChunk(chunks, types.ChunkFunction, "other")
	require.NotNil(t, other)
	assert.Nil(t, other.ParentIndex)
	assert.Equal(t, 5, other.LineStart)
	assert.Equal(t, 7, other.LineEnd)
}

func TestRegex_EmptyInput(t *testing.T) {
	for _, src := range []string{"", "   \n\n"} {
		chunks := regexChunks(t, src)
		require.Len(t, chunks, 1)
		assert.Equal(t, types.ChunkFile, chunks[0].ChunkType)
		assert.NoError(t, chunks[0].Validate())
	}
}

func TestInsideString(t *testing.T) {
	assert.True(t, insideString(`print("the end")`, 11))
	assert.False(t, insideString(`print("a") end`, 11))
	assert.True(t, insideString(`x = 'it\'s end'`, 12))
	assert.False(t, insideString(`print("don't") end`, 15))
	assert.True(t, insideString(`print("don't end")`, 14))
	assert.False(t, insideString(`x = 'say "hi"' end`, 15))
}
