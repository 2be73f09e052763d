package chunker

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dshills/luarag/pkg/types"
)

var (
	globalFuncPattern = regexp.MustCompile(`(?m)^[ \t]*function\s+([A-Za-z_][\w.:]*)\s*\(([^)]*)\)`)
	localFuncPattern  = regexp.MustCompile(`(?m)^[ \t]*local\s+function\s+([A-Za-z_]\w*)\s*\(([^)]*)\)`)
	assignFuncPattern = regexp.MustCompile(`(?m)^[ \t]*(local\s+)?([A-Za-z_][\w.:\[\]"']*)\s*=\s*function\s*\(([^)]*)\)`)

	blockStartPattern = regexp.MustCompile(`^[ \t]*(if|for|while|repeat|do)\b`)
	requirePattern    = regexp.MustCompile(`require\s*\(?\s*["']([^"']+)["']`)
	modulePattern     = regexp.MustCompile(`(?m)^\s*module\s*\(?\s*["']([^"']+)["']`)
	moduleTablePat    = regexp.MustCompile(`(?m)^local\s+([A-Za-z_]\w*)\s*=\s*\{\s*\}`)

	wordPattern = regexp.MustCompile(`[A-Za-z_]\w*`)
)

// RegexChunker approximates Lua structure with line-oriented patterns. It
// needs no grammar but its end detection is heuristic: terminators inside
// multi-line strings and long comments are not recognized.
type RegexChunker struct {
	opts Options
}

// NewRegex creates a regex-approximation chunker
func NewRegex(opts Options) *RegexChunker {
	return &RegexChunker{opts: opts.withDefaults()}
}

// Name returns the strategy name
func (r *RegexChunker) Name() Strategy {
	return StrategyRegex
}

type funcMatch struct {
	offset int
	line   int
	name   string
	params string
	local  bool
}

// Chunk extracts function, control block, and file-level chunks
func (r *RegexChunker) Chunk(_ context.Context, content, filePath string) []types.Chunk {
	if strings.TrimSpace(content) == "" {
		return finalize([]types.Chunk{fileChunk(content, "")}, filePath, r.opts.Keywords)
	}

	lines := splitLines(content)
	funcs := findFunctions(content)

	var chunks []types.Chunk
	for _, m := range funcs {
		end := r.findEnd(lines, m.line)
		chunks = append(chunks, types.Chunk{
			ChunkType: types.ChunkFunction,
			Content:   joinLines(lines, m.line, end),
			LineStart: m.line,
			LineEnd:   end,
			Metadata: types.Metadata{
				Function: &types.FunctionMeta{
					Name:       m.name,
					Parameters: splitParameters(m.params),
					Local:      m.local,
					Method:     strings.Contains(m.name, ":"),
				},
			},
		})
	}

	chunks = append(chunks, r.controlBlocks(lines, chunks)...)

	fileMeta := &types.FileMeta{
		ModuleName:    moduleName(content),
		Requires:      requires(content),
		FunctionCount: len(funcs),
	}

	doc, docEnd := leadingDocComment(lines)
	fileMeta.DocComment = doc

	// No function or control block was found.
	if len(chunks) == 0 {
		return finalize(r.segments(lines, fileMeta), filePath, r.opts.Keywords)
	}

	if end := headerEnd(lines, docEnd, firstLine(chunks)); end > 0 {
		chunks = append(chunks, types.Chunk{
			ChunkType: types.ChunkFile,
			Content:   joinLines(lines, 1, end),
			LineStart: 1,
			LineEnd:   end,
			Metadata:  types.Metadata{File: fileMeta},
		})
	}

	chunks = nest(chunks)
	if chunks[0].Metadata.File == nil {
		// No header to hold the file metadata; the first unit carries it.
		chunks[0].Metadata.File = fileMeta
	}
	return finalize(chunks, filePath, r.opts.Keywords)
}

// headerEnd returns the last line of the file-level chunk: the leading doc
// comment, otherwise the non-blank lines before the first unit, otherwise 0.
func headerEnd(lines []string, docEnd, first int) int {
	if docEnd > 0 {
		return docEnd
	}
	end := first - 1
	for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return end
}

// firstLine returns the smallest LineStart among chunks
func firstLine(chunks []types.Chunk) int {
	first := chunks[0].LineStart
	for _, c := range chunks[1:] {
		if c.LineStart < first {
			first = c.LineStart
		}
	}
	return first
}

// findFunctions merges the three function patterns sorted by position
func findFunctions(content string) []funcMatch {
	var out []funcMatch
	seenLine := make(map[int]bool)
	add := func(offset int, name, params string, local bool) {
		line := strings.Count(content[:offset], "\n") + 1
		if seenLine[line] {
			return
		}
		seenLine[line] = true
		out = append(out, funcMatch{offset: offset, line: line, name: name, params: params, local: local})
	}

	for _, idx := range localFuncPattern.FindAllStringSubmatchIndex(content, -1) {
		add(idx[0], content[idx[2]:idx[3]], content[idx[4]:idx[5]], true)
	}
	for _, idx := range globalFuncPattern.FindAllStringSubmatchIndex(content, -1) {
		add(idx[0], content[idx[2]:idx[3]], content[idx[4]:idx[5]], false)
	}
	for _, idx := range assignFuncPattern.FindAllStringSubmatchIndex(content, -1) {
		add(idx[0], content[idx[4]:idx[5]], content[idx[6]:idx[7]], idx[2] >= 0)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].offset < out[j].offset })
	return out
}

// findEnd scans forward from start (1-indexed) for the terminator that
// closes the block opened there. Block keywords and brackets adjust a net
// balance; the block closes on the end/until that returns it to zero.
func (r *RegexChunker) findEnd(lines []string, start int) int {
	depth, brackets := 0, 0
	limit := start + r.opts.MaxScanLines
	if limit > len(lines) {
		limit = len(lines)
	}

	for ln := start; ln <= limit; ln++ {
		line := stripLineComment(lines[ln-1])
		for _, loc := range wordPattern.FindAllStringIndex(line, -1) {
			if insideString(line, loc[0]) {
				continue
			}
			switch line[loc[0]:loc[1]] {
			case "function", "if", "do", "repeat":
				depth++
			case "end", "until":
				depth--
				if depth <= 0 && brackets <= 0 {
					return ln
				}
			}
		}
		brackets += bracketBalance(line)
	}

	end := start + r.opts.SpanLines - 1
	if end > len(lines) {
		end = len(lines)
	}
	return end
}

// controlBlocks finds if/for/while/repeat/do blocks outside existing chunks
func (r *RegexChunker) controlBlocks(lines []string, existing []types.Chunk) []types.Chunk {
	covered := func(line int) bool {
		for i := range existing {
			if line >= existing[i].LineStart && line <= existing[i].LineEnd {
				return true
			}
		}
		return false
	}

	var blocks []types.Chunk
	for ln := 1; ln <= len(lines); ln++ {
		m := blockStartPattern.FindStringSubmatch(lines[ln-1])
		if m == nil || covered(ln) {
			continue
		}
		end := r.findEnd(lines, ln)
		if end-ln+1 < r.opts.MinBlockLines {
			continue
		}
		blocks = append(blocks, types.Chunk{
			ChunkType: types.ChunkControlBlock,
			Content:   joinLines(lines, ln, end),
			LineStart: ln,
			LineEnd:   end,
			Metadata:  types.Metadata{Block: &types.BlockMeta{Kind: m[1]}},
		})
		ln = end // nested blocks are part of this one
	}
	return blocks
}

// segments partitions the file into fixed-size code_segment chunks
func (r *RegexChunker) segments(lines []string, fileMeta *types.FileMeta) []types.Chunk {
	var out []types.Chunk
	for start := 1; start <= len(lines); start += r.opts.SegmentLines {
		end := start + r.opts.SegmentLines - 1
		if end > len(lines) {
			end = len(lines)
		}
		c := types.Chunk{
			ChunkType: types.ChunkCodeSegment,
			Content:   joinLines(lines, start, end),
			LineStart: start,
			LineEnd:   end,
		}
		if len(out) == 0 {
			c.Metadata.File = fileMeta
		}
		c.Metadata.Set("segment_index", strconv.Itoa(len(out)))
		out = append(out, c)
	}
	return out
}

// nest orders chunks by position and links each to its nearest enclosing
// chunk. Chunks that partially overlap an earlier one are dropped.
func nest(chunks []types.Chunk) []types.Chunk {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].LineStart != chunks[j].LineStart {
			return chunks[i].LineStart < chunks[j].LineStart
		}
		return chunks[i].LineEnd > chunks[j].LineEnd
	})

	out := make([]types.Chunk, 0, len(chunks))
	var stack []int
	for _, c := range chunks {
		for len(stack) > 0 && out[stack[len(stack)-1]].LineEnd < c.LineStart {
			stack = stack[:len(stack)-1]
		}
		if len(stack) > 0 {
			top := stack[len(stack)-1]
			if !out[top].Contains(&c) {
				continue
			}
			p := top
			c.ParentIndex = &p
		}
		stack = append(stack, len(out))
		out = append(out, c)
	}
	return out
}

// leadingDocComment returns the comment at the top of the file, either a
// block comment or consecutive line comments, and its last line.
func leadingDocComment(lines []string) (string, int) {
	i := 0
	for i < len(lines) && (strings.TrimSpace(lines[i]) == "" || strings.HasPrefix(lines[i], "#!")) {
		i++
	}
	if i >= len(lines) || i > 5 {
		return "", 0
	}

	first := strings.TrimSpace(lines[i])
	if strings.HasPrefix(first, "--[[") || strings.HasPrefix(first, "--[=") {
		for j := i; j < len(lines); j++ {
			if strings.Contains(lines[j], "]]") || strings.Contains(lines[j], "]=") {
				return stripCommentMarkers(strings.Join(lines[i:j+1], "\n")), j + 1
			}
		}
		return "", 0
	}

	j := i
	for j < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[j]), "--") {
		j++
	}
	if j == i {
		return "", 0
	}
	return stripCommentMarkers(strings.Join(lines[i:j], "\n")), j
}

func moduleName(content string) string {
	if m := modulePattern.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	if m := moduleTablePat.FindStringSubmatch(content); m != nil {
		if regexp.MustCompile(`(?m)^return\s+` + regexp.QuoteMeta(m[1]) + `\s*$`).MatchString(content) {
			return m[1]
		}
	}
	return ""
}

func requires(content string) []string {
	var deps []string
	seen := make(map[string]bool)
	for _, m := range requirePattern.FindAllStringSubmatch(content, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			deps = append(deps, m[1])
		}
	}
	return deps
}

// insideString reports whether pos on line falls inside a quoted string.
// The line is scanned left to right with one open-quote state, so the other
// quote character and escaped quotes inside a string are ignored.
func insideString(line string, pos int) bool {
	var open byte
	for i := 0; i < pos && i < len(line); i++ {
		c := line[i]
		switch {
		case open == 0:
			if c == '"' || c == '\'' {
				open = c
			}
		case c == '\\':
			i++
		case c == open:
			open = 0
		}
	}
	return open != 0
}

// stripLineComment drops a trailing -- comment that is not inside a string
func stripLineComment(line string) string {
	for i := 0; i+1 < len(line); i++ {
		if line[i] == '-' && line[i+1] == '-' && !insideString(line, i) {
			return line[:i]
		}
	}
	return line
}

func bracketBalance(line string) int {
	n := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '{', '(', '[':
			if !insideString(line, i) {
				n++
			}
		case '}', ')', ']':
			if !insideString(line, i) {
				n--
			}
		}
	}
	return n
}

func splitLines(content string) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// joinLines returns lines start..end (1-indexed, inclusive)
func joinLines(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}
