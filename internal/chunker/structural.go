package chunker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/lua"

	"github.com/dshills/luarag/pkg/types"
)

// nodeChunkTypes maps node types of the linked tree-sitter-lua grammar to
// chunk types. Global and local functions are both function_statement;
// anonymous functions are function. Plain and local assignments are both
// variable_declaration.
var nodeChunkTypes = map[string]types.ChunkType{
	"function_statement": types.ChunkFunction,
	"function":           types.ChunkFunction,

	"tableconstructor": types.ChunkTable,

	"variable_declaration": types.ChunkAssignment,

	"comment": types.ChunkComment,

	"do_statement":            types.ChunkControlBlock,
	"if_statement":            types.ChunkControlBlock,
	"while_statement":         types.ChunkControlBlock,
	"repeat_statement":        types.ChunkControlBlock,
	"for_statement":           types.ChunkControlBlock,
	"return_statement":        types.ChunkControlBlock,
	"module_return_statement": types.ChunkControlBlock,
}

// nameNodeTypes are the children that name a function_statement:
// function_name for "function a.b:c()", identifier after "local function".
var nameNodeTypes = map[string]bool{
	"function_name": true,
	"identifier":    true,
}

// StructuralChunker walks a tree-sitter Lua syntax tree and emits a chunk
// for every allow-listed node that is large enough to be useful.
type StructuralChunker struct {
	opts Options
	lang *sitter.Language
}

// NewStructural creates a grammar-aware chunker
func NewStructural(opts Options) *StructuralChunker {
	return &StructuralChunker{
		opts: opts.withDefaults(),
		lang: lua.GetLanguage(),
	}
}

// Name returns the strategy name
func (s *StructuralChunker) Name() Strategy {
	return StrategyStructural
}

// Chunk parses content and returns chunk drafts in depth-first order
func (s *StructuralChunker) Chunk(ctx context.Context, content, filePath string) []types.Chunk {
	src := []byte(content)

	// Parsers are not safe for concurrent use; one per call keeps Chunk reentrant.
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(s.lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return finalize([]types.Chunk{fileChunk(content, fmt.Sprintf("parse: %v", err))}, filePath, s.opts.Keywords)
	}
	defer tree.Close()

	root := tree.RootNode()
	w := newWalker(src, s.opts)
	w.walk(root, -1)

	if len(w.chunks) == 0 {
		reason := ""
		if root.HasError() {
			reason = "syntax error: no structural units recovered"
		}
		return finalize([]types.Chunk{fileChunk(content, reason)}, filePath, s.opts.Keywords)
	}
	return finalize(w.chunks, filePath, s.opts.Keywords)
}

type walker struct {
	src      []byte
	opts     Options
	newlines []int       // byte offsets of every '\n' in src
	lastEnd  map[int]int // parent ordinal -> LineEnd of its last accepted child
	chunks   []types.Chunk
}

func newWalker(src []byte, opts Options) *walker {
	var newlines []int
	for i, b := range src {
		if b == '\n' {
			newlines = append(newlines, i)
		}
	}
	return &walker{src: src, opts: opts, newlines: newlines, lastEnd: make(map[int]int)}
}

// walk visits node and its descendants. parent is the ordinal of the nearest
// accepted ancestor, or -1.
func (w *walker) walk(node *sitter.Node, parent int) {
	if node == nil {
		return
	}

	next := parent
	if chunkType, ok := nodeChunkTypes[node.Type()]; ok {
		start, end := w.span(node)
		lineStart, lineEnd := w.lineOf(start), w.lineOf(end-1)
		if w.accept(chunkType, parent, start, end, lineStart, lineEnd) {
			c := w.build(node, chunkType, start, end, lineStart, lineEnd)
			if parent >= 0 {
				p := parent
				c.ParentIndex = &p
			}
			w.lastEnd[parent] = lineEnd
			next = len(w.chunks)
			w.chunks = append(w.chunks, c)
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		w.walk(node.Child(i), next)
	}
}

// span returns the byte range of node without surrounding whitespace.
// Statement nodes start where the previous token ended, so their raw range
// begins with the newline and indentation before them.
func (w *walker) span(node *sitter.Node) (int, int) {
	start, end := int(node.StartByte()), int(node.EndByte())
	if end > len(w.src) {
		end = len(w.src)
	}
	for start < end && isSpace(w.src[start]) {
		start++
	}
	for end > start && isSpace(w.src[end-1]) {
		end--
	}
	return start, end
}

// lineOf returns the 1-indexed line holding byte offset off
func (w *walker) lineOf(off int) int {
	if off < 0 {
		off = 0
	}
	return sort.SearchInts(w.newlines, off) + 1
}

func (w *walker) accept(chunkType types.ChunkType, parent, start, end, lineStart, lineEnd int) bool {
	if end-start < w.opts.MinNodeBytes {
		return false
	}
	// Siblings never share a line, e.g. a trailing comment after a statement.
	if lineStart <= w.lastEnd[parent] {
		return false
	}
	// A single-line statement nested in an accepted chunk is already fully
	// represented by its parent.
	if parent >= 0 && chunkType != types.ChunkFunction && chunkType != types.ChunkComment && lineStart == lineEnd {
		return false
	}
	return true
}

func (w *walker) build(node *sitter.Node, chunkType types.ChunkType, start, end, lineStart, lineEnd int) types.Chunk {
	text := string(w.src[start:end])

	c := types.Chunk{
		ChunkType: chunkType,
		Content:   text,
		LineStart: lineStart,
		LineEnd:   lineEnd,
		Metadata:  types.Metadata{NodeType: node.Type()},
	}

	switch chunkType {
	case types.ChunkFunction:
		c.Metadata.Function = w.functionMeta(node, text)
	case types.ChunkComment:
		c.Metadata.Comment = &types.CommentMeta{Text: text, Body: stripCommentMarkers(text)}
	case types.ChunkControlBlock:
		c.Metadata.Block = &types.BlockMeta{Kind: blockKind(node.Type())}
	case types.ChunkTable:
		c.Metadata.Table = &types.TableMeta{FieldCount: countFields(node)}
	case types.ChunkAssignment:
		c.Metadata.Assignment = &types.AssignmentMeta{Targets: assignmentTargets(text)}
	}
	return c
}

// text returns the trimmed source of node
func (w *walker) text(node *sitter.Node) string {
	start, end := w.span(node)
	return string(w.src[start:end])
}

func (w *walker) functionMeta(node *sitter.Node, text string) *types.FunctionMeta {
	meta := &types.FunctionMeta{Local: strings.HasPrefix(text, "local")}

	if node.Type() == "function_statement" {
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil {
			nameNode = leadingName(node)
		}
		if nameNode != nil {
			meta.Name = w.text(nameNode)
		}
	} else if name, local := w.enclosingAssignmentName(node); name != "" {
		meta.Name = name
		meta.Local = local
	}
	meta.Method = strings.Contains(meta.Name, ":")

	meta.Parameters = []string{}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if child := node.NamedChild(i); child.Type() == "parameter_list" {
			meta.Parameters = splitParameters(w.text(child))
			break
		}
	}
	return meta
}

// leadingName returns the name child that precedes the parameters, skipping
// the local keyword and attached documentation
func leadingName(node *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch {
		case nameNodeTypes[child.Type()]:
			return child
		case child.Type() == "local", child.Type() == "comment", strings.HasPrefix(child.Type(), "emmy_"):
			continue
		default:
			return nil
		}
	}
	return nil
}

// enclosingAssignmentName names an anonymous function from the assignment or
// table field it is the value of, e.g. "M.run = function() ... end" or
// "{ onEvent = function(e) ... end }".
func (w *walker) enclosingAssignmentName(node *sitter.Node) (string, bool) {
	parent := node.Parent()
	if parent == nil || (parent.Type() != "variable_declaration" && parent.Type() != "field") {
		return "", false
	}
	text := w.text(parent)
	if assignIndex(text) < 0 {
		return "", false
	}
	targets := assignmentTargets(text)
	if len(targets) == 0 {
		return "", false
	}
	return targets[0], parent.Type() == "variable_declaration" && strings.HasPrefix(text, "local")
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == '\v'
}

// countFields counts the fields of a table constructor, which sit inside
// its fieldlist child
func countFields(node *sitter.Node) int {
	n := 0
	for i := 0; i < int(node.NamedChildCount()); i++ {
		switch child := node.NamedChild(i); child.Type() {
		case "field":
			n++
		case "fieldlist":
			n += countFields(child)
		}
	}
	return n
}

func blockKind(nodeType string) string {
	if nodeType == "module_return_statement" {
		return "return"
	}
	kind := strings.TrimSuffix(nodeType, "_statement")
	if strings.HasPrefix(kind, "for") {
		return "for"
	}
	return kind
}

// splitParameters turns "(a, b, ...)" into ["a", "b", "..."]
func splitParameters(text string) []string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "(")
	text = strings.TrimSuffix(text, ")")
	params := []string{}
	for _, p := range strings.Split(text, ",") {
		if p = strings.TrimSpace(p); p != "" {
			params = append(params, p)
		}
	}
	return params
}

// assignmentTargets returns the left-hand side names of an assignment
func assignmentTargets(text string) []string {
	lhs := text
	if i := assignIndex(text); i >= 0 {
		lhs = text[:i]
	}
	lhs = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lhs), "local"))

	var targets []string
	for _, t := range strings.Split(lhs, ",") {
		t = strings.TrimSpace(t)
		if i := strings.Index(t, "<"); i > 0 {
			t = strings.TrimSpace(t[:i]) // drop <const>/<close> attributes
		}
		if t != "" {
			targets = append(targets, t)
		}
	}
	return targets
}

// assignIndex finds the first "=" that is not part of ==, ~=, <= or >=
func assignIndex(text string) int {
	for i := 0; i < len(text); i++ {
		if text[i] != '=' {
			continue
		}
		if i+1 < len(text) && text[i+1] == '=' {
			i++
			continue
		}
		if i > 0 && strings.ContainsRune("=~<>", rune(text[i-1])) {
			continue
		}
		return i
	}
	return -1
}

// stripCommentMarkers removes --, --[[ ]] and --[==[ ]==] delimiters
func stripCommentMarkers(text string) string {
	t := strings.TrimSpace(text)
	if strings.HasPrefix(t, "--[") {
		rest := t[3:]
		level := 0
		for level < len(rest) && rest[level] == '=' {
			level++
		}
		if level < len(rest) && rest[level] == '[' {
			body := rest[level+1:]
			body = strings.TrimSuffix(body, "]"+strings.Repeat("=", level)+"]")
			return strings.TrimSpace(body)
		}
	}

	lines := strings.Split(t, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-"))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
