package types

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Metadata keys used in the flat JSON encoding
const (
	KeyFunctionName   = "function_name"
	KeyParameters     = "parameters"
	KeyIsLocal        = "is_local"
	KeyIsMethod       = "is_method"
	KeyCommentText    = "comment_text"
	KeyCommentBody    = "comment_body"
	KeyBlockType      = "block_type"
	KeyFieldCount     = "field_count"
	KeyTargets        = "targets"
	KeyModuleName     = "module_name"
	KeyRequires       = "requires"
	KeyFunctionCount  = "function_count"
	KeyDocComment     = "doc_comment"
	KeyDomainKeywords = "domain_keywords"
	KeyNodeType       = "node_type"
	KeyFilePath       = "file_path"
	KeyParseError     = "parse_error"
)

// FunctionMeta describes a function-like chunk
type FunctionMeta struct {
	Name       string
	Parameters []string
	Local      bool
	Method     bool
}

// CommentMeta carries a comment chunk's raw text, markers included, and
// its body with the -- and --[[ ]] delimiters stripped
type CommentMeta struct {
	Text string
	Body string
}

// BlockMeta describes a control block (if, for, while, repeat, do, return)
type BlockMeta struct {
	Kind string
}

// TableMeta describes a table constructor
type TableMeta struct {
	FieldCount int
}

// AssignmentMeta lists the assignment targets in source order
type AssignmentMeta struct {
	Targets []string
}

// FileMeta describes a whole-file chunk
type FileMeta struct {
	ModuleName    string
	Requires      []string
	FunctionCount int
	DocComment    string
}

// Metadata is a tagged union over the per-type metadata shapes.
// Function, Comment, Block, Table and Assignment are exclusive. File marks
// the chunk carrying the file-level metadata and may accompany one of them.
// The shared fields apply to every chunk type and Extra holds anything else.
type Metadata struct {
	Function   *FunctionMeta
	Comment    *CommentMeta
	Block      *BlockMeta
	Table      *TableMeta
	Assignment *AssignmentMeta
	File       *FileMeta

	DomainKeywords []string
	NodeType       string
	FilePath       string
	ParseError     string
	Extra          map[string]string
}

// Set stores an extra key/value pair
func (m *Metadata) Set(key, value string) {
	if m.Extra == nil {
		m.Extra = make(map[string]string)
	}
	m.Extra[key] = value
}

// FunctionName returns the function name, or empty for non-function chunks
func (m Metadata) FunctionName() string {
	if m.Function == nil {
		return ""
	}
	return m.Function.Name
}

// Map flattens the metadata into an open key/value map
func (m Metadata) Map() map[string]any {
	out := make(map[string]any, len(m.Extra)+4)
	for k, v := range m.Extra {
		out[k] = v
	}

	switch {
	case m.Function != nil:
		if m.Function.Name != "" {
			out[KeyFunctionName] = m.Function.Name
		}
		params := m.Function.Parameters
		if params == nil {
			params = []string{}
		}
		out[KeyParameters] = params
		if m.Function.Local {
			out[KeyIsLocal] = true
		}
		if m.Function.Method {
			out[KeyIsMethod] = true
		}
	case m.Comment != nil:
		out[KeyCommentText] = m.Comment.Text
		if m.Comment.Body != "" {
			out[KeyCommentBody] = m.Comment.Body
		}
	case m.Block != nil:
		out[KeyBlockType] = m.Block.Kind
	case m.Table != nil:
		out[KeyFieldCount] = m.Table.FieldCount
	case m.Assignment != nil:
		out[KeyTargets] = m.Assignment.Targets
	}

	if m.File != nil {
		if m.File.ModuleName != "" {
			out[KeyModuleName] = m.File.ModuleName
		}
		if len(m.File.Requires) > 0 {
			out[KeyRequires] = m.File.Requires
		}
		out[KeyFunctionCount] = m.File.FunctionCount
		if m.File.DocComment != "" {
			out[KeyDocComment] = m.File.DocComment
		}
	}

	if len(m.DomainKeywords) > 0 {
		out[KeyDomainKeywords] = m.DomainKeywords
	}
	if m.NodeType != "" {
		out[KeyNodeType] = m.NodeType
	}
	if m.FilePath != "" {
		out[KeyFilePath] = m.FilePath
	}
	if m.ParseError != "" {
		out[KeyParseError] = m.ParseError
	}
	return out
}

// MarshalJSON encodes the metadata as one flat object
func (m Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Map())
}

// UnmarshalJSON restores the variant from whichever keys are present
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	*m = Metadata{}

	take := func(key string, dst any) error {
		v, ok := raw[key]
		if !ok {
			return nil
		}
		delete(raw, key)
		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("decode metadata key %s: %w", key, err)
		}
		return nil
	}
	has := func(keys ...string) bool {
		for _, k := range keys {
			if _, ok := raw[k]; ok {
				return true
			}
		}
		return false
	}

	switch {
	case has(KeyFunctionName, KeyParameters, KeyIsLocal, KeyIsMethod):
		f := &FunctionMeta{}
		for key, dst := range map[string]any{
			KeyFunctionName: &f.Name, KeyParameters: &f.Parameters,
			KeyIsLocal: &f.Local, KeyIsMethod: &f.Method,
		} {
			if err := take(key, dst); err != nil {
				return err
			}
		}
		m.Function = f
	case has(KeyCommentText):
		c := &CommentMeta{}
		if err := take(KeyCommentText, &c.Text); err != nil {
			return err
		}
		if err := take(KeyCommentBody, &c.Body); err != nil {
			return err
		}
		m.Comment = c
	case has(KeyBlockType):
		b := &BlockMeta{}
		if err := take(KeyBlockType, &b.Kind); err != nil {
			return err
		}
		m.Block = b
	case has(KeyFieldCount):
		t := &TableMeta{}
		if err := take(KeyFieldCount, &t.FieldCount); err != nil {
			return err
		}
		m.Table = t
	case has(KeyTargets):
		a := &AssignmentMeta{}
		if err := take(KeyTargets, &a.Targets); err != nil {
			return err
		}
		m.Assignment = a
	}

	if has(KeyModuleName, KeyRequires, KeyFunctionCount, KeyDocComment) {
		f := &FileMeta{}
		for key, dst := range map[string]any{
			KeyModuleName: &f.ModuleName, KeyRequires: &f.Requires,
			KeyFunctionCount: &f.FunctionCount, KeyDocComment: &f.DocComment,
		} {
			if err := take(key, dst); err != nil {
				return err
			}
		}
		m.File = f
	}

	for key, dst := range map[string]any{
		KeyDomainKeywords: &m.DomainKeywords, KeyNodeType: &m.NodeType,
		KeyFilePath: &m.FilePath, KeyParseError: &m.ParseError,
	} {
		if err := take(key, dst); err != nil {
			return err
		}
	}

	// Remaining keys are kept as strings; non-string values keep their JSON text.
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var s string
		if err := json.Unmarshal(raw[k], &s); err != nil {
			s = string(raw[k])
		}
		m.Set(k, s)
	}
	return nil
}
