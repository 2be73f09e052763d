package indexer

import (
	"path"
	"path/filepath"
	"strings"
)

// Default exclusions for XSAF mission trees: the generated database and the
// vendored frameworks are never indexed.
var (
	DefaultExcludeDirs  = []string{"XSAF.DB", "Moose"}
	DefaultExcludeFiles = []string{"Mist.lua"}
)

// DefaultPattern selects Lua sources
const DefaultPattern = "*.lua"

// Filter decides which paths are indexed
type Filter struct {
	dirs  map[string]struct{}
	files map[string]struct{}
}

// NewFilter builds a filter from excluded directory names and file names
func NewFilter(excludeDirs, excludeFiles []string) *Filter {
	f := &Filter{
		dirs:  make(map[string]struct{}, len(excludeDirs)),
		files: make(map[string]struct{}, len(excludeFiles)),
	}
	for _, d := range excludeDirs {
		d = strings.Trim(filepath.ToSlash(d), "/")
		if d != "" {
			f.dirs[d] = struct{}{}
		}
	}
	for _, name := range excludeFiles {
		if name != "" {
			f.files[path.Base(filepath.ToSlash(name))] = struct{}{}
		}
	}
	return f
}

// ShouldIndex reports whether p survives the exclusion rules. A directory
// rule matches any whole segment of the slash-normalised path; a file rule
// matches the base name.
func (f *Filter) ShouldIndex(p string) bool {
	clean := path.Clean(filepath.ToSlash(p))
	if _, ok := f.files[path.Base(clean)]; ok {
		return false
	}
	return !f.excludedDir(path.Dir(clean))
}

// SkipDir reports whether a walk should prune directory p
func (f *Filter) SkipDir(p string) bool {
	return f.excludedDir(path.Clean(filepath.ToSlash(p)))
}

func (f *Filter) excludedDir(dir string) bool {
	if len(f.dirs) == 0 {
		return false
	}
	for _, seg := range strings.Split(dir, "/") {
		if _, ok := f.dirs[seg]; ok {
			return true
		}
	}
	return false
}

// matchPattern reports whether the base name of p matches the glob pattern
func matchPattern(pattern, p string) bool {
	if pattern == "" {
		pattern = DefaultPattern
	}
	ok, err := filepath.Match(pattern, filepath.Base(p))
	return err == nil && ok
}
