package watcher

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Filter decides which paths of a raw event are worth tracking.
// It holds no mutable state and is safe for concurrent use.
type Filter struct {
	extensions map[string]struct{}
	prefixes   []string
	ignore     []glob.Glob
}

func NewFilter(extensions, prefixes, ignorePatterns []string) (*Filter, error) {
	f := &Filter{
		extensions: make(map[string]struct{}, len(extensions)),
		prefixes:   prefixes,
		ignore:     make([]glob.Glob, 0, len(ignorePatterns)),
	}

	for _, ext := range extensions {
		f.extensions[ext] = struct{}{}
	}

	for _, pattern := range ignorePatterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" || strings.HasPrefix(pattern, "#") {
			continue
		}

		g, err := glob.Compile(filepath.ToSlash(pattern), '/')
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, pattern, err)
		}
		f.ignore = append(f.ignore, g)
	}

	return f, nil
}

// Relevant returns the candidate paths of event in their original order.
// The second result is false when nothing in the event qualifies, which
// callers must treat as "skip" rather than as an empty batch.
func (f *Filter) Relevant(event Event) ([]string, bool) {
	if event.Kind != KindCreate && event.Kind != KindModify {
		return nil, false
	}

	var paths []string
	for _, p := range event.Paths {
		if f.Match(p) {
			paths = append(paths, p)
		}
	}

	if len(paths) == 0 {
		return nil, false
	}
	return paths, true
}

// Match applies the extension, prefix and ignore rules to a single path.
func (f *Filter) Match(path string) bool {
	name := filepath.Base(path)

	ext := filepath.Ext(name)
	if ext == "" || ext == name {
		return false
	}
	if _, ok := f.extensions[ext[1:]]; !ok {
		return false
	}

	if !f.hasPrefix(name) {
		return false
	}

	return !f.isIgnored(path, name)
}

// hasPrefix accepts any name when no prefixes are configured.
func (f *Filter) hasPrefix(name string) bool {
	if len(f.prefixes) == 0 {
		return true
	}
	for _, prefix := range f.prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func (f *Filter) isIgnored(path, name string) bool {
	normalized := filepath.ToSlash(path)
	for _, g := range f.ignore {
		if g.Match(normalized) || g.Match(name) {
			return true
		}
	}
	return false
}
