package retier

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter selects object keys, relative to their dataset root, by shell glob patterns.
// A key is selected when it matches at least one include pattern (if any are given) and no exclude pattern.
// A pattern matching a directory also matches every key below it.
type Filter struct {
	Include []string
	Exclude []string
}

func NewFilter(include, exclude []string) (*Filter, error) {
	f := &Filter{}
	for _, p := range include {
		p = normalize(p)
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid include pattern %q", p)
		}
		f.Include = append(f.Include, p)
	}
	for _, p := range exclude {
		p = normalize(p)
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
		f.Exclude = append(f.Exclude, p)
	}

	return f, nil
}

// Match reports whether the relative key is selected. A nil filter selects everything.
func (f *Filter) Match(rel string) bool {
	if f == nil {
		return true
	}
	if len(f.Include) > 0 && !matchAny(f.Include, rel) {
		return false
	}
	return !matchAny(f.Exclude, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		for candidate := rel; candidate != "." && candidate != "/" && candidate != ""; candidate = path.Dir(candidate) {
			// patterns are validated up front
			if ok, _ := doublestar.Match(p, candidate); ok {
				return true
			}
		}
	}
	return false
}

func normalize(pattern string) string {
	return strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(pattern), "/"), "/")
}
