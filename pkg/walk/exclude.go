package walk

import (
	"path"
	"strings"

	"github.com/sdejongh/treeverify/internal/platform"
)

// Matcher decides which relative paths are left out of a walk.
// Patterns support:
//   - Simple glob patterns: *.tmp, *.log
//   - Directory patterns: .git/, node_modules/
//   - Path patterns: build/*, **/test/*
type Matcher struct {
	patterns []string
}

// NewMatcher creates a matcher from exclude patterns. Empty patterns are ignored.
func NewMatcher(patterns []string) *Matcher {
	m := &Matcher{}
	for _, p := range patterns {
		p = platform.ToSlash(strings.TrimSpace(p))
		if p != "" {
			m.patterns = append(m.patterns, p)
		}
	}
	return m
}

// Empty reports whether the matcher has no patterns
func (m *Matcher) Empty() bool {
	return m == nil || len(m.patterns) == 0
}

// Match reports whether relativePath ("/"-separated) is excluded.
// isDir enables directory patterns to prune the directory itself.
func (m *Matcher) Match(relativePath string, isDir bool) bool {
	if m.Empty() {
		return false
	}

	baseName := path.Base(relativePath)

	for _, pattern := range m.patterns {
		if strings.HasSuffix(pattern, "/") {
			dirPattern := strings.TrimSuffix(pattern, "/")
			if strings.HasPrefix(relativePath, dirPattern+"/") ||
				strings.Contains(relativePath, "/"+dirPattern+"/") {
				return true
			}
			if isDir && (relativePath == dirPattern || strings.HasSuffix(relativePath, "/"+dirPattern)) {
				return true
			}
			continue
		}

		if strings.Contains(pattern, "**") {
			parts := strings.Split(pattern, "**/")
			if len(parts) == 2 && parts[0] == "" {
				suffix := parts[1]
				if matchGlob(baseName, suffix) {
					return true
				}
				if strings.HasSuffix(relativePath, "/"+suffix) || relativePath == suffix {
					return true
				}
				if matchGlobPath(relativePath, suffix) {
					return true
				}
			}
			continue
		}

		if strings.Contains(pattern, "/") {
			if matched, _ := path.Match(pattern, relativePath); matched {
				return true
			}
			if relativePath == pattern || strings.HasSuffix(relativePath, "/"+pattern) {
				return true
			}
		} else if matchGlob(baseName, pattern) {
			return true
		}
	}

	return false
}

func matchGlob(name, pattern string) bool {
	matched, _ := path.Match(pattern, name)
	return matched
}

// matchGlobPath checks if any component of the path matches the pattern
func matchGlobPath(p, pattern string) bool {
	for _, part := range strings.Split(p, "/") {
		if matchGlob(part, pattern) {
			return true
		}
	}
	return false
}
