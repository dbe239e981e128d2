package platform

import (
	"path"
	"path/filepath"
	"runtime"
	"strings"
)

// NormalizeRelative returns the canonical form of a path relative to a tree root.
// The platform separator maps to '/', the result is cleaned and carries no
// leading "./" or "/". The root itself normalizes to "".
// Outside Windows a backslash is an ordinary file name character and is kept.
func NormalizeRelative(rel string) string {
	cleaned := path.Clean("/" + ToSlash(rel))
	return strings.TrimPrefix(cleaned, "/")
}

// ToSlash replaces the platform separator with '/'. On Windows both '\'
// and '/' separate path elements.
func ToSlash(p string) string {
	if runtime.GOOS == "windows" {
		return strings.ReplaceAll(p, "\\", "/")
	}
	return filepath.ToSlash(p)
}

// JoinRelative joins a normalized relative directory and an entry name
func JoinRelative(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// IsUNCPath checks if a path is a UNC path (Windows network share)
func IsUNCPath(p string) bool {
	if runtime.GOOS != "windows" {
		return false
	}
	return strings.HasPrefix(p, "\\\\") || strings.HasPrefix(p, "//")
}

// ResolveRoot returns the absolute, cleaned form of a tree root
func ResolveRoot(root string) (string, error) {
	if err := ValidatePath(root); err != nil {
		return "", err
	}
	if IsUNCPath(root) {
		return filepath.Clean(root), nil
	}
	return filepath.Abs(root)
}

// IsNested reports whether inner lives strictly below outer.
// Both paths must be absolute and clean.
func IsNested(outer, inner string) bool {
	return strings.HasPrefix(inner, outer+string(filepath.Separator))
}

// ValidatePath checks if a path is valid for the current platform
func ValidatePath(p string) error {
	if p == "" {
		return &PathError{Path: p, Message: "path is empty"}
	}

	if runtime.GOOS == "windows" {
		invalidChars := []string{"<", ">", "\"", "|", "?", "*"}
		for _, char := range invalidChars {
			if strings.Contains(p, char) && !IsUNCPath(p) {
				return &PathError{Path: p, Message: "path contains invalid character: " + char}
			}
		}
	}

	return nil
}

// PathError represents a path validation error
type PathError struct {
	Path    string
	Message string
}

func (e *PathError) Error() string {
	return "invalid path '" + e.Path + "': " + e.Message
}
