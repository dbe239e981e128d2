package models

import "fmt"

// FatalKind categorizes errors that abort a verification run
type FatalKind string

const (
	// FatalRootInvalid indicates a root does not exist or is not a directory
	FatalRootInvalid FatalKind = "root_invalid"
	// FatalDirectoryUnreadable indicates a directory could not be listed mid-walk
	FatalDirectoryUnreadable FatalKind = "directory_unreadable"
	// FatalPathKeyCollision indicates two distinct relative paths produced the same path key
	FatalPathKeyCollision FatalKind = "path_key_collision"
	// FatalBaseFileUnreadable indicates a base file could not be hashed
	FatalBaseFileUnreadable FatalKind = "base_file_unreadable"
	// FatalTargetFileUnreadable indicates a target file could not be hashed under the abort policy
	FatalTargetFileUnreadable FatalKind = "target_file_unreadable"
)

// FatalError aborts a run; no report is produced
type FatalError struct {
	Kind FatalKind
	Path string
	Err  error
}

func (e *FatalError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// NewFatalError creates a fatal error of the given kind
func NewFatalError(kind FatalKind, path string, err error) *FatalError {
	return &FatalError{Kind: kind, Path: path, Err: err}
}
