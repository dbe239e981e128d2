// Package storage exposes the read-only view of a directory tree that the
// index and compare phases walk and hash.
package storage

import (
	"context"
	"io"
	"io/fs"
)

// Entry is one name returned by ReadDir
type Entry struct {
	Name string
	// Type holds the fs.ModeType bits, zero for a regular file
	Type fs.FileMode
}

// IsDir reports whether the entry is a directory
func (e Entry) IsDir() bool { return e.Type.IsDir() }

// IsRegular reports whether the entry is a regular file. Symlinks, devices,
// sockets and pipes are not.
func (e Entry) IsRegular() bool { return e.Type.IsRegular() }

// Backend is a tree rooted somewhere. Paths are relative to that root,
// '/'-separated, and "" names the root itself. Errors wrap fs.ErrNotExist
// or fs.ErrPermission where they apply.
type Backend interface {
	// ReadDir lists a directory without following symlinks
	ReadDir(ctx context.Context, path string) ([]Entry, error)

	// Open opens a regular file for streaming reads
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Stat describes path without following a final symlink
	Stat(ctx context.Context, path string) (fs.FileInfo, error)

	// Root locates the tree for messages and reports
	Root() string

	Close() error
}
