package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"

	"github.com/go-git/go-billy/v5"

	"github.com/sdejongh/treeverify/pkg/models"
)

// Billy is a storage backend over any go-billy filesystem (in-memory, chrooted OS, ...)
type Billy struct {
	fs   billy.Filesystem
	root string
}

// NewBilly creates a backend rooted at root inside fsys
func NewBilly(fsys billy.Filesystem, root string) (*Billy, error) {
	info, err := fsys.Stat(root)
	if err != nil {
		return nil, models.NewFatalError(models.FatalRootInvalid, root, err)
	}
	if !info.IsDir() {
		return nil, models.NewFatalError(models.FatalRootInvalid, root, fmt.Errorf("not a directory"))
	}

	sub, err := fsys.Chroot(root)
	if err != nil {
		return nil, models.NewFatalError(models.FatalRootInvalid, root, err)
	}

	return &Billy{fs: sub, root: root}, nil
}

// ReadDir lists a directory
func (b *Billy) ReadDir(ctx context.Context, path string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos, err := b.fs.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("billy: readdir %q: %w", path, err)
	}

	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, Entry{Name: info.Name(), Type: info.Mode().Type()})
	}

	return entries, nil
}

// Open opens a file for reading
func (b *Billy) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := b.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("billy: open %q: %w", path, err)
	}

	return f, nil
}

// Stat returns file metadata without following symlinks
func (b *Billy) Stat(ctx context.Context, path string) (fs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := b.fs.Lstat(path)
	if err != nil {
		return nil, fmt.Errorf("billy: stat %q: %w", path, err)
	}
	return info, nil
}

// Root returns the root of the chrooted filesystem
func (b *Billy) Root() string {
	return b.fs.Root()
}

// Close releases resources (no-op for billy filesystems)
func (b *Billy) Close() error {
	return nil
}
