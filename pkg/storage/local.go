package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sdejongh/treeverify/pkg/models"
)

// Local reads a tree on the local filesystem through an os.Root, so no
// relative path can resolve outside the tree.
type Local struct {
	abs  string
	root *os.Root
}

// NewLocal opens the directory at path. A missing path, or one that is not
// a directory, is a root_invalid fatal error.
func NewLocal(path string) (*Local, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, models.NewFatalError(models.FatalRootInvalid, path, err)
	}

	info, err := os.Stat(abs)
	switch {
	case err != nil:
		return nil, models.NewFatalError(models.FatalRootInvalid, abs, err)
	case !info.IsDir():
		return nil, models.NewFatalError(models.FatalRootInvalid, abs, errors.New("not a directory"))
	}

	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, models.NewFatalError(models.FatalRootInvalid, abs, err)
	}
	return &Local{abs: abs, root: root}, nil
}

func (l *Local) ReadDir(ctx context.Context, path string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := l.root.Open(l.name(path))
	if err != nil {
		return nil, err
	}
	defer dir.Close()

	list, err := dir.ReadDir(-1)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(list))
	for i, d := range list {
		entries[i] = Entry{Name: d.Name(), Type: d.Type()}
	}
	return entries, nil
}

func (l *Local) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := l.root.Open(l.name(path))
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (l *Local) Stat(ctx context.Context, path string) (fs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.root.Lstat(l.name(path))
}

// Root returns the absolute path of the tree
func (l *Local) Root() string { return l.abs }

func (l *Local) Close() error { return l.root.Close() }

// name converts a backend path to an os.Root name
func (l *Local) name(path string) string {
	if path == "" {
		return "."
	}
	return filepath.FromSlash(path)
}
