package walk

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/sdejongh/treeverify/internal/platform"
	"github.com/sdejongh/treeverify/pkg/models"
	"github.com/sdejongh/treeverify/pkg/storage"
)

// File is a regular file found under a walked root
type File struct {
	// RelativePath is "/"-separated and relative to the root
	RelativePath string
	// AbsolutePath locates the file for log and error messages
	AbsolutePath string
}

// SkipFunc is called for every entry that is neither a regular file nor a directory
type SkipFunc func(relativePath string, mode fs.FileMode)

// Walker enumerates the regular files of a backend breadth-first
type Walker struct {
	backend storage.Backend
	matcher *Matcher
	onSkip  SkipFunc
}

// New creates a walker over backend. Paths matching excludePatterns are not
// reported, and excluded directories are not entered.
func New(backend storage.Backend, excludePatterns []string) *Walker {
	return &Walker{
		backend: backend,
		matcher: NewMatcher(excludePatterns),
	}
}

// SetSkipHandler sets the callback for non-regular entries (symlinks, devices, sockets, pipes)
func (w *Walker) SetSkipHandler(fn SkipFunc) {
	w.onSkip = fn
}

// Walk calls fn once per regular file strictly under the root.
// Directories are read from an explicit FIFO queue; a directory that cannot
// be read stops the walk with a directory_unreadable FatalError.
// An error returned by fn stops the walk and is returned unchanged.
func (w *Walker) Walk(ctx context.Context, fn func(File) error) error {
	queue := []string{""}

	for head := 0; head < len(queue); head++ {
		dir := queue[head]
		queue[head] = ""

		if err := ctx.Err(); err != nil {
			return err
		}

		entries, err := w.backend.ReadDir(ctx, dir)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return models.NewFatalError(models.FatalDirectoryUnreadable, w.absolute(dir), err)
		}

		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Name < entries[j].Name
		})

		for _, entry := range entries {
			rel := platform.JoinRelative(dir, entry.Name)

			switch {
			case entry.IsDir():
				if w.matcher.Match(rel, true) {
					continue
				}
				queue = append(queue, rel)

			case entry.IsRegular():
				if w.matcher.Match(rel, false) {
					continue
				}
				if err := fn(File{RelativePath: rel, AbsolutePath: w.absolute(rel)}); err != nil {
					return err
				}

			default:
				if w.matcher.Match(rel, false) {
					continue
				}
				if w.onSkip != nil {
					w.onSkip(rel, entry.Type)
				}
			}
		}
	}

	return nil
}

func (w *Walker) absolute(rel string) string {
	if rel == "" {
		return w.backend.Root()
	}
	return filepath.Join(w.backend.Root(), filepath.FromSlash(rel))
}
