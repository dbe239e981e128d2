package index

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/sdejongh/treeverify/pkg/digest"
	"github.com/sdejongh/treeverify/pkg/models"
)

// FileRecord is one base file captured at index-build time
type FileRecord struct {
	RelativePath string
	Key          digest.Key
	Digest       digest.Digest
	Size         int64

	visited atomic.Bool
}

// NewFileRecord creates an unvisited record for a normalized relative path
func NewFileRecord(relativePath string, d digest.Digest, size int64) *FileRecord {
	return &FileRecord{
		RelativePath: relativePath,
		Key:          digest.PathKeyOf(relativePath),
		Digest:       d,
		Size:         size,
	}
}

// Visit marks the record as visited. It returns true only for the call that
// flipped the flag; later calls are no-ops.
func (r *FileRecord) Visit() bool {
	return r.visited.CompareAndSwap(false, true)
}

// Visited reports whether a target file has resolved to this record
func (r *FileRecord) Visited() bool {
	return r.visited.Load()
}

// Index maps path keys to base file records.
// Inserts must come from a single goroutine; once built, lookups and
// Visit calls are safe from any number of goroutines.
type Index struct {
	records map[digest.Key]*FileRecord
}

// New creates an empty index
func New() *Index {
	return &Index{records: make(map[digest.Key]*FileRecord)}
}

// Insert adds a record. A key already held by another record is a
// path_key_collision FatalError, whether the paths differ or not.
func (idx *Index) Insert(rec *FileRecord) error {
	if existing, ok := idx.records[rec.Key]; ok {
		if existing.RelativePath != rec.RelativePath {
			return models.NewFatalError(models.FatalPathKeyCollision, rec.RelativePath,
				fmt.Errorf("key %s already held by %q", rec.Key, existing.RelativePath))
		}
		return models.NewFatalError(models.FatalPathKeyCollision, rec.RelativePath,
			fmt.Errorf("duplicate relative path"))
	}

	idx.records[rec.Key] = rec
	return nil
}

// Lookup returns the record for key
func (idx *Index) Lookup(key digest.Key) (*FileRecord, bool) {
	rec, ok := idx.records[key]
	return rec, ok
}

// Len returns the number of records
func (idx *Index) Len() int {
	return len(idx.records)
}

// NotVisited returns the sorted relative paths of records no target file resolved to
func (idx *Index) NotVisited() []string {
	paths := make([]string, 0)
	for _, rec := range idx.records {
		if !rec.Visited() {
			paths = append(paths, rec.RelativePath)
		}
	}
	sort.Strings(paths)
	return paths
}

// TotalBytes returns the summed size of all indexed files
func (idx *Index) TotalBytes() int64 {
	var total int64
	for _, rec := range idx.records {
		total += rec.Size
	}
	return total
}
