package compare

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sdejongh/treeverify/pkg/digest"
	"github.com/sdejongh/treeverify/pkg/index"
	"github.com/sdejongh/treeverify/pkg/models"
	"github.com/sdejongh/treeverify/pkg/storage"
	"github.com/sdejongh/treeverify/pkg/walk"
)

// TestHelper provides base and target trees for engine tests
type TestHelper struct {
	t       *testing.T
	tempDir string
	base    *storage.Local
	target  *storage.Local
}

// NewTestHelper creates a new test helper with temporary directories
func NewTestHelper(t *testing.T) *TestHelper {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "treeverify-compare-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	baseDir := filepath.Join(tempDir, "base")
	targetDir := filepath.Join(tempDir, "target")

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		t.Fatalf("failed to create base dir: %v", err)
	}
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		t.Fatalf("failed to create target dir: %v", err)
	}

	base, err := storage.NewLocal(baseDir)
	if err != nil {
		t.Fatalf("failed to create base backend: %v", err)
	}

	target, err := storage.NewLocal(targetDir)
	if err != nil {
		t.Fatalf("failed to create target backend: %v", err)
	}

	return &TestHelper{
		t:       t,
		tempDir: tempDir,
		base:    base,
		target:  target,
	}
}

// Cleanup removes all temporary files
func (h *TestHelper) Cleanup() {
	os.RemoveAll(h.tempDir)
}

// CreateBaseFile creates a file in the base directory
func (h *TestHelper) CreateBaseFile(name string, content []byte) {
	h.t.Helper()
	h.writeFile("base", name, content)
}

// CreateTargetFile creates a file in the target directory
func (h *TestHelper) CreateTargetFile(name string, content []byte) {
	h.t.Helper()
	h.writeFile("target", name, content)
}

func (h *TestHelper) writeFile(tree, name string, content []byte) {
	h.t.Helper()
	path := filepath.Join(h.tempDir, tree, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		h.t.Fatalf("failed to create parent dir: %v", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		h.t.Fatalf("failed to create file: %v", err)
	}
}

// BuildIndex indexes the base tree
func (h *TestHelper) BuildIndex() *index.Index {
	h.t.Helper()
	idx, err := index.Build(context.Background(), index.BuildConfig{
		Backend:    h.base,
		Walker:     walk.New(h.base, nil),
		Hasher:     digest.NewHasher(4096),
		MaxWorkers: 2,
	})
	if err != nil {
		h.t.Fatalf("index.Build() error = %v", err)
	}
	return idx
}

// Engine returns a compare engine over the given target backend
func (h *TestHelper) Engine(backend storage.Backend, policy models.ReadErrorPolicy) *Engine {
	return NewEngine(Config{
		Backend:    backend,
		Walker:     walk.New(backend, nil),
		Hasher:     digest.NewHasher(4096),
		MaxWorkers: 4,
		Policy:     policy,
	})
}

// Collect runs the engine and groups outcome paths by kind
func (h *TestHelper) Collect(e *Engine, idx *index.Index) (map[models.OutcomeKind][]string, error) {
	got := make(map[models.OutcomeKind][]string)
	err := e.Compare(context.Background(), idx, func(o models.Outcome) {
		got[o.Kind] = append(got[o.Kind], o.RelativePath)
	})
	for _, paths := range got {
		sort.Strings(paths)
	}
	return got, err
}

func TestEngineClassification(t *testing.T) {
	h := NewTestHelper(t)
	defer h.Cleanup()

	h.CreateBaseFile("same.txt", []byte("hello"))
	h.CreateBaseFile("dir/changed.txt", []byte("old"))
	h.CreateBaseFile("only-base.txt", []byte("x"))
	h.CreateTargetFile("same.txt", []byte("hello"))
	h.CreateTargetFile("dir/changed.txt", []byte("new"))
	h.CreateTargetFile("dir/new.txt", []byte("new"))

	idx := h.BuildIndex()
	got, err := h.Collect(h.Engine(h.target, models.ReadErrorRecord), idx)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	check := func(kind models.OutcomeKind, want ...string) {
		t.Helper()
		paths := got[kind]
		if len(paths) != len(want) {
			t.Errorf("%s = %v, want %v", kind, paths, want)
			return
		}
		for i := range want {
			if paths[i] != want[i] {
				t.Errorf("%s = %v, want %v", kind, paths, want)
				return
			}
		}
	}

	check(models.OutcomeMatched, "same.txt")
	check(models.OutcomeContentMismatch, "dir/changed.txt")
	check(models.OutcomeNotFoundInBase, "dir/new.txt")
	check(models.OutcomeReadError)

	notVisited := idx.NotVisited()
	if len(notVisited) != 1 || notVisited[0] != "only-base.txt" {
		t.Errorf("NotVisited() = %v, want [only-base.txt]", notVisited)
	}
}

func TestEngineOneOutcomePerFile(t *testing.T) {
	h := NewTestHelper(t)
	defer h.Cleanup()

	for i := 0; i < 40; i++ {
		name := fmt.Sprintf("d/%d/f%d.txt", i%5, i)
		h.CreateBaseFile(name, []byte(name))
		h.CreateTargetFile(name, []byte(name))
		h.CreateTargetFile("extra/"+name, []byte("x"))
	}

	idx := h.BuildIndex()

	seen := make(map[string]int)
	err := h.Engine(h.target, models.ReadErrorRecord).Compare(context.Background(), idx, func(o models.Outcome) {
		seen[o.RelativePath]++
	})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	for p, n := range seen {
		if n != 1 {
			t.Errorf("%s produced %d outcomes, want 1", p, n)
		}
	}
	if len(idx.NotVisited()) != 0 {
		t.Errorf("NotVisited() = %v, want none", idx.NotVisited())
	}
}

type unreadableBackend struct {
	storage.Backend
	path string
}

func (u *unreadableBackend) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if path == u.path {
		return nil, fs.ErrPermission
	}
	return u.Backend.Open(ctx, path)
}

func TestEngineReadErrorPolicy(t *testing.T) {
	h := NewTestHelper(t)
	defer h.Cleanup()

	h.CreateBaseFile("ok.txt", []byte("ok"))
	h.CreateBaseFile("locked.txt", []byte("secret"))
	h.CreateTargetFile("ok.txt", []byte("ok"))
	h.CreateTargetFile("locked.txt", []byte("secret"))

	target := &unreadableBackend{Backend: h.target, path: "locked.txt"}

	t.Run("Record", func(t *testing.T) {
		idx := h.BuildIndex()

		var readErrs []models.Outcome
		err := h.Engine(target, models.ReadErrorRecord).Compare(context.Background(), idx, func(o models.Outcome) {
			if o.Kind == models.OutcomeReadError {
				readErrs = append(readErrs, o)
			}
		})
		if err != nil {
			t.Fatalf("Compare() error = %v", err)
		}

		if len(readErrs) != 1 || readErrs[0].RelativePath != "locked.txt" {
			t.Fatalf("read errors = %v, want [locked.txt]", readErrs)
		}
		if !errors.Is(readErrs[0].Err, fs.ErrPermission) {
			t.Errorf("Err = %v, want fs.ErrPermission", readErrs[0].Err)
		}
		if len(idx.NotVisited()) != 0 {
			t.Error("unreadable target file should still visit its base record")
		}
	})

	t.Run("Abort", func(t *testing.T) {
		idx := h.BuildIndex()

		err := h.Engine(target, models.ReadErrorAbort).Compare(context.Background(), idx, func(models.Outcome) {})

		var fe *models.FatalError
		if !errors.As(err, &fe) || fe.Kind != models.FatalTargetFileUnreadable {
			t.Errorf("Compare() error = %v, want target_file_unreadable", err)
		}
	})
}

func TestEngineNotFoundIsNotRead(t *testing.T) {
	h := NewTestHelper(t)
	defer h.Cleanup()

	h.CreateTargetFile("new.txt", []byte("new"))

	idx := h.BuildIndex()
	target := &unreadableBackend{Backend: h.target, path: "new.txt"}

	got, err := h.Collect(h.Engine(target, models.ReadErrorAbort), idx)
	if err != nil {
		t.Fatalf("Compare() error = %v, files absent from the base must not be opened", err)
	}
	if len(got[models.OutcomeNotFoundInBase]) != 1 {
		t.Errorf("not found = %v, want [new.txt]", got[models.OutcomeNotFoundInBase])
	}
}

func TestEngineCancelled(t *testing.T) {
	h := NewTestHelper(t)
	defer h.Cleanup()

	h.CreateBaseFile("a.txt", []byte("a"))
	h.CreateTargetFile("a.txt", []byte("a"))
	idx := h.BuildIndex()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.Engine(h.target, models.ReadErrorRecord).Compare(ctx, idx, func(models.Outcome) {})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Compare() error = %v, want context.Canceled", err)
	}
}

func TestNewEngineDefaults(t *testing.T) {
	e := NewEngine(Config{})
	if e.cfg.MaxWorkers != 1 {
		t.Errorf("MaxWorkers = %d, want 1", e.cfg.MaxWorkers)
	}
	if e.cfg.Policy != models.ReadErrorRecord {
		t.Errorf("Policy = %s, want %s", e.cfg.Policy, models.ReadErrorRecord)
	}
}

func TestEnginePathKeyCollision(t *testing.T) {
	h := NewTestHelper(t)
	defer h.Cleanup()

	h.CreateTargetFile("a.txt", []byte("a"))

	// a base record under another path holding the key of a.txt
	idx := index.New()
	forged := &index.FileRecord{RelativePath: "other.txt", Key: digest.PathKeyOf("a.txt")}
	if err := idx.Insert(forged); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	target := &unreadableBackend{Backend: h.target, path: "a.txt"}
	var outcomes []models.Outcome
	err := h.Engine(target, models.ReadErrorAbort).Compare(context.Background(), idx, func(o models.Outcome) {
		outcomes = append(outcomes, o)
	})

	var fe *models.FatalError
	if !errors.As(err, &fe) || fe.Kind != models.FatalPathKeyCollision {
		t.Fatalf("Compare() error = %v, want path_key_collision", err)
	}
	if len(outcomes) != 0 {
		t.Errorf("outcomes = %v, want none", outcomes)
	}
	if forged.Visited() {
		t.Error("a colliding record must not be visited")
	}
}

// gatedBackend holds every Open until released and records the peak
// number of concurrent Open calls
type gatedBackend struct {
	storage.Backend
	release  chan struct{}
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (g *gatedBackend) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}

	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.Backend.Open(ctx, path)
}

func TestEngineBoundsConcurrentOpens(t *testing.T) {
	h := NewTestHelper(t)
	defer h.Cleanup()

	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("d%d/f%d.txt", i%3, i)
		h.CreateBaseFile(name, []byte(name))
		h.CreateTargetFile(name, []byte(name))
	}

	for _, workers := range []int{1, 3, 8} {
		t.Run(fmt.Sprintf("Workers%d", workers), func(t *testing.T) {
			idx := h.BuildIndex()
			gated := &gatedBackend{Backend: h.target, release: make(chan struct{})}
			engine := NewEngine(Config{
				Backend:    gated,
				Walker:     walk.New(gated, nil),
				Hasher:     digest.NewHasher(4096),
				MaxWorkers: workers,
			})

			matched := 0
			done := make(chan error, 1)
			go func() {
				done <- engine.Compare(context.Background(), idx, func(o models.Outcome) {
					if o.Kind == models.OutcomeMatched {
						matched++
					}
				})
			}()

			deadline := time.Now().Add(5 * time.Second)
			for gated.inFlight.Load() < int32(workers) {
				if time.Now().After(deadline) {
					close(gated.release)
					t.Fatalf("only %d opens in flight, want %d", gated.inFlight.Load(), workers)
				}
				time.Sleep(time.Millisecond)
			}
			time.Sleep(20 * time.Millisecond)
			close(gated.release)

			if err := <-done; err != nil {
				t.Fatalf("Compare() error = %v", err)
			}
			if matched != 20 {
				t.Errorf("matched = %d, want 20", matched)
			}
			if peak := gated.peak.Load(); peak != int32(workers) {
				t.Errorf("peak concurrent opens = %d, want %d", peak, workers)
			}
		})
	}
}
