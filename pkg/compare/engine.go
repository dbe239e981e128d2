package compare

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sdejongh/treeverify/pkg/digest"
	"github.com/sdejongh/treeverify/pkg/index"
	"github.com/sdejongh/treeverify/pkg/models"
	"github.com/sdejongh/treeverify/pkg/storage"
	"github.com/sdejongh/treeverify/pkg/walk"
)

// Config holds the collaborators of the compare phase
type Config struct {
	Backend    storage.Backend
	Walker     *walk.Walker
	Hasher     *digest.Hasher
	MaxWorkers int
	Policy     models.ReadErrorPolicy
}

// Engine classifies target files against a base index
type Engine struct {
	cfg Config
}

// NewEngine creates a compare engine
func NewEngine(cfg Config) *Engine {
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 1
	}
	if cfg.Policy == "" {
		cfg.Policy = models.ReadErrorRecord
	}
	return &Engine{cfg: cfg}
}

// Compare walks the target tree and calls emit exactly once per regular
// target file. emit is always called from the same goroutine, so it may
// mutate unsynchronized state such as a models.Report.
//
// A target file whose key is absent from idx is reported as not found
// without being read. Otherwise the matching record is marked visited and
// the file digest decides between matched and content mismatch.
// Outcomes emitted before a fatal error or cancellation must be discarded
// by the caller.
func (e *Engine) Compare(ctx context.Context, idx *index.Index, emit func(models.Outcome)) error {
	outcomes := make(chan models.Outcome, e.cfg.MaxWorkers)
	emitDone := make(chan struct{})

	go func() {
		defer close(emitDone)
		for o := range outcomes {
			emit(o)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxWorkers)

	send := func(o models.Outcome) error {
		select {
		case outcomes <- o:
			return nil
		case <-gctx.Done():
			return gctx.Err()
		}
	}

	walkErr := e.cfg.Walker.Walk(gctx, func(f walk.File) error {
		rec, ok := idx.Lookup(digest.PathKeyOf(f.RelativePath))
		if !ok {
			return send(models.Outcome{Kind: models.OutcomeNotFoundInBase, RelativePath: f.RelativePath})
		}
		if rec.RelativePath != f.RelativePath {
			return models.NewFatalError(models.FatalPathKeyCollision, f.AbsolutePath,
				fmt.Errorf("key %s also held by base file %q", rec.Key, rec.RelativePath))
		}

		g.Go(func() error {
			o, err := e.classify(gctx, f, rec)
			if err != nil {
				return err
			}
			return send(o)
		})
		return nil
	})

	taskErr := g.Wait()
	close(outcomes)
	<-emitDone

	for _, err := range []error{taskErr, walkErr} {
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	if taskErr != nil {
		return taskErr
	}
	if walkErr != nil {
		return walkErr
	}
	return ctx.Err()
}

func (e *Engine) classify(ctx context.Context, f walk.File, rec *index.FileRecord) (models.Outcome, error) {
	d, n, err := e.cfg.Hasher.File(ctx, e.cfg.Backend, f.RelativePath, rec.Size)
	if err != nil {
		if ctx.Err() != nil {
			return models.Outcome{}, ctx.Err()
		}
		if e.cfg.Policy == models.ReadErrorAbort {
			return models.Outcome{}, models.NewFatalError(models.FatalTargetFileUnreadable, f.AbsolutePath, err)
		}
		rec.Visit()
		return models.Outcome{Kind: models.OutcomeReadError, RelativePath: f.RelativePath, Size: n, Err: err}, nil
	}

	rec.Visit()

	kind := models.OutcomeContentMismatch
	if d == rec.Digest {
		kind = models.OutcomeMatched
	}
	return models.Outcome{Kind: kind, RelativePath: f.RelativePath, Size: n}, nil
}
