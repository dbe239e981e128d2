package index

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sdejongh/treeverify/pkg/digest"
	"github.com/sdejongh/treeverify/pkg/models"
	"github.com/sdejongh/treeverify/pkg/storage"
	"github.com/sdejongh/treeverify/pkg/walk"
)

// BuildConfig holds what Build needs to index a base tree
type BuildConfig struct {
	Backend    storage.Backend
	Walker     *walk.Walker
	Hasher     *digest.Hasher
	MaxWorkers int

	// OnRecord is called from the inserting goroutine after each successful insert
	OnRecord func(rec *FileRecord)
}

// Build walks the base tree once and indexes every regular file.
// Digests are computed on at most MaxWorkers goroutines; records reach the
// index through a single inserting goroutine. Any unreadable base file, any
// unreadable directory and any key collision fail the whole build.
func Build(ctx context.Context, cfg BuildConfig) (*Index, error) {
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 1
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	idx := New()
	records := make(chan *FileRecord, cfg.MaxWorkers)
	insertDone := make(chan struct{})
	var insertErr error

	go func() {
		defer close(insertDone)
		for rec := range records {
			if insertErr != nil {
				continue
			}
			if err := idx.Insert(rec); err != nil {
				insertErr = err
				cancel(err)
				continue
			}
			if cfg.OnRecord != nil {
				cfg.OnRecord(rec)
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.MaxWorkers)

	walkErr := cfg.Walker.Walk(gctx, func(f walk.File) error {
		g.Go(func() error {
			d, n, err := hashFile(gctx, cfg, f.RelativePath)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return models.NewFatalError(models.FatalBaseFileUnreadable, f.AbsolutePath, err)
			}

			select {
			case records <- NewFileRecord(f.RelativePath, d, n):
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
		return nil
	})

	taskErr := g.Wait()
	close(records)
	<-insertDone

	if err := firstError(insertErr, taskErr, walkErr); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, context.Cause(ctx)
	}

	return idx, nil
}

// hashFile stats the file first so progress reports carry its expected size
func hashFile(ctx context.Context, cfg BuildConfig, relativePath string) (digest.Digest, int64, error) {
	info, err := cfg.Backend.Stat(ctx, relativePath)
	if err != nil {
		return digest.Digest{}, 0, fmt.Errorf("failed to stat file: %w", err)
	}
	return cfg.Hasher.File(ctx, cfg.Backend, relativePath, info.Size())
}

// firstError prefers errors that explain a failure over the cancellation they caused
func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
