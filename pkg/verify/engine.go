package verify

import (
	"context"
	"io"
	"io/fs"
	"time"

	"github.com/google/uuid"

	"github.com/sdejongh/treeverify/pkg/compare"
	"github.com/sdejongh/treeverify/pkg/digest"
	"github.com/sdejongh/treeverify/pkg/index"
	"github.com/sdejongh/treeverify/pkg/logging"
	"github.com/sdejongh/treeverify/pkg/models"
	"github.com/sdejongh/treeverify/pkg/output"
	"github.com/sdejongh/treeverify/pkg/ratelimit"
	"github.com/sdejongh/treeverify/pkg/storage"
	"github.com/sdejongh/treeverify/pkg/walk"
)

// Config holds the collaborators of a verification run
type Config struct {
	Operation *models.Operation

	// Base and Target are opened as local directories from the operation
	// paths when nil
	Base   storage.Backend
	Target storage.Backend

	Formatter output.Formatter
	Output    io.Writer
	Logger    logging.Logger
}

// Engine orchestrates a verification run
type Engine struct {
	cfg       Config
	operation *models.Operation
	formatter output.Formatter
	logger    logging.Logger
}

// NewEngine creates a new verification engine
func NewEngine(cfg Config) *Engine {
	formatter := cfg.Formatter
	if formatter == nil {
		formatter = output.NewNullFormatter()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Engine{
		cfg:       cfg,
		operation: cfg.Operation,
		formatter: formatter,
		logger:    logger,
	}
}

// Run indexes the base tree, compares the target tree against it and
// returns the finalized report. Any fatal error or cancellation returns a
// nil report.
func (e *Engine) Run(ctx context.Context) (*models.Report, error) {
	op := e.operation
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now()
	}

	logger := e.logger.WithFields(logging.Fields{"run_id": op.ID})
	startTime := time.Now()

	logger.Info(ctx, "Starting verification", logging.Fields{
		"base":            op.BasePath,
		"target":          op.TargetPath,
		"max_workers":     op.MaxWorkers,
		"read_error":      string(op.ReadErrorPolicy),
		"bandwidth_limit": op.BandwidthLimit,
	})

	e.formatter.Start(e.cfg.Output, op)

	base, target, err := e.openRoots()
	if err != nil {
		return nil, e.fail(ctx, logger, err)
	}
	defer base.Close()
	defer target.Close()

	hasher := digest.NewHasher(op.BufferSize)
	logger.Debug(ctx, "Hasher configured", logging.Fields{"buffer_size": hasher.BufferSize()})
	if limiter := ratelimit.NewLimiter(op.BandwidthLimit); limiter != nil {
		hasher.SetReaderWrapper(limiter.Wrap(ctx))
		logger.Info(ctx, "Bandwidth limit enabled", logging.Fields{
			"bandwidth": ratelimit.FormatBandwidth(limiter.BytesPerSecond()),
		})
	}

	// Phase 1: index the base tree
	idx, skippedBase, err := e.buildIndex(ctx, logger, base, hasher)
	if err != nil {
		return nil, e.fail(ctx, logger, err)
	}

	// Phase 2: compare the target tree
	report := models.NewReport(op, startTime)
	skippedTarget, err := e.compareTarget(ctx, logger, target, hasher, idx, report)
	if err != nil {
		return nil, e.fail(ctx, logger, err)
	}

	// Phase 3: finalize once every comparison has returned
	report.Stats.BaseFiles = idx.Len()
	report.Stats.BytesHashed += idx.TotalBytes()
	report.Stats.SkippedBase = skippedBase
	report.Stats.SkippedTarget = skippedTarget
	report.Finalize(idx.NotVisited(), time.Now())

	e.formatter.Complete(report)

	logger.Info(ctx, "Verification completed", logging.Fields{
		"duration":     report.Duration.String(),
		"status":       string(report.Status),
		"base_files":   report.Stats.BaseFiles,
		"target_files": report.Stats.TargetFiles,
		"matched":      report.Stats.Matched,
		"mismatches":   len(report.Mismatches),
		"not_found":    len(report.NotFound),
		"not_compared": len(report.NotCompared),
		"read_errors":  len(report.ReadErrors),
		"bytes_hashed": report.Stats.BytesHashed,
	})

	return report, nil
}

func (e *Engine) buildIndex(ctx context.Context, logger logging.Logger, base storage.Backend, hasher *digest.Hasher) (*index.Index, int, error) {
	logger.Info(ctx, "Indexing base tree", logging.Fields{"root": base.Root()})
	e.formatter.PhaseStart(output.PhaseIndex)

	walker := walk.New(base, e.operation.ExcludePatterns)
	skipped := 0
	walker.SetSkipHandler(func(rel string, mode fs.FileMode) {
		skipped++
		e.skip(ctx, logger, output.PhaseIndex, rel, mode)
	})

	idx, err := index.Build(ctx, index.BuildConfig{
		Backend:    base,
		Walker:     walker,
		Hasher:     hasher,
		MaxWorkers: e.operation.MaxWorkers,
		OnRecord: func(rec *index.FileRecord) {
			e.formatter.Progress(output.ProgressUpdate{
				Type:     output.UpdateFileComplete,
				Phase:    output.PhaseIndex,
				FilePath: rec.RelativePath,
				Bytes:    rec.Size,
			})
		},
	})
	if err != nil {
		return nil, 0, err
	}

	e.formatter.PhaseEnd(output.PhaseIndex, idx.Len(), idx.TotalBytes())
	logger.Info(ctx, "Base tree indexed", logging.Fields{
		"files":   idx.Len(),
		"bytes":   idx.TotalBytes(),
		"skipped": skipped,
	})

	return idx, skipped, nil
}

func (e *Engine) compareTarget(ctx context.Context, logger logging.Logger, target storage.Backend, hasher *digest.Hasher, idx *index.Index, report *models.Report) (int, error) {
	logger.Info(ctx, "Comparing target tree", logging.Fields{"root": target.Root()})
	e.formatter.PhaseStart(output.PhaseCompare)

	walker := walk.New(target, e.operation.ExcludePatterns)
	skipped := 0
	walker.SetSkipHandler(func(rel string, mode fs.FileMode) {
		skipped++
		e.skip(ctx, logger, output.PhaseCompare, rel, mode)
	})

	engine := compare.NewEngine(compare.Config{
		Backend:    target,
		Walker:     walker,
		Hasher:     hasher,
		MaxWorkers: e.operation.MaxWorkers,
		Policy:     e.operation.ReadErrorPolicy,
	})

	var files int
	var bytes int64
	err := engine.Compare(ctx, idx, func(o models.Outcome) {
		report.Record(o)
		files++
		bytes += o.Size

		switch o.Kind {
		case models.OutcomeReadError:
			logger.Warn(ctx, "Target file could not be read", logging.Fields{
				"path":  o.RelativePath,
				"error": o.Err.Error(),
			})
		case models.OutcomeContentMismatch, models.OutcomeNotFoundInBase:
			logger.Debug(ctx, "Difference found", logging.Fields{
				"path":    o.RelativePath,
				"outcome": string(o.Kind),
			})
		}

		e.formatter.Progress(output.ProgressUpdate{
			Type:     output.UpdateFileComplete,
			Phase:    output.PhaseCompare,
			FilePath: o.RelativePath,
			Bytes:    o.Size,
			Outcome:  o.Kind,
			Error:    o.Err,
		})
	})
	if err != nil {
		return 0, err
	}

	e.formatter.PhaseEnd(output.PhaseCompare, files, bytes)
	logger.Info(ctx, "Target tree compared", logging.Fields{
		"files":   files,
		"bytes":   bytes,
		"skipped": skipped,
	})

	return skipped, nil
}

func (e *Engine) skip(ctx context.Context, logger logging.Logger, phase output.Phase, rel string, mode fs.FileMode) {
	logger.Warn(ctx, "Skipping non-regular entry", logging.Fields{
		"phase": string(phase),
		"path":  rel,
		"mode":  mode.Type().String(),
	})
	e.formatter.Progress(output.ProgressUpdate{
		Type:     output.UpdateFileSkipped,
		Phase:    phase,
		FilePath: rel,
	})
}

// openRoots returns the configured backends, opening local directories for
// the missing ones. Both roots are checked before any file is read.
func (e *Engine) openRoots() (storage.Backend, storage.Backend, error) {
	base := e.cfg.Base
	if base == nil {
		local, err := storage.NewLocal(e.operation.BasePath)
		if err != nil {
			return nil, nil, err
		}
		base = local
	}

	target := e.cfg.Target
	if target == nil {
		local, err := storage.NewLocal(e.operation.TargetPath)
		if err != nil {
			base.Close()
			return nil, nil, err
		}
		target = local
	}

	return base, target, nil
}

func (e *Engine) fail(ctx context.Context, logger logging.Logger, err error) error {
	logger.Error(ctx, "Verification failed", err, nil)
	e.formatter.Error(err)
	return err
}
