package ingest

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/rfranks/ehr-anonymizer/internal/logger"
	"github.com/rfranks/ehr-anonymizer/internal/pipeline"
)

// Result totals one batch run.
type Result struct {
	Processed  int
	Persisted  int
	Degraded   int
	Duplicates int
	NotFound   int
	Failed     int
	Duration   time.Duration
}

// Runner executes pipeline runs for every manifest entry sequentially.
// Duplicates and missing documents are counted, logged, and skipped so a
// re-run of the same manifest converges instead of aborting.
type Runner struct {
	pipeline          *pipeline.Pipeline
	defaultCollection string
	progressEvery     int
	logger            *logger.Logger
}

// NewRunner creates a batch runner. progressEvery controls how often a
// progress line is logged; zero disables it.
func NewRunner(pipe *pipeline.Pipeline, defaultCollection string, progressEvery int, log *logger.Logger) *Runner {
	return &Runner{
		pipeline:          pipe,
		defaultCollection: defaultCollection,
		progressEvery:     progressEvery,
		logger:            log.WithComponent("ingest"),
	}
}

// Run processes entries until done or ctx is cancelled.
func (r *Runner) Run(ctx context.Context, entries []ManifestEntry) (*Result, error) {
	start := time.Now()
	result := &Result{}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		collection := entry.Collection
		if collection == "" {
			collection = r.defaultCollection
		}

		summary, err := r.pipeline.Run(ctx, collection, entry.DocumentID)
		result.Processed++

		switch {
		case err == nil && summary.PersistenceSucceeded():
			result.Persisted++
		case err == nil:
			result.Degraded++
		case isDuplicate(err):
			result.Duplicates++
		case isNotFound(err):
			result.NotFound++
			r.logger.Warn("document missing", zap.String("document_id", entry.DocumentID))
		default:
			result.Failed++
			r.logger.Error("run failed",
				zap.String("document_id", entry.DocumentID),
				zap.Error(err))
		}

		if r.progressEvery > 0 && result.Processed%r.progressEvery == 0 {
			r.logger.Info("progress",
				zap.Int("processed", result.Processed),
				zap.Int("persisted", result.Persisted),
				zap.Int("failed", result.Failed))
		}
	}

	result.Duration = time.Since(start)
	r.logger.Info("batch complete",
		zap.Int("processed", result.Processed),
		zap.Int("persisted", result.Persisted),
		zap.Int("degraded", result.Degraded),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("not_found", result.NotFound),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", result.Duration))

	return result, nil
}

func isDuplicate(err error) bool {
	var duplicate *pipeline.DuplicateRecordError
	return errors.As(err, &duplicate)
}

func isNotFound(err error) bool {
	var notFound *pipeline.NotFoundError
	return errors.As(err, &notFound)
}
