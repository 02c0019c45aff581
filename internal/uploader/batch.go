package uploader

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/amillerrr/chunkflow/internal/metrics"
	"github.com/amillerrr/chunkflow/pkg/models"
)

// UploadBatch uploads every file in the list and returns exactly one
// result per input, in input order. Files at or above the chunk threshold
// run the chunked pipeline, smaller files the one-shot pipeline; both
// share the file-level concurrency bound. Individual file failures are
// reported in the results, never as an error; the returned error is
// reserved for configuration and provider contract violations.
func (e *Engine) UploadBatch(ctx context.Context, files []FileDescriptor) ([]models.FileResult, error) {
	ctx, span := tracer.Start(ctx, "upload-batch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.files", len(files)))

	start := time.Now()

	results, err := mapLimit(ctx, files, e.cfg.FileConcurrency,
		func(ctx context.Context, fd FileDescriptor, _ int) (models.FileResult, error) {
			return e.uploadFile(ctx, fd), nil
		})
	if err != nil {
		return nil, err
	}

	// Re-key by file index and emit in input order. A missing index means
	// an internal contract violation; substitute a failed placeholder
	// rather than dropping the slot.
	byIndex := make(map[int]models.FileResult, len(results))
	for _, res := range results {
		byIndex[res.FileIndex] = res
	}

	ordered := make([]models.FileResult, 0, len(files))
	for _, fd := range files {
		res, ok := byIndex[fd.Index]
		if !ok {
			e.cfg.Logger.Error("Missing result for file index", "fileIndex", fd.Index)
			res = models.FileResult{
				FileIndex: fd.Index,
				Kind:      fd.Kind,
				Status:    models.StatusFailed,
				Reason:    "internal error: missing upload result",
			}
		}
		ordered = append(ordered, res)
	}

	e.emitOverallProgress(files, ordered)

	metrics.BatchDuration.Observe(time.Since(start).Seconds())
	return ordered, nil
}

// emitOverallProgress reports the batch aggregate once: uploaded bytes of
// all non-failed files over total requested bytes, rounded up, capped at
// 100.
func (e *Engine) emitOverallProgress(files []FileDescriptor, results []models.FileResult) {
	if e.cfg.OnOverallProgress == nil {
		return
	}

	var totalBytes, uploadedBytes int64
	for i, fd := range files {
		totalBytes += fd.Size
		if results[i].Status != models.StatusFailed {
			uploadedBytes += fd.Size
		}
	}

	percent := 100
	if totalBytes > 0 {
		percent = int((uploadedBytes*100 + totalBytes - 1) / totalBytes)
		if percent > 100 {
			percent = 100
		}
	}
	e.cfg.OnOverallProgress(percent)
}
