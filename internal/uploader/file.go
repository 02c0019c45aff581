package uploader

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/amillerrr/chunkflow/internal/metrics"
	"github.com/amillerrr/chunkflow/pkg/models"
)

var tracer = otel.Tracer("chunkflow-uploader")

// uploadFile drives one file through its pipeline and always returns
// exactly one FileResult; business failures are carried in the result,
// never returned as errors.
func (e *Engine) uploadFile(ctx context.Context, fd FileDescriptor) models.FileResult {
	start := time.Now()

	var result models.FileResult
	if fd.Size >= e.cfg.ChunkThreshold {
		result = e.uploadChunkedFile(ctx, fd)
	} else {
		result = e.uploadSimpleFile(ctx, fd)
	}

	metrics.FileUploadDuration.Observe(time.Since(start).Seconds())
	metrics.FilesUploaded.WithLabelValues(string(result.Status)).Inc()
	return result
}

// uploadChunkedFile runs the chunked pipeline:
// size check -> session request -> chunk fan-out -> thumbnail/dimensions
// -> session completion. A created session is never aborted on failure.
func (e *Engine) uploadChunkedFile(ctx context.Context, fd FileDescriptor) models.FileResult {
	ctx, span := tracer.Start(ctx, "upload-chunked-file")
	defer span.End()
	span.SetAttributes(
		attribute.Int("file.index", fd.Index),
		attribute.Int64("file.size_bytes", fd.Size),
	)

	if err := e.checkSizeLimit(fd.Size); err != nil {
		return e.failResult(fd, err)
	}

	tasks := planChunks(fd.Size, e.cfg.ChunkSize)

	session, err := e.cfg.Provider.ChunkedUploadURLs(ctx, ChunkedURLRequest{
		Filename:    fd.Path,
		ContentType: fd.ContentType,
		Extension:   fd.Extension,
		Kind:        fd.Kind,
		TotalParts:  len(tasks),
	})
	if err != nil {
		return e.failResult(fd, fmt.Errorf("%w: %v", models.ErrSignedURL, err))
	}
	if len(session.PartURLs) < len(tasks) {
		return e.failResult(fd, fmt.Errorf("%w: got %d urls for %d parts",
			models.ErrSignedURL, len(session.PartURLs), len(tasks)))
	}

	file, err := e.cfg.Reader.Open(fd.Path)
	if err != nil {
		return e.failResult(fd, fmt.Errorf("%w: %v", models.ErrChunkUpload, err))
	}
	defer file.Close()

	chunker := &chunkUploader{
		file:       file,
		session:    session,
		transport:  e.cfg.Transport,
		fileIndex:  fd.Index,
		totalParts: len(tasks),
		partSize:   partSizeFor(fd.Size, e.cfg.ChunkSize),
		totalBytes: fd.Size,
		onProgress: e.cfg.OnProgress,
		log:        e.cfg.Logger,
	}

	outcomes, err := mapLimit(ctx, tasks, e.cfg.ChunkConcurrency,
		func(ctx context.Context, task ChunkTask, _ int) (ChunkOutcome, error) {
			return chunker.uploadChunk(ctx, task), nil
		})
	if err != nil {
		// Only a bad concurrency bound lands here; New rejects those.
		return e.failResult(fd, err)
	}

	for _, outcome := range outcomes {
		if outcome.Failed() {
			chunker.emitProgress(models.StatusFailed)
			result := e.failResultQuiet(fd, outcome.Err)
			result.Key = session.Key
			return result
		}
	}

	dims, thumbKey := e.thumbnailAndDimensions(ctx, fd)

	parts := make([]models.CompletedPart, 0, len(outcomes))
	for _, outcome := range outcomes {
		parts = append(parts, models.CompletedPart{
			ETag:       outcome.ETag,
			PartNumber: outcome.PartNumber,
		})
	}
	// Storage backends require ascending part order on completion.
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })

	if err := e.cfg.Completer.CompleteUpload(ctx, session.Key, session.SessionID, parts); err != nil {
		chunker.emitProgress(models.StatusFailed)
		result := e.failResultQuiet(fd, fmt.Errorf("%w: %v", models.ErrCompletion, err))
		result.Key = session.Key
		return result
	}

	e.emitTerminal(fd, len(tasks), models.StatusCompleted)

	return models.FileResult{
		FileIndex:    fd.Index,
		Kind:         fd.Kind,
		Key:          session.Key,
		Width:        dims.Width,
		Height:       dims.Height,
		ThumbnailKey: thumbKey,
		Status:       models.StatusCompleted,
	}
}

// uploadSimpleFile runs the reduced one-shot pipeline for files below the
// chunk threshold: one signed URL, a whole-file PUT, and the same
// best-effort thumbnail step.
func (e *Engine) uploadSimpleFile(ctx context.Context, fd FileDescriptor) models.FileResult {
	ctx, span := tracer.Start(ctx, "upload-simple-file")
	defer span.End()
	span.SetAttributes(
		attribute.Int("file.index", fd.Index),
		attribute.Int64("file.size_bytes", fd.Size),
	)

	target, err := e.cfg.Provider.SimpleUploadURL(ctx, SimpleURLRequest{
		Filename:    fd.Path,
		ContentType: fd.ContentType,
		Extension:   fd.Extension,
		Kind:        fd.Kind,
	})
	if err != nil {
		return e.failResult(fd, fmt.Errorf("%w: %v", models.ErrSignedURL, err))
	}

	body, err := e.readAll(fd.Path, fd.Size)
	if err != nil {
		return e.failResult(fd, fmt.Errorf("%w: %v", models.ErrChunkUpload, err))
	}

	contentType := fd.ContentType
	if contentType == "" {
		contentType = chunkContentType
	}

	resp, err := e.cfg.Transport.Put(ctx, target.URL, body, contentType)
	if err != nil {
		return e.failResult(fd, fmt.Errorf("%w: %v", models.ErrChunkUpload, err))
	}
	if resp.StatusCode != 200 {
		return e.failResult(fd, fmt.Errorf("%w: unexpected status %d", models.ErrChunkUpload, resp.StatusCode))
	}

	dims, thumbKey := e.thumbnailAndDimensions(ctx, fd)

	e.emitTerminal(fd, 1, models.StatusCompleted)

	return models.FileResult{
		FileIndex:    fd.Index,
		Kind:         fd.Kind,
		Key:          target.Key,
		Width:        dims.Width,
		Height:       dims.Height,
		ThumbnailKey: thumbKey,
		Status:       models.StatusCompleted,
	}
}

// checkSizeLimit rejects files whose size, expressed in whole megabytes
// via decimal rounding, exceeds the configured maximum.
func (e *Engine) checkSizeLimit(size int64) error {
	sizeMB := math.Round(float64(size) / float64(1<<20))
	if sizeMB > float64(e.cfg.MaxFileSizeMB) {
		return fmt.Errorf("%w: %.0f MB exceeds limit of %d MB", models.ErrSizeLimitExceeded, sizeMB, e.cfg.MaxFileSizeMB)
	}
	return nil
}

// failResult builds a failed result and emits a terminal snapshot. Used
// before any chunk progress has been reported.
func (e *Engine) failResult(fd FileDescriptor, err error) models.FileResult {
	e.emitTerminal(fd, 0, models.StatusFailed)
	return e.failResultQuiet(fd, err)
}

// failResultQuiet builds a failed result without emitting progress; the
// caller has already reported the terminal snapshot.
func (e *Engine) failResultQuiet(fd FileDescriptor, err error) models.FileResult {
	e.cfg.Logger.Warn("File upload failed",
		"fileIndex", fd.Index,
		"path", fd.Path,
		"error", err,
	)

	return models.FileResult{
		FileIndex: fd.Index,
		Kind:      fd.Kind,
		Status:    models.StatusFailed,
		Reason:    err.Error(),
	}
}

// emitTerminal reports the terminal progress snapshot for a file.
func (e *Engine) emitTerminal(fd FileDescriptor, totalParts int, status models.UploadStatus) {
	if e.cfg.OnProgress == nil {
		return
	}

	snap := models.ProgressSnapshot{
		TotalParts: totalParts,
		TotalBytes: fd.Size,
		Status:     status,
	}
	if status == models.StatusCompleted {
		snap.UploadedParts = totalParts
		snap.Percent = 100
		snap.UploadedBytes = fd.Size
	}
	e.cfg.OnProgress(fd.Index, snap)
}

// readAll reads a whole file through the configured RangeReader.
func (e *Engine) readAll(path string, size int64) ([]byte, error) {
	f, err := e.cfg.Reader.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if size <= 0 {
		if size, err = f.Size(); err != nil {
			return nil, err
		}
	}
	return f.ReadRange(0, size)
}
