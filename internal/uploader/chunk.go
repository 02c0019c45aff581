package uploader

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/amillerrr/chunkflow/internal/metrics"
	"github.com/amillerrr/chunkflow/pkg/models"
)

const chunkContentType = "application/octet-stream"

// integrityTokenHeader is the response header carrying the per-part
// integrity token. Lookup is case-insensitive and surrounding quotes are
// stripped.
const integrityTokenHeader = "ETag"

// ChunkOutcome is the result of one ChunkTask: an integrity token on
// success or the failure reason otherwise. Exactly one outcome exists per
// task; a failed chunk never aborts its siblings.
type ChunkOutcome struct {
	PartNumber int32
	ETag       string
	Err        error
}

// Failed reports whether the chunk upload failed.
func (o ChunkOutcome) Failed() bool {
	return o.Err != nil
}

// chunkUploader uploads the byte ranges of a single file through that
// file's session URLs, tracking uploaded-part count for progress.
type chunkUploader struct {
	file       RangeFile
	session    *UploadSession
	transport  Transport
	fileIndex  int
	totalParts int
	partSize   int64
	totalBytes int64
	onProgress ProgressFunc
	log        *slog.Logger

	// mu guards uploaded and orders snapshot delivery; a later snapshot
	// must never carry a lower percent than an earlier one.
	mu       sync.Mutex
	uploaded int
}

// uploadChunk uploads one byte range. All failures are returned as data
// so sibling chunks keep uploading.
func (u *chunkUploader) uploadChunk(ctx context.Context, task ChunkTask) ChunkOutcome {
	start := time.Now()
	outcome := u.doUpload(ctx, task)
	metrics.ChunkUploadDuration.Observe(time.Since(start).Seconds())

	if outcome.Failed() {
		metrics.ChunksUploaded.WithLabelValues("failed").Inc()
		u.log.WarnContext(ctx, "Chunk upload failed",
			"key", u.session.Key,
			"partNumber", task.PartNumber,
			"error", outcome.Err,
		)
		u.emitProgress(models.StatusUploading)
		return outcome
	}

	metrics.ChunksUploaded.WithLabelValues("success").Inc()

	u.mu.Lock()
	u.uploaded++
	u.emitLocked(models.StatusUploading)
	u.mu.Unlock()

	return outcome
}

func (u *chunkUploader) doUpload(ctx context.Context, task ChunkTask) ChunkOutcome {
	fail := func(err error) ChunkOutcome {
		return ChunkOutcome{
			PartNumber: task.PartNumber,
			Err:        fmt.Errorf("%w: part %d: %v", models.ErrChunkUpload, task.PartNumber, err),
		}
	}

	body, err := u.file.ReadRange(task.Offset, task.Length)
	if err != nil {
		return fail(err)
	}

	url := u.session.PartURLs[task.PartNumber-1]
	resp, err := u.transport.Put(ctx, url, body, chunkContentType)
	if err != nil {
		return fail(err)
	}
	if resp.StatusCode != 200 {
		return fail(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	etag := strings.Trim(resp.Header.Get(integrityTokenHeader), `"`)
	if etag == "" {
		return fail(fmt.Errorf("response missing %s header", integrityTokenHeader))
	}

	return ChunkOutcome{PartNumber: task.PartNumber, ETag: etag}
}

// emitProgress reports the current snapshot.
func (u *chunkUploader) emitProgress(status models.UploadStatus) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.emitLocked(status)
}

// emitLocked builds and delivers a snapshot while holding mu. Uploaded
// bytes are estimated as uploadedParts * partSize, which slightly
// overstates a shorter final chunk.
func (u *chunkUploader) emitLocked(status models.UploadStatus) {
	if u.onProgress == nil {
		return
	}

	u.onProgress(u.fileIndex, models.ProgressSnapshot{
		TotalParts:    u.totalParts,
		UploadedParts: u.uploaded,
		Percent:       ceilPercent(u.uploaded, u.totalParts),
		UploadedBytes: int64(u.uploaded) * u.partSize,
		TotalBytes:    u.totalBytes,
		Status:        status,
	})
}

// ceilPercent computes ceil(done/total * 100), capped at 100.
func ceilPercent(done, total int) int {
	if total <= 0 {
		return 100
	}
	pct := (done*100 + total - 1) / total
	if pct > 100 {
		pct = 100
	}
	return pct
}
