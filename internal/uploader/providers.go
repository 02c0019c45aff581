package uploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/amillerrr/chunkflow/pkg/models"
)

// FileDescriptor describes one local file to upload. Created by the
// caller; treated as immutable by the engine.
type FileDescriptor struct {
	Index         int
	Path          string
	Size          int64
	Kind          models.MediaKind
	ThumbnailPath string
	ContentType   string
	Extension     string
}

// UploadSession identifies a chunked upload session on the storage
// backend. Its key and session id are constant across all chunks; the
// engine never closes a session on failure.
type UploadSession struct {
	Key       string
	SessionID string
	PartURLs  []string
}

// UploadTarget is a single presigned PUT destination for a simple or
// thumbnail upload.
type UploadTarget struct {
	URL string
	Key string
}

// ChunkedURLRequest asks the signed-URL provider for a chunked session.
type ChunkedURLRequest struct {
	Filename    string
	ContentType string
	Extension   string
	Kind        models.MediaKind
	TotalParts  int
}

// SimpleURLRequest asks for a single-shot upload URL.
type SimpleURLRequest struct {
	Filename    string
	ContentType string
	Extension   string
	Kind        models.MediaKind
}

// SignedURLProvider issues short-lived presigned upload URLs. Each
// request kind returns its own typed response; the engine never probes
// response shapes.
type SignedURLProvider interface {
	ChunkedUploadURLs(ctx context.Context, req ChunkedURLRequest) (*UploadSession, error)
	SimpleUploadURL(ctx context.Context, req SimpleURLRequest) (*UploadTarget, error)
	ThumbnailUploadURL(ctx context.Context, req SimpleURLRequest) (*UploadTarget, error)
}

// Completer finalizes a chunked session with the integrity tokens
// collected from each part.
type Completer interface {
	CompleteUpload(ctx context.Context, key, sessionID string, parts []models.CompletedPart) error
}

// RangeFile reads byte ranges from an open file.
type RangeFile interface {
	ReadRange(offset, length int64) ([]byte, error)
	Size() (int64, error)
	Close() error
}

// RangeReader opens local files for byte-range reads.
type RangeReader interface {
	Open(path string) (RangeFile, error)
}

// PutResult carries the transport response for one PUT. Header lookups
// are case-insensitive.
type PutResult struct {
	StatusCode int
	Header     http.Header
}

// Transport performs a single HTTP PUT of a byte payload to a presigned
// URL. Any timeout policy lives here; the engine imposes none.
type Transport interface {
	Put(ctx context.Context, url string, body []byte, contentType string) (*PutResult, error)
}

// DimensionProber reports pixel dimensions for an image or video file.
// Always best-effort; the engine swallows its errors.
type DimensionProber interface {
	Probe(ctx context.Context, path string) (models.Dimensions, error)
}

// ThumbnailOptions tune auto-generated video thumbnails.
type ThumbnailOptions struct {
	Timestamp time.Duration
	Quality   int
}

// ThumbnailGenerator produces a thumbnail image for a video. A generator
// that is not installed reports ok=false rather than an error.
type ThumbnailGenerator interface {
	Generate(ctx context.Context, videoPath string, opts ThumbnailOptions) (path string, ok bool, err error)
}

// ProgressFunc receives a snapshot after every chunk outcome and at every
// terminal transition.
type ProgressFunc func(fileIndex int, snap models.ProgressSnapshot)

// OverallProgressFunc receives the batch aggregate once, after all
// per-file results are known.
type OverallProgressFunc func(percent int)

// osRangeReader is the default RangeReader backed by the local
// filesystem.
type osRangeReader struct{}

func (osRangeReader) Open(path string) (RangeFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &osRangeFile{f: f}, nil
}

type osRangeFile struct {
	f *os.File
}

func (r *osRangeFile) ReadRange(offset, length int64) ([]byte, error) {
	buf := make([]byte, length)
	n, err := r.f.ReadAt(buf, offset)
	if int64(n) < length {
		// A short read means the file is smaller than the descriptor
		// claimed; uploading a padded buffer would corrupt the object.
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("failed to read range [%d,%d): %w", offset, offset+length, err)
	}
	return buf, nil
}

func (r *osRangeFile) Size() (int64, error) {
	info, err := r.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", r.f.Name(), err)
	}
	return info.Size(), nil
}

func (r *osRangeFile) Close() error {
	return r.f.Close()
}

// httpTransport is the default Transport backed by net/http.
type httpTransport struct {
	client *http.Client
}

func newHTTPTransport() *httpTransport {
	return &httpTransport{client: http.DefaultClient}
}

func (t *httpTransport) Put(ctx context.Context, url string, body []byte, contentType string) (*PutResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build PUT request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(body))

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("PUT %s: %w", url, err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	return &PutResult{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
	}, nil
}
