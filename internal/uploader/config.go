// Package uploader implements the upload orchestration engine: it splits
// large files into independently-uploaded byte ranges, pushes them through
// short-lived presigned URLs under bounded concurrency, and aggregates
// per-file and batch results. Small files take a single-shot PUT instead.
package uploader

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/amillerrr/chunkflow/pkg/models"
)

// Default tunables. Callers override them through Config; the engine
// reads only the Config value it was constructed with.
const (
	DefaultChunkSize        = 5 << 20 // 5 MiB per part
	DefaultChunkThreshold   = 5 << 20 // files at or above go chunked
	DefaultFileConcurrency  = 3
	DefaultChunkConcurrency = 6
	DefaultMaxFileSizeMB    = 5120
)

// Config holds the engine's immutable configuration: tunables, provider
// collaborators, and progress callbacks.
type Config struct {
	// ChunkSize is the byte length of each part; the final part of a
	// file may be shorter.
	ChunkSize int64

	// ChunkThreshold routes files: size >= threshold uploads chunked,
	// smaller files upload single-shot.
	ChunkThreshold int64

	// FileConcurrency bounds how many per-file pipelines run at once.
	FileConcurrency int

	// ChunkConcurrency bounds how many chunk PUTs run at once within a
	// single file's pipeline.
	ChunkConcurrency int

	// MaxFileSizeMB rejects oversized files before any network call.
	MaxFileSizeMB int64

	// Provider issues presigned URLs; Completer finalizes chunked
	// sessions. Both are required.
	Provider  SignedURLProvider
	Completer Completer

	// Reader and Transport default to the local filesystem and net/http.
	Reader    RangeReader
	Transport Transport

	// Prober and Thumbnailer are optional best-effort collaborators.
	Prober      DimensionProber
	Thumbnailer ThumbnailGenerator

	// OnProgress and OnOverallProgress are optional callbacks.
	OnProgress        ProgressFunc
	OnOverallProgress OverallProgressFunc

	Logger *slog.Logger
}

// Engine drives batches of file uploads against a Config.
type Engine struct {
	cfg Config
}

// New validates the configuration and returns an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Provider == nil {
		return nil, errors.New("uploader: signed URL provider is required")
	}
	if cfg.Completer == nil {
		return nil, errors.New("uploader: completer is required")
	}

	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkThreshold <= 0 {
		cfg.ChunkThreshold = DefaultChunkThreshold
	}
	if cfg.FileConcurrency == 0 {
		cfg.FileConcurrency = DefaultFileConcurrency
	}
	if cfg.ChunkConcurrency == 0 {
		cfg.ChunkConcurrency = DefaultChunkConcurrency
	}
	if cfg.FileConcurrency < 0 {
		return nil, fmt.Errorf("%w: file concurrency %d", models.ErrInvalidConcurrency, cfg.FileConcurrency)
	}
	if cfg.ChunkConcurrency < 0 {
		return nil, fmt.Errorf("%w: chunk concurrency %d", models.ErrInvalidConcurrency, cfg.ChunkConcurrency)
	}
	if cfg.MaxFileSizeMB <= 0 {
		cfg.MaxFileSizeMB = DefaultMaxFileSizeMB
	}
	if cfg.Reader == nil {
		cfg.Reader = osRangeReader{}
	}
	if cfg.Transport == nil {
		cfg.Transport = newHTTPTransport()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Engine{cfg: cfg}, nil
}
