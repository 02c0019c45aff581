package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine metrics
var (
	// ChunksUploaded counts uploaded chunks by status.
	ChunksUploaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chunkflow",
			Name:      "chunks_uploaded_total",
			Help:      "Total number of chunk uploads",
		},
		[]string{"status"},
	)

	// ChunkUploadDuration tracks the time taken to upload one chunk.
	ChunkUploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "chunkflow",
			Name:      "chunk_upload_duration_seconds",
			Help:      "Time taken to upload a single chunk",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)

	// FilesUploaded counts completed file pipelines by status.
	FilesUploaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chunkflow",
			Name:      "files_uploaded_total",
			Help:      "Total number of file uploads",
		},
		[]string{"status"},
	)

	// FileUploadDuration tracks the time taken by one file's pipeline.
	FileUploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "chunkflow",
			Name:      "file_upload_duration_seconds",
			Help:      "Time taken to upload a single file",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	// BatchDuration tracks the time taken by whole upload batches.
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "chunkflow",
			Name:      "batch_upload_duration_seconds",
			Help:      "Time taken to upload a batch of files",
			Buckets:   []float64{1, 10, 30, 60, 300, 600, 1800},
		},
	)
)

// API metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chunkflow",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request duration.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chunkflow",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// AuthFailures counts authentication failures by reason.
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chunkflow",
			Subsystem: "api",
			Name:      "auth_failures_total",
			Help:      "Total number of authentication failures",
		},
		[]string{"reason"},
	)

	// SessionsInitiated counts issued upload sessions by upload type.
	SessionsInitiated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chunkflow",
			Subsystem: "api",
			Name:      "sessions_initiated_total",
			Help:      "Total number of upload sessions initiated",
		},
		[]string{"type"},
	)

	// SessionsCompleted counts finalized chunked sessions.
	SessionsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chunkflow",
			Subsystem: "api",
			Name:      "sessions_completed_total",
			Help:      "Total number of upload sessions completed",
		},
	)
)
