package models

import "errors"

// Sentinel errors for upload operations.
var (
	// Engine configuration errors
	ErrInvalidConcurrency = errors.New("concurrency bound must be positive")

	// Per-file upload errors
	ErrSizeLimitExceeded = errors.New("file exceeds maximum upload size")
	ErrSignedURL         = errors.New("signed URL request failed")
	ErrChunkUpload       = errors.New("chunk upload failed")
	ErrCompletion        = errors.New("failed to complete upload session")

	// Best-effort steps; never propagated as file-level failures
	ErrThumbnail      = errors.New("thumbnail generation failed")
	ErrDimensionProbe = errors.New("dimension probe failed")

	// Validation errors
	ErrMissingUploadID = errors.New("uploadId is required")
	ErrMissingS3Key    = errors.New("s3Key is required")
	ErrMissingBucket   = errors.New("bucket is required")

	// Storage errors
	ErrUploadNotFound = errors.New("upload not found")
	ErrInvalidStatus  = errors.New("invalid upload status")

	// Validation errors for upload requests
	ErrInvalidFileType    = errors.New("invalid file type")
	ErrFilenameTooLong    = errors.New("filename too long")
	ErrInvalidContentType = errors.New("invalid content type")
	ErrInvalidUploadType  = errors.New("invalid upload type")
	ErrInvalidPartCount   = errors.New("invalid part count")
	ErrInvalidKeyFormat   = errors.New("invalid key format")
)
