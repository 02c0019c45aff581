package models

// UploadStatus represents the lifecycle status of an upload.
type UploadStatus string

const (
	StatusPending   UploadStatus = "pending"
	StatusUploading UploadStatus = "uploading"
	StatusCompleted UploadStatus = "completed"
	StatusFailed    UploadStatus = "failed"
)

// IsValid returns true if the status is a valid UploadStatus.
func (s UploadStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusUploading, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// MediaKind classifies an uploaded file.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// UploadType selects which kind of signed URL the backend should issue.
type UploadType string

const (
	UploadTypeChunked   UploadType = "chunked"
	UploadTypeSimple    UploadType = "simple"
	UploadTypeThumbnail UploadType = "thumbnail"
)

// CompletedPart pairs the integrity token returned by the storage backend
// with the 1-indexed part number it belongs to.
type CompletedPart struct {
	ETag       string `json:"etag"`
	PartNumber int32  `json:"partNumber"`
}

// Dimensions holds pixel dimensions probed from an image or video.
type Dimensions struct {
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// ProgressSnapshot reports per-file upload progress. Percent is
// monotonically non-decreasing within a file's lifetime.
type ProgressSnapshot struct {
	TotalParts    int          `json:"totalParts"`
	UploadedParts int          `json:"uploadedParts"`
	Percent       int          `json:"percent"`
	UploadedBytes int64        `json:"uploadedBytes"`
	TotalBytes    int64        `json:"totalBytes"`
	Status        UploadStatus `json:"status"`
}

// FileResult is the terminal outcome of one file's upload pipeline.
// Exactly one FileResult exists per input file; business failures are
// carried here, never raised as errors.
type FileResult struct {
	FileIndex    int          `json:"fileIndex"`
	Kind         MediaKind    `json:"mediaKind"`
	Key          string       `json:"key,omitempty"`
	Width        int          `json:"width,omitempty"`
	Height       int          `json:"height,omitempty"`
	ThumbnailKey string       `json:"thumbnailKey,omitempty"`
	Status       UploadStatus `json:"status"`
	Reason       string       `json:"reason,omitempty"`
}

// InitUploadRequest is the request payload for upload initialization.
type InitUploadRequest struct {
	UploadType  UploadType `json:"uploadType"`
	Filename    string     `json:"filename"`
	ContentType string     `json:"contentType"`
	Extension   string     `json:"extension,omitempty"`
	MediaKind   MediaKind  `json:"mediaKind,omitempty"`
	TotalParts  int        `json:"totalParts,omitempty"`
}

// InitChunkedResponse is the backend response for a chunked upload session.
// URLs holds one presigned part URL per requested part, in part order.
type InitChunkedResponse struct {
	URLs      []string `json:"urls"`
	Key       string   `json:"key"`
	SessionID string   `json:"sessionId"`
	RequestID string   `json:"requestId,omitempty"`
}

// InitSimpleResponse is the backend response for a simple or thumbnail
// upload: a single presigned PUT URL.
type InitSimpleResponse struct {
	URL       string `json:"url"`
	Key       string `json:"key"`
	RequestID string `json:"requestId,omitempty"`
}

// CompleteUploadRequest finalizes a chunked session.
type CompleteUploadRequest struct {
	Key       string          `json:"key"`
	SessionID string          `json:"sessionId"`
	Parts     []CompletedPart `json:"parts"`
}

// CompleteUploadResponse acknowledges session completion.
type CompleteUploadResponse struct {
	Key       string `json:"key"`
	Status    string `json:"status"`
	RequestID string `json:"requestId,omitempty"`
}

// UploadMetadata is the backend's DynamoDB record for one upload.
type UploadMetadata struct {
	// Keys
	PK     string `dynamodbav:"pk"`
	SK     string `dynamodbav:"sk"`
	GSI1PK string `dynamodbav:"gsi1pk,omitempty"`
	GSI1SK string `dynamodbav:"gsi1sk,omitempty"`

	// Attributes
	UploadID      string       `dynamodbav:"upload_id" json:"uploadId"`
	Filename      string       `dynamodbav:"filename" json:"filename"`
	Status        UploadStatus `dynamodbav:"status" json:"status"`
	S3Key         string       `dynamodbav:"s3_key" json:"s3Key"`
	MediaKind     MediaKind    `dynamodbav:"media_kind,omitempty" json:"mediaKind,omitempty"`
	TotalParts    int          `dynamodbav:"total_parts,omitempty" json:"totalParts,omitempty"`
	FileSizeBytes int64        `dynamodbav:"file_size_bytes,omitempty" json:"fileSizeBytes,omitempty"`
	CreatedAt     string       `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt     string       `dynamodbav:"updated_at" json:"updatedAt"`
	CompletedAt   string       `dynamodbav:"completed_at,omitempty" json:"completedAt,omitempty"`
	ErrorMessage  string       `dynamodbav:"error_message,omitempty" json:"errorMessage,omitempty"`
}

// UploadNotification is the SQS message published when a chunked session
// is finalized.
type UploadNotification struct {
	UploadID string `json:"uploadId"`
	S3Key    string `json:"s3Key"`
	Bucket   string `json:"bucket"`
	Filename string `json:"filename"`
}

// Validate checks if the notification has all required fields.
func (n *UploadNotification) Validate() error {
	if n.UploadID == "" {
		return ErrMissingUploadID
	}
	if n.S3Key == "" {
		return ErrMissingS3Key
	}
	if n.Bucket == "" {
		return ErrMissingBucket
	}
	return nil
}
