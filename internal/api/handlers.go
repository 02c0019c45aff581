package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/amillerrr/chunkflow/internal/auth"
	"github.com/amillerrr/chunkflow/internal/config"
	"github.com/amillerrr/chunkflow/internal/metrics"
	"github.com/amillerrr/chunkflow/internal/storage"
	"github.com/amillerrr/chunkflow/pkg/models"
)

var tracer = otel.Tracer("chunkflow-api")

// Configuration constants
const (
	PresignedURLExpiration = 10 * time.Minute
	MaxFilenameLength      = 255
	MaxPartsPerSession     = 10000
	MaxRequestBodySize     = 1 << 20 // 1 MB
)

// Allowed media extensions and content types
var (
	AllowedExtensions = map[string]models.MediaKind{
		".jpg":  models.MediaPhoto,
		".jpeg": models.MediaPhoto,
		".png":  models.MediaPhoto,
		".webp": models.MediaPhoto,
		".heic": models.MediaPhoto,
		".mp4":  models.MediaVideo,
		".mov":  models.MediaVideo,
		".avi":  models.MediaVideo,
		".mkv":  models.MediaVideo,
		".webm": models.MediaVideo,
	}

	AllowedContentTypes = map[string]bool{
		"image/jpeg":       true,
		"image/png":        true,
		"image/webp":       true,
		"image/heic":       true,
		"video/mp4":        true,
		"video/quicktime":  true,
		"video/x-msvideo":  true,
		"video/x-matroska": true,
		"video/webm":       true,
	}
)

// Handlers contains all HTTP handlers for the API.
type Handlers struct {
	cfg        *config.Config
	log        *slog.Logger
	s3Client   *storage.S3Client
	sqsClient  *sqs.Client
	uploadRepo *storage.UploadRepository
	jwtService *auth.JWTService
}

// HandlersConfig holds dependencies for handlers.
type HandlersConfig struct {
	Config     *config.Config
	Logger     *slog.Logger
	S3Client   *storage.S3Client
	SQSClient  *sqs.Client
	UploadRepo *storage.UploadRepository
	JWTService *auth.JWTService
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(cfg *HandlersConfig) *Handlers {
	return &Handlers{
		cfg:        cfg.Config,
		log:        cfg.Logger,
		s3Client:   cfg.S3Client,
		sqsClient:  cfg.SQSClient,
		uploadRepo: cfg.UploadRepo,
		jwtService: cfg.JWTService,
	}
}

// writeJSON writes a JSON response.
func (h *Handlers) writeJSON(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.ErrorContext(ctx, "Failed to encode JSON response", "error", err)
	}
}

// writeError writes an error response.
func (h *Handlers) writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	h.writeJSON(ctx, w, status, map[string]string{"error": message})
}

// limitRequestBody wraps the request body with a size limit.
func (h *Handlers) limitRequestBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
}

// LoginHandler handles user authentication and returns a JWT token.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := auth.GetClientIP(r)

	username, password, ok := r.BasicAuth()
	if !ok {
		h.writeError(ctx, w, http.StatusUnauthorized, "Missing credentials")
		return
	}

	expectedUsername, expectedPassword, err := h.cfg.GetAPICredentials()
	if err != nil {
		h.log.ErrorContext(ctx, "Failed to get API credentials", "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Server configuration error")
		return
	}

	if username != expectedUsername || password != expectedPassword {
		h.log.WarnContext(ctx, "Failed login attempt", "username", username, "ip", clientIP)
		h.writeError(ctx, w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.jwtService.GenerateToken(username)
	if err != nil {
		h.log.ErrorContext(ctx, "Failed to generate token", "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	h.log.InfoContext(ctx, "Successful login", "username", username, "ip", clientIP)
	h.writeJSON(ctx, w, http.StatusOK, map[string]string{"token": token})
}

// InitUploadHandler issues presigned upload URLs. Chunked requests open a
// multipart session and return one URL per part; simple and thumbnail
// requests return a single PUT URL.
func (h *Handlers) InitUploadHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		h.writeError(ctx, w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	requestID := uuid.New().String()
	ctx, span := tracer.Start(ctx, "init-upload-handler",
		trace.WithAttributes(
			attribute.String("handler", "init-upload"),
			attribute.String("request.id", requestID),
		))
	defer span.End()

	h.limitRequestBody(w, r)

	var req models.InitUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.RecordError(err)
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.writeError(ctx, w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		h.writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validateInitRequest(&req); err != nil {
		span.RecordError(err)
		h.writeError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	uploadID := uuid.New().String()
	s3Key := objectKey(uploadID, &req)

	span.SetAttributes(
		attribute.String("upload.id", uploadID),
		attribute.String("upload.key", s3Key),
		attribute.String("upload.type", string(req.UploadType)),
	)

	switch req.UploadType {
	case models.UploadTypeChunked:
		h.initChunkedUpload(ctx, w, &req, uploadID, s3Key, requestID)
	default:
		h.initSimpleUpload(ctx, w, &req, uploadID, s3Key, requestID)
	}
}

// initChunkedUpload opens a multipart session and presigns per-part URLs.
func (h *Handlers) initChunkedUpload(ctx context.Context, w http.ResponseWriter, req *models.InitUploadRequest, uploadID, s3Key, requestID string) {
	span := trace.SpanFromContext(ctx)

	sessionID, err := h.s3Client.CreateMultipart(ctx, h.cfg.AWS.UploadBucket, s3Key, req.ContentType)
	if err != nil {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "Failed to create multipart session",
			"error", err,
			"uploadId", uploadID,
			"requestId", requestID,
		)
		h.writeError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	urls, err := h.s3Client.PresignPartURLs(ctx, h.cfg.AWS.UploadBucket, s3Key, sessionID, req.TotalParts, PresignedURLExpiration)
	if err != nil {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "Failed to presign part URLs",
			"error", err,
			"uploadId", uploadID,
			"requestId", requestID,
		)
		h.writeError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if h.uploadRepo != nil {
		kind := mediaKindFor(req)
		if _, err := h.uploadRepo.CreateUpload(ctx, uploadID, req.Filename, s3Key, kind, req.TotalParts); err != nil {
			h.log.WarnContext(ctx, "Failed to create upload record in DynamoDB",
				"uploadId", uploadID,
				"error", err,
				"requestId", requestID,
			)
		}
	}

	metrics.SessionsInitiated.WithLabelValues(string(models.UploadTypeChunked)).Inc()
	h.log.InfoContext(ctx, "Chunked upload session initiated",
		"uploadId", uploadID,
		"key", s3Key,
		"totalParts", req.TotalParts,
		"requestId", requestID,
	)

	h.writeJSON(ctx, w, http.StatusOK, models.InitChunkedResponse{
		URLs:      urls,
		Key:       s3Key,
		SessionID: sessionID,
		RequestID: requestID,
	})
}

// initSimpleUpload presigns a single PUT URL for simple and thumbnail uploads.
func (h *Handlers) initSimpleUpload(ctx context.Context, w http.ResponseWriter, req *models.InitUploadRequest, uploadID, s3Key, requestID string) {
	span := trace.SpanFromContext(ctx)

	contentType := req.ContentType
	if req.UploadType == models.UploadTypeThumbnail {
		contentType = "image/jpeg"
	}

	presignedURL, err := h.s3Client.PresignPut(ctx, h.cfg.AWS.UploadBucket, s3Key, contentType, PresignedURLExpiration)
	if err != nil {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "Failed to generate presigned URL",
			"error", err,
			"uploadId", uploadID,
			"requestId", requestID,
		)
		h.writeError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if req.UploadType == models.UploadTypeSimple && h.uploadRepo != nil {
		kind := mediaKindFor(req)
		if _, err := h.uploadRepo.CreateUpload(ctx, uploadID, req.Filename, s3Key, kind, 1); err != nil {
			h.log.WarnContext(ctx, "Failed to create upload record in DynamoDB",
				"uploadId", uploadID,
				"error", err,
				"requestId", requestID,
			)
		}
	}

	metrics.SessionsInitiated.WithLabelValues(string(req.UploadType)).Inc()
	h.log.InfoContext(ctx, "Presigned upload URL issued",
		"uploadId", uploadID,
		"key", s3Key,
		"type", req.UploadType,
		"requestId", requestID,
	)

	h.writeJSON(ctx, w, http.StatusOK, models.InitSimpleResponse{
		URL:       presignedURL,
		Key:       s3Key,
		RequestID: requestID,
	})
}

// CompleteUploadHandler finalizes a chunked session, records the upload in
// DynamoDB, and queues a completion notification.
func (h *Handlers) CompleteUploadHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		h.writeError(ctx, w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	requestID := uuid.New().String()
	ctx, span := tracer.Start(ctx, "complete-upload-handler",
		trace.WithAttributes(
			attribute.String("handler", "complete-upload"),
			attribute.String("request.id", requestID),
		))
	defer span.End()

	h.limitRequestBody(w, r)

	var req models.CompleteUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.RecordError(err)
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.writeError(ctx, w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		h.writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Key == "" {
		h.writeError(ctx, w, http.StatusBadRequest, "key is required")
		return
	}
	if req.SessionID == "" {
		h.writeError(ctx, w, http.StatusBadRequest, "sessionId is required")
		return
	}
	if len(req.Parts) == 0 {
		h.writeError(ctx, w, http.StatusBadRequest, "parts is required")
		return
	}

	if err := validateObjectKey(req.Key); err != nil {
		span.RecordError(err)
		h.log.WarnContext(ctx, "Invalid object key",
			"key", req.Key,
			"requestId", requestID,
			"error", err,
		)
		h.writeError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	uploadID := uploadIDFromKey(req.Key)
	span.SetAttributes(
		attribute.String("upload.id", uploadID),
		attribute.String("upload.key", req.Key),
		attribute.Int("upload.parts", len(req.Parts)),
	)

	if err := h.s3Client.CompleteMultipart(ctx, h.cfg.AWS.UploadBucket, req.Key, req.SessionID, req.Parts); err != nil {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "Failed to complete multipart session",
			"error", err,
			"uploadId", uploadID,
			"requestId", requestID,
		)
		if h.uploadRepo != nil {
			if ferr := h.uploadRepo.FailUpload(ctx, uploadID, err.Error()); ferr != nil {
				h.log.WarnContext(ctx, "Failed to mark upload failed in DynamoDB",
					"uploadId", uploadID,
					"error", ferr,
					"requestId", requestID,
				)
			}
		}
		h.writeError(ctx, w, http.StatusBadGateway, "Failed to complete upload session")
		return
	}

	// Fetch the final object size for the metadata record
	var fileSizeBytes int64
	headResult, err := h.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(h.cfg.AWS.UploadBucket),
		Key:    aws.String(req.Key),
	})
	if err != nil {
		h.log.WarnContext(ctx, "Failed to head completed object",
			"key", req.Key,
			"requestId", requestID,
			"error", err,
		)
	} else if headResult.ContentLength != nil {
		fileSizeBytes = *headResult.ContentLength
		span.SetAttributes(attribute.Int64("upload.size_bytes", fileSizeBytes))
	}

	if h.uploadRepo != nil {
		if err := h.uploadRepo.CompleteUpload(ctx, uploadID, fileSizeBytes); err != nil {
			h.log.WarnContext(ctx, "Failed to mark upload completed in DynamoDB",
				"uploadId", uploadID,
				"error", err,
				"requestId", requestID,
			)
		}
	}

	// Queue completion notification
	notification := models.UploadNotification{
		UploadID: uploadID,
		S3Key:    req.Key,
		Bucket:   h.cfg.AWS.UploadBucket,
	}

	messageBytes, err := json.Marshal(notification)
	if err != nil {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "Failed to marshal notification",
			"error", err,
			"uploadId", uploadID,
			"requestId", requestID,
		)
		h.writeError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if h.sqsClient != nil && h.cfg.AWS.SQSQueueURL != "" {
		_, err = h.sqsClient.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(h.cfg.AWS.SQSQueueURL),
			MessageBody: aws.String(string(messageBytes)),
		})
		if err != nil {
			span.RecordError(err)
			h.log.ErrorContext(ctx, "Failed to queue completion notification",
				"error", err,
				"uploadId", uploadID,
				"requestId", requestID,
			)
			h.writeError(ctx, w, http.StatusInternalServerError, "Failed to queue notification")
			return
		}
	}

	metrics.SessionsCompleted.Inc()
	h.log.InfoContext(ctx, "Upload session completed",
		"uploadId", uploadID,
		"key", req.Key,
		"parts", len(req.Parts),
		"requestId", requestID,
	)

	h.writeJSON(ctx, w, http.StatusOK, models.CompleteUploadResponse{
		Key:       req.Key,
		Status:    string(models.StatusCompleted),
		RequestID: requestID,
	})
}

// LatestUploadResponse is the response payload for the latest upload endpoint.
type LatestUploadResponse struct {
	UploadID    string `json:"uploadId"`
	Key         string `json:"key"`
	Filename    string `json:"filename"`
	CompletedAt string `json:"completedAt"`
}

// LatestUploadHandler returns the most recently completed upload.
func (h *Handlers) LatestUploadHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		h.writeError(ctx, w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, span := tracer.Start(ctx, "get-latest-upload")
	defer span.End()

	if h.uploadRepo == nil {
		h.writeError(ctx, w, http.StatusNotFound, "No completed uploads found")
		return
	}

	upload, err := h.uploadRepo.GetLatestUpload(ctx)
	if err != nil {
		if errors.Is(err, models.ErrUploadNotFound) {
			h.writeError(ctx, w, http.StatusNotFound, "No completed uploads found")
			return
		}
		span.RecordError(err)
		h.log.ErrorContext(ctx, "Failed to get latest upload from DynamoDB", "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to retrieve upload")
		return
	}

	span.SetAttributes(attribute.String("upload.id", upload.UploadID))

	h.writeJSON(ctx, w, http.StatusOK, LatestUploadResponse{
		UploadID:    upload.UploadID,
		Key:         upload.S3Key,
		Filename:    upload.Filename,
		CompletedAt: upload.CompletedAt,
	})
}

// Listing page sizes
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// UploadSummary is one entry in the upload listing.
type UploadSummary struct {
	UploadID    string `json:"uploadId"`
	Key         string `json:"key"`
	Filename    string `json:"filename"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt"`
	CompletedAt string `json:"completedAt,omitempty"`
}

// ListUploadsResponse pages through uploads newest first.
type ListUploadsResponse struct {
	Uploads    []UploadSummary `json:"uploads"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

// ListUploadsHandler returns uploads in reverse chronological order with
// cursor pagination.
func (h *Handlers) ListUploadsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		h.writeError(ctx, w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, span := tracer.Start(ctx, "list-uploads")
	defer span.End()

	limit := int32(DefaultListLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > MaxListLimit {
			h.writeError(ctx, w, http.StatusBadRequest,
				fmt.Sprintf("limit must be between 1 and %d", MaxListLimit))
			return
		}
		limit = int32(parsed)
	}

	startKey, err := storage.DecodeListCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "Invalid cursor")
		return
	}

	if h.uploadRepo == nil {
		h.writeJSON(ctx, w, http.StatusOK, ListUploadsResponse{Uploads: []UploadSummary{}})
		return
	}

	uploads, lastKey, err := h.uploadRepo.ListUploads(ctx, limit, startKey)
	if err != nil {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "Failed to list uploads from DynamoDB", "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to list uploads")
		return
	}

	resp := ListUploadsResponse{Uploads: make([]UploadSummary, 0, len(uploads))}
	for _, u := range uploads {
		resp.Uploads = append(resp.Uploads, UploadSummary{
			UploadID:    u.UploadID,
			Key:         u.S3Key,
			Filename:    u.Filename,
			Status:      string(u.Status),
			CreatedAt:   u.CreatedAt,
			CompletedAt: u.CompletedAt,
		})
	}

	cursor, err := storage.EncodeListCursor(lastKey)
	if err != nil {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "Failed to encode list cursor", "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to list uploads")
		return
	}
	resp.NextCursor = cursor

	span.SetAttributes(attribute.Int("uploads.count", len(resp.Uploads)))
	h.writeJSON(ctx, w, http.StatusOK, resp)
}

// Key layout: uploads/<uploadID><ext> for media, thumbnails/<uploadID>.jpg
// for thumbnails.

func objectKey(uploadID string, req *models.InitUploadRequest) string {
	if req.UploadType == models.UploadTypeThumbnail {
		return fmt.Sprintf("thumbnails/%s.jpg", uploadID)
	}
	ext := strings.ToLower(extensionFor(req))
	return fmt.Sprintf("uploads/%s%s", uploadID, ext)
}

func extensionFor(req *models.InitUploadRequest) string {
	if req.Extension != "" {
		if strings.HasPrefix(req.Extension, ".") {
			return req.Extension
		}
		return "." + req.Extension
	}
	return filepath.Ext(req.Filename)
}

// uploadIDFromKey recovers the upload id embedded in an object key.
func uploadIDFromKey(key string) string {
	base := filepath.Base(key)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func mediaKindFor(req *models.InitUploadRequest) models.MediaKind {
	if req.MediaKind != "" {
		return req.MediaKind
	}
	ext := strings.ToLower(extensionFor(req))
	if kind, ok := AllowedExtensions[ext]; ok {
		return kind
	}
	return models.MediaPhoto
}

// Validation functions

func validateInitRequest(req *models.InitUploadRequest) error {
	switch req.UploadType {
	case models.UploadTypeChunked, models.UploadTypeSimple, models.UploadTypeThumbnail:
	default:
		return fmt.Errorf("%w: %q", models.ErrInvalidUploadType, req.UploadType)
	}

	if req.UploadType == models.UploadTypeChunked {
		if req.TotalParts < 1 || req.TotalParts > MaxPartsPerSession {
			return fmt.Errorf("%w: totalParts must be between 1 and %d", models.ErrInvalidPartCount, MaxPartsPerSession)
		}
	}

	// Thumbnails are backend-generated JPEGs; skip media validation
	if req.UploadType == models.UploadTypeThumbnail {
		return nil
	}

	if err := validateFilename(req.Filename, extensionFor(req)); err != nil {
		return err
	}
	return validateContentType(req.ContentType)
}

func validateFilename(filename, ext string) error {
	if filename == "" {
		return errors.New("filename is required")
	}
	if len(filename) > MaxFilenameLength {
		return models.ErrFilenameTooLong
	}

	if _, ok := AllowedExtensions[strings.ToLower(ext)]; !ok {
		return fmt.Errorf("%w: allowed extensions are jpg, jpeg, png, webp, heic, mp4, mov, avi, mkv, webm", models.ErrInvalidFileType)
	}

	return nil
}

func validateContentType(contentType string) error {
	if contentType == "" {
		return errors.New("content type is required")
	}
	if !AllowedContentTypes[contentType] {
		return fmt.Errorf("%w: %s", models.ErrInvalidContentType, contentType)
	}
	return nil
}

func validateObjectKey(key string) error {
	decodedKey, err := url.PathUnescape(key)
	if err != nil {
		return fmt.Errorf("%w: invalid URL encoding", models.ErrInvalidKeyFormat)
	}

	if strings.Contains(decodedKey, "..") || strings.Contains(key, "..") {
		return fmt.Errorf("%w: path traversal not allowed", models.ErrInvalidKeyFormat)
	}

	if !strings.HasPrefix(key, "uploads/") {
		return fmt.Errorf("%w: key must start with uploads/", models.ErrInvalidKeyFormat)
	}

	if _, ok := AllowedExtensions[strings.ToLower(filepath.Ext(key))]; !ok {
		return fmt.Errorf("%w: invalid extension in key", models.ErrInvalidKeyFormat)
	}

	return nil
}
