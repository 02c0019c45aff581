package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/amillerrr/chunkflow/pkg/models"
)

// UploadRepository handles upload metadata storage in DynamoDB.
type UploadRepository struct {
	client    *dynamodb.Client
	tableName string
}

// NewUploadRepositoryFromClient creates a new UploadRepository from an existing DynamoDB client.
func NewUploadRepositoryFromClient(client *dynamodb.Client, tableName string) *UploadRepository {
	return &UploadRepository{
		client:    client,
		tableName: tableName,
	}
}

// CreateUpload creates a new upload metadata record in pending state.
func (r *UploadRepository) CreateUpload(ctx context.Context, uploadID, filename, s3Key string, kind models.MediaKind, totalParts int) (*models.UploadMetadata, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	upload := &models.UploadMetadata{
		PK:         fmt.Sprintf("UPLOAD#%s", uploadID),
		SK:         "METADATA",
		GSI1PK:     "ALL_UPLOADS",
		GSI1SK:     fmt.Sprintf("%s#%s", now, uploadID),
		UploadID:   uploadID,
		Filename:   filename,
		Status:     models.StatusPending,
		S3Key:      s3Key,
		MediaKind:  kind,
		TotalParts: totalParts,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	item, err := attributevalue.MarshalMap(upload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal upload: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, fmt.Errorf("upload already exists: %s", uploadID)
		}
		return nil, fmt.Errorf("failed to create upload: %w", err)
	}

	return upload, nil
}

// GetUpload retrieves upload metadata by ID.
func (r *UploadRepository) GetUpload(ctx context.Context, uploadID string) (*models.UploadMetadata, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("UPLOAD#%s", uploadID)},
			"sk": &types.AttributeValueMemberS{Value: "METADATA"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}

	if result.Item == nil {
		return nil, models.ErrUploadNotFound
	}

	var upload models.UploadMetadata
	if err := attributevalue.UnmarshalMap(result.Item, &upload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal upload: %w", err)
	}

	return &upload, nil
}

// CompleteUpload marks an upload as completed and updates the latest pointer.
func (r *UploadRepository) CompleteUpload(ctx context.Context, uploadID string, fileSizeBytes int64) error {
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("UPLOAD#%s", uploadID)},
			"sk": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		UpdateExpression: aws.String(`
			SET #status = :status,
			    updated_at = :updated_at,
			    completed_at = :completed_at,
			    file_size_bytes = :file_size
		`),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":       &types.AttributeValueMemberS{Value: string(models.StatusCompleted)},
			":updated_at":   &types.AttributeValueMemberS{Value: now},
			":completed_at": &types.AttributeValueMemberS{Value: now},
			":file_size":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", fileSizeBytes)},
		},
		ConditionExpression: aws.String("attribute_exists(pk)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return models.ErrUploadNotFound
		}
		return fmt.Errorf("failed to complete upload: %w", err)
	}

	// Update LATEST pointer
	latestItem := map[string]types.AttributeValue{
		"pk":           &types.AttributeValueMemberS{Value: "LATEST"},
		"sk":           &types.AttributeValueMemberS{Value: "UPLOAD"},
		"upload_id":    &types.AttributeValueMemberS{Value: uploadID},
		"completed_at": &types.AttributeValueMemberS{Value: now},
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      latestItem,
	})
	if err != nil {
		return fmt.Errorf("failed to update latest pointer: %w", err)
	}

	return nil
}

// FailUpload marks an upload as failed.
func (r *UploadRepository) FailUpload(ctx context.Context, uploadID, errorMessage string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("UPLOAD#%s", uploadID)},
			"sk": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		UpdateExpression: aws.String("SET #status = :status, updated_at = :updated_at, error_message = :error"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":     &types.AttributeValueMemberS{Value: string(models.StatusFailed)},
			":updated_at": &types.AttributeValueMemberS{Value: now},
			":error":      &types.AttributeValueMemberS{Value: errorMessage},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to mark upload as failed: %w", err)
	}

	return nil
}

// GetLatestUpload retrieves the most recently completed upload (O(1) operation).
func (r *UploadRepository) GetLatestUpload(ctx context.Context) (*models.UploadMetadata, error) {
	// First, get the LATEST pointer
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: "LATEST"},
			"sk": &types.AttributeValueMemberS{Value: "UPLOAD"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get latest upload pointer: %w", err)
	}

	if result.Item == nil {
		return nil, models.ErrUploadNotFound
	}

	uploadIDAttr, ok := result.Item["upload_id"]
	if !ok {
		return nil, models.ErrUploadNotFound
	}

	uploadIDVal, ok := uploadIDAttr.(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("invalid upload_id type")
	}

	// Get full upload metadata
	return r.GetUpload(ctx, uploadIDVal.Value)
}

// ListUploads retrieves uploads in reverse chronological order.
func (r *UploadRepository) ListUploads(ctx context.Context, limit int32, startKey map[string]types.AttributeValue) ([]models.UploadMetadata, map[string]types.AttributeValue, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("gsi1pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: "ALL_UPLOADS"},
		},
		ScanIndexForward: aws.Bool(false), // Descending order (newest first)
		Limit:            aws.Int32(limit),
	}

	if startKey != nil {
		input.ExclusiveStartKey = startKey
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list uploads: %w", err)
	}

	var uploads []models.UploadMetadata
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &uploads); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal uploads: %w", err)
	}

	return uploads, result.LastEvaluatedKey, nil
}

// EncodeListCursor packs a DynamoDB pagination key into an opaque cursor
// string for the list endpoint. All key attributes on the uploads table
// and its index are strings.
func EncodeListCursor(key map[string]types.AttributeValue) (string, error) {
	if len(key) == 0 {
		return "", nil
	}

	attrs := make(map[string]string, len(key))
	for name, value := range key {
		s, ok := value.(*types.AttributeValueMemberS)
		if !ok {
			return "", fmt.Errorf("%w: attribute %s is not a string", models.ErrInvalidKeyFormat, name)
		}
		attrs[name] = s.Value
	}

	raw, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeListCursor unpacks a cursor produced by EncodeListCursor.
func DecodeListCursor(cursor string) (map[string]types.AttributeValue, error) {
	if cursor == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidKeyFormat, err)
	}

	var attrs map[string]string
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidKeyFormat, err)
	}
	if len(attrs) == 0 {
		return nil, nil
	}

	key := make(map[string]types.AttributeValue, len(attrs))
	for name, value := range attrs {
		key[name] = &types.AttributeValueMemberS{Value: value}
	}
	return key, nil
}
