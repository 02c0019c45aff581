// Package storage provides the backend's S3 presigning and DynamoDB
// metadata access.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/amillerrr/chunkflow/pkg/models"
)

// Default timeout for S3 control-plane operations.
const DefaultS3Timeout = 30 * time.Second

// S3Client wraps the AWS S3 client with presigning helpers.
type S3Client struct {
	*s3.Client
	presign *s3.PresignClient
}

// NewS3ClientFromAWSConfig creates an S3Client from a loaded AWS config.
func NewS3ClientFromAWSConfig(cfg aws.Config) *S3Client {
	client := s3.NewFromConfig(cfg)
	return &S3Client{
		Client:  client,
		presign: s3.NewPresignClient(client),
	}
}

// PresignPut generates a presigned single-shot PUT URL.
func (c *S3Client) PresignPut(ctx context.Context, bucket, key, contentType string, lifetime time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultS3Timeout)
	defer cancel()

	req, err := c.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = lifetime
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign PUT: %w", err)
	}

	return req.URL, nil
}

// CreateMultipart starts a multipart upload session and returns its id.
func (c *S3Client) CreateMultipart(ctx context.Context, bucket, key, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultS3Timeout)
	defer cancel()

	out, err := c.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create multipart upload: %w", err)
	}

	return aws.ToString(out.UploadId), nil
}

// PresignPartURLs generates one presigned UploadPart URL per part, in
// part-number order starting at 1.
func (c *S3Client) PresignPartURLs(ctx context.Context, bucket, key, uploadID string, totalParts int, lifetime time.Duration) ([]string, error) {
	urls := make([]string, 0, totalParts)

	for part := 1; part <= totalParts; part++ {
		req, err := c.presign.PresignUploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(bucket),
			Key:        aws.String(key),
			UploadId:   aws.String(uploadID),
			PartNumber: aws.Int32(int32(part)),
		}, func(opts *s3.PresignOptions) {
			opts.Expires = lifetime
		})
		if err != nil {
			return nil, fmt.Errorf("failed to presign part %d: %w", part, err)
		}
		urls = append(urls, req.URL)
	}

	return urls, nil
}

// CompleteMultipart finalizes a multipart session. Parts must be in
// ascending part-number order.
func (c *S3Client) CompleteMultipart(ctx context.Context, bucket, key, uploadID string, parts []models.CompletedPart) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultS3Timeout)
	defer cancel()

	completed := make([]s3types.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, s3types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(p.PartNumber),
		})
	}

	_, err := c.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &s3types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to complete multipart upload: %w", err)
	}

	return nil
}
