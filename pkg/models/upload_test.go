package models

import (
	"errors"
	"testing"
)

func TestUploadStatus_IsValid(t *testing.T) {
	valid := []UploadStatus{StatusPending, StatusUploading, StatusCompleted, StatusFailed}
	for _, s := range valid {
		if !s.IsValid() {
			t.Errorf("IsValid(%q) = false, want true", s)
		}
	}

	invalid := []UploadStatus{"", "done", "PENDING"}
	for _, s := range invalid {
		if s.IsValid() {
			t.Errorf("IsValid(%q) = true, want false", s)
		}
	}
}

func TestUploadNotification_Validate(t *testing.T) {
	tests := []struct {
		name    string
		n       UploadNotification
		wantErr error
	}{
		{
			"valid",
			UploadNotification{UploadID: "id", S3Key: "uploads/id.mp4", Bucket: "b"},
			nil,
		},
		{
			"missing upload id",
			UploadNotification{S3Key: "uploads/id.mp4", Bucket: "b"},
			ErrMissingUploadID,
		},
		{
			"missing s3 key",
			UploadNotification{UploadID: "id", Bucket: "b"},
			ErrMissingS3Key,
		},
		{
			"missing bucket",
			UploadNotification{UploadID: "id", S3Key: "uploads/id.mp4"},
			ErrMissingBucket,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.n.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
