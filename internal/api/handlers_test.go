package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amillerrr/chunkflow/pkg/models"
)

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		wantErr  bool
	}{
		{"valid mp4", "video.mp4", false},
		{"valid mov", "my_video.mov", false},
		{"valid jpg", "photo.jpg", false},
		{"valid png", "photo.png", false},
		{"valid webm", "clip.webm", false},
		{"empty filename", "", true},
		{"invalid extension", "video.txt", true},
		{"no extension", "video", true},
		{"uppercase extension", "photo.JPG", false}, // Should be case-insensitive
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &models.InitUploadRequest{Filename: tt.filename}
			err := validateFilename(tt.filename, extensionFor(req))
			if (err != nil) != tt.wantErr {
				t.Errorf("validateFilename(%q) error = %v, wantErr %v", tt.filename, err, tt.wantErr)
			}
		})
	}
}

func TestValidateFilename_TooLong(t *testing.T) {
	longFilename := make([]byte, MaxFilenameLength+10)
	for i := range longFilename {
		longFilename[i] = 'a'
	}
	longFilename = append(longFilename, '.', 'j', 'p', 'g')

	err := validateFilename(string(longFilename), ".jpg")
	if err == nil {
		t.Error("validateFilename() expected error for long filename")
	}
}

func TestValidateContentType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		wantErr     bool
	}{
		{"valid mp4", "video/mp4", false},
		{"valid quicktime", "video/quicktime", false},
		{"valid jpeg", "image/jpeg", false},
		{"valid png", "image/png", false},
		{"valid webm", "video/webm", false},
		{"empty", "", true},
		{"invalid type", "application/pdf", true},
		{"text type", "text/plain", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContentType(tt.contentType)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateContentType(%q) error = %v, wantErr %v", tt.contentType, err, tt.wantErr)
			}
		})
	}
}

func TestValidateInitRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     models.InitUploadRequest
		wantErr bool
	}{
		{
			"valid chunked",
			models.InitUploadRequest{UploadType: models.UploadTypeChunked, Filename: "a.mp4", ContentType: "video/mp4", TotalParts: 4},
			false,
		},
		{
			"valid simple",
			models.InitUploadRequest{UploadType: models.UploadTypeSimple, Filename: "a.jpg", ContentType: "image/jpeg"},
			false,
		},
		{
			"valid thumbnail",
			models.InitUploadRequest{UploadType: models.UploadTypeThumbnail},
			false,
		},
		{
			"unknown upload type",
			models.InitUploadRequest{UploadType: "streaming", Filename: "a.mp4", ContentType: "video/mp4"},
			true,
		},
		{
			"chunked missing parts",
			models.InitUploadRequest{UploadType: models.UploadTypeChunked, Filename: "a.mp4", ContentType: "video/mp4"},
			true,
		},
		{
			"chunked too many parts",
			models.InitUploadRequest{UploadType: models.UploadTypeChunked, Filename: "a.mp4", ContentType: "video/mp4", TotalParts: MaxPartsPerSession + 1},
			true,
		},
		{
			"extension override",
			models.InitUploadRequest{UploadType: models.UploadTypeSimple, Filename: "upload", Extension: "png", ContentType: "image/png"},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateInitRequest(&tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateInitRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateObjectKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid key", "uploads/abc-123-def.mp4", false},
		{"valid photo key", "uploads/abc-123-def.jpg", false},
		{"wrong prefix", "wrong/abc-123-def.mp4", true},
		{"path traversal", "uploads/../abc-123-def.mp4", true},
		{"encoded path traversal", "uploads/%2e%2e/abc-123-def.mp4", true},
		{"invalid extension", "uploads/abc-123-def.exe", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateObjectKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateObjectKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name string
		req  models.InitUploadRequest
		want string
	}{
		{
			"chunked video",
			models.InitUploadRequest{UploadType: models.UploadTypeChunked, Filename: "clip.MP4"},
			"uploads/id-1.mp4",
		},
		{
			"simple with extension override",
			models.InitUploadRequest{UploadType: models.UploadTypeSimple, Filename: "upload", Extension: "png"},
			"uploads/id-1.png",
		},
		{
			"thumbnail",
			models.InitUploadRequest{UploadType: models.UploadTypeThumbnail, Filename: "t.jpg"},
			"thumbnails/id-1.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := objectKey("id-1", &tt.req); got != tt.want {
				t.Errorf("objectKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUploadIDFromKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"uploads/abc-123.mp4", "abc-123"},
		{"uploads/abc-123.jpg", "abc-123"},
		{"thumbnails/xyz.jpg", "xyz"},
	}

	for _, tt := range tests {
		if got := uploadIDFromKey(tt.key); got != tt.want {
			t.Errorf("uploadIDFromKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestCORSMiddleware(t *testing.T) {
	allowedOrigins := []string{"https://example.com", "https://test.com"}
	middleware := CORSMiddleware(allowedOrigins)

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Origin", "https://example.com")
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "https://example.com")
		}
	})

	t.Run("disallowed origin", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Origin", "https://malicious.com")
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
		}
	})

	t.Run("preflight request", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/test", nil)
		req.Header.Set("Origin", "https://example.com")
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusNoContent {
			t.Errorf("Status = %d, want %d", rr.Code, http.StatusNoContent)
		}
	})
}

func TestIsInternalRequest(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		want       bool
	}{
		{"localhost", "127.0.0.1:8080", true},
		{"10.x network", "10.0.0.1:12345", true},
		{"172.16.x network", "172.16.0.1:12345", true},
		{"192.168.x network", "192.168.1.1:12345", true},
		{"public IP", "203.0.113.1:12345", false},
		{"another public IP", "8.8.8.8:53", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isInternalRequest(tt.remoteAddr); got != tt.want {
				t.Errorf("isInternalRequest(%q) = %v, want %v", tt.remoteAddr, got, tt.want)
			}
		})
	}
}

func TestInitUploadHandler_InvalidMethod(t *testing.T) {
	h := &Handlers{}

	req := httptest.NewRequest("GET", "/upload/init", nil)
	rr := httptest.NewRecorder()

	h.InitUploadHandler(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status = %d, want %d", rr.Code, http.StatusMethodNotAllowed)
	}
}

func TestInitUploadHandler_InvalidJSON(t *testing.T) {
	h := &Handlers{}

	req := httptest.NewRequest("POST", "/upload/init", bytes.NewBufferString("not json"))
	rr := httptest.NewRecorder()

	h.InitUploadHandler(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestInitUploadHandler_InvalidFilename(t *testing.T) {
	h := &Handlers{}

	body := models.InitUploadRequest{
		UploadType:  models.UploadTypeSimple,
		Filename:    "video.txt", // Invalid extension
		ContentType: "video/mp4",
	}
	bodyBytes, _ := json.Marshal(body)

	req := httptest.NewRequest("POST", "/upload/init", bytes.NewBuffer(bodyBytes))
	rr := httptest.NewRecorder()

	h.InitUploadHandler(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestInitUploadHandler_MissingUploadType(t *testing.T) {
	h := &Handlers{}

	body := models.InitUploadRequest{
		Filename:    "video.mp4",
		ContentType: "video/mp4",
	}
	bodyBytes, _ := json.Marshal(body)

	req := httptest.NewRequest("POST", "/upload/init", bytes.NewBuffer(bodyBytes))
	rr := httptest.NewRecorder()

	h.InitUploadHandler(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCompleteUploadHandler_InvalidMethod(t *testing.T) {
	h := &Handlers{}

	req := httptest.NewRequest("GET", "/upload/complete", nil)
	rr := httptest.NewRecorder()

	h.CompleteUploadHandler(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status = %d, want %d", rr.Code, http.StatusMethodNotAllowed)
	}
}

func TestCompleteUploadHandler_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		body models.CompleteUploadRequest
	}{
		{"missing key", models.CompleteUploadRequest{SessionID: "s1", Parts: []models.CompletedPart{{ETag: "e", PartNumber: 1}}}},
		{"missing session", models.CompleteUploadRequest{Key: "uploads/a.mp4", Parts: []models.CompletedPart{{ETag: "e", PartNumber: 1}}}},
		{"missing parts", models.CompleteUploadRequest{Key: "uploads/a.mp4", SessionID: "s1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &Handlers{}
			bodyBytes, _ := json.Marshal(tt.body)

			req := httptest.NewRequest("POST", "/upload/complete", bytes.NewBuffer(bodyBytes))
			rr := httptest.NewRecorder()

			h.CompleteUploadHandler(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("Status = %d, want %d", rr.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestLatestUploadHandler_InvalidMethod(t *testing.T) {
	h := &Handlers{}

	req := httptest.NewRequest("POST", "/uploads/latest", nil)
	rr := httptest.NewRecorder()

	h.LatestUploadHandler(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status = %d, want %d", rr.Code, http.StatusMethodNotAllowed)
	}
}

func TestListUploadsHandler_InvalidMethod(t *testing.T) {
	h := &Handlers{}

	req := httptest.NewRequest("POST", "/uploads", nil)
	rr := httptest.NewRecorder()

	h.ListUploadsHandler(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status = %d, want %d", rr.Code, http.StatusMethodNotAllowed)
	}
}

func TestListUploadsHandler_InvalidQuery(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"limit not a number", "/uploads?limit=abc"},
		{"limit zero", "/uploads?limit=0"},
		{"limit too large", "/uploads?limit=101"},
		{"bad cursor", "/uploads?cursor=%21%21%21"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &Handlers{}

			req := httptest.NewRequest("GET", tt.target, nil)
			rr := httptest.NewRecorder()

			h.ListUploadsHandler(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("Status = %d, want %d", rr.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestListUploadsHandler_NoRepository(t *testing.T) {
	h := &Handlers{}

	req := httptest.NewRequest("GET", "/uploads?limit=10", nil)
	rr := httptest.NewRecorder()

	h.ListUploadsHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp ListUploadsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Uploads) != 0 || resp.NextCursor != "" {
		t.Errorf("response = %+v, want empty listing", resp)
	}
}
