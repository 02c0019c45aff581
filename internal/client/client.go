// Package client implements the upload engine's signed-URL provider and
// session completer against the backend HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/amillerrr/chunkflow/internal/uploader"
	"github.com/amillerrr/chunkflow/pkg/models"
)

// DefaultRequestTimeout bounds each backend API call.
const DefaultRequestTimeout = 30 * time.Second

// Client talks to the backend API. It implements
// uploader.SignedURLProvider and uploader.Completer.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	log        *slog.Logger
}

// Config holds client configuration.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// New creates a Client for the given backend base URL.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		log:        log,
	}
}

// Login authenticates with basic credentials and stores the issued token
// for subsequent requests.
func (c *Client) Login(ctx context.Context, username, password string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", nil)
	if err != nil {
		return fmt.Errorf("failed to build login request: %w", err)
	}
	req.SetBasicAuth(username, password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}
	if body.Token == "" {
		return fmt.Errorf("login response missing token")
	}

	c.token = body.Token
	return nil
}

// ChunkedUploadURLs opens a chunked session and returns its presigned
// part URLs.
func (c *Client) ChunkedUploadURLs(ctx context.Context, req uploader.ChunkedURLRequest) (*uploader.UploadSession, error) {
	payload := models.InitUploadRequest{
		UploadType:  models.UploadTypeChunked,
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Extension:   req.Extension,
		MediaKind:   req.Kind,
		TotalParts:  req.TotalParts,
	}

	var resp models.InitChunkedResponse
	if err := c.postJSON(ctx, "/upload/init", payload, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrSignedURL, err)
	}

	return &uploader.UploadSession{
		Key:       resp.Key,
		SessionID: resp.SessionID,
		PartURLs:  resp.URLs,
	}, nil
}

// SimpleUploadURL fetches a single presigned PUT URL.
func (c *Client) SimpleUploadURL(ctx context.Context, req uploader.SimpleURLRequest) (*uploader.UploadTarget, error) {
	return c.simpleURL(ctx, models.UploadTypeSimple, req)
}

// ThumbnailUploadURL fetches a presigned PUT URL for a thumbnail object.
func (c *Client) ThumbnailUploadURL(ctx context.Context, req uploader.SimpleURLRequest) (*uploader.UploadTarget, error) {
	return c.simpleURL(ctx, models.UploadTypeThumbnail, req)
}

func (c *Client) simpleURL(ctx context.Context, uploadType models.UploadType, req uploader.SimpleURLRequest) (*uploader.UploadTarget, error) {
	payload := models.InitUploadRequest{
		UploadType:  uploadType,
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Extension:   req.Extension,
		MediaKind:   req.Kind,
	}

	var resp models.InitSimpleResponse
	if err := c.postJSON(ctx, "/upload/init", payload, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrSignedURL, err)
	}

	return &uploader.UploadTarget{
		URL: resp.URL,
		Key: resp.Key,
	}, nil
}

// CompleteUpload finalizes a chunked session with the collected part
// integrity tokens.
func (c *Client) CompleteUpload(ctx context.Context, key, sessionID string, parts []models.CompletedPart) error {
	payload := models.CompleteUploadRequest{
		Key:       key,
		SessionID: sessionID,
		Parts:     parts,
	}

	var resp models.CompleteUploadResponse
	if err := c.postJSON(ctx, "/upload/complete", payload, &resp); err != nil {
		return fmt.Errorf("%w: %v", models.ErrCompletion, err)
	}
	return nil
}

// postJSON sends an authenticated JSON POST and decodes the response
// into out.
func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("POST %s returned status %d: %s", path, resp.StatusCode, bytes.TrimSpace(msg))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
