package uploader

import (
	"context"
	"sync"
	"testing"

	"github.com/amillerrr/chunkflow/pkg/models"
)

type fakeProber struct {
	mu    sync.Mutex
	paths []string
	dims  models.Dimensions
	err   error
}

func (p *fakeProber) Probe(_ context.Context, path string) (models.Dimensions, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paths = append(p.paths, path)
	return p.dims, p.err
}

type fakeThumbnailer struct {
	path string
	ok   bool
	err  error
}

func (g *fakeThumbnailer) Generate(_ context.Context, _ string, _ ThumbnailOptions) (string, bool, error) {
	return g.path, g.ok, g.err
}

func TestUploadBatch_EmptyInput(t *testing.T) {
	engine := newTestEngine(t, Config{
		Provider:  &fakeProvider{},
		Completer: &fakeCompleter{},
	})

	results, err := engine.UploadBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("UploadBatch() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
}

func TestUploadBatch_ResultsInInputOrder(t *testing.T) {
	files := map[string][]byte{
		"a.bin": bytesOfLen(30),
		"b.bin": bytesOfLen(30),
		"c.bin": bytesOfLen(30),
	}

	engine := newTestEngine(t, Config{
		ChunkSize:       40,
		ChunkThreshold:  40,
		FileConcurrency: 3,
		Provider:        &fakeProvider{},
		Completer:       &fakeCompleter{},
		Reader:          memReader{files: files},
		Transport:       &fakeTransport{},
	})

	descriptors := []FileDescriptor{
		{Index: 0, Path: "a.bin", Size: 30, Kind: models.MediaPhoto},
		{Index: 1, Path: "b.bin", Size: 30, Kind: models.MediaPhoto},
		{Index: 2, Path: "c.bin", Size: 30, Kind: models.MediaPhoto},
	}

	results, err := engine.UploadBatch(context.Background(), descriptors)
	if err != nil {
		t.Fatalf("UploadBatch() error = %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	for i, res := range results {
		if res.FileIndex != i {
			t.Errorf("results[%d].FileIndex = %d, want %d", i, res.FileIndex, i)
		}
		if res.Status != models.StatusCompleted {
			t.Errorf("results[%d].Status = %s, want completed", i, res.Status)
		}
	}
}

func TestUploadBatch_FailureIsolation(t *testing.T) {
	// b.bin is absent from the reader, so its pipeline fails while the
	// others complete.
	files := map[string][]byte{
		"a.bin": bytesOfLen(30),
		"c.bin": bytesOfLen(30),
	}

	var overallPercent int
	engine := newTestEngine(t, Config{
		ChunkSize:      40,
		ChunkThreshold: 40,
		Provider:       &fakeProvider{},
		Completer:      &fakeCompleter{},
		Reader:         memReader{files: files},
		Transport:      &fakeTransport{},
		OnOverallProgress: func(percent int) {
			overallPercent = percent
		},
	})

	results, err := engine.UploadBatch(context.Background(), []FileDescriptor{
		{Index: 0, Path: "a.bin", Size: 30, Kind: models.MediaPhoto},
		{Index: 1, Path: "b.bin", Size: 30, Kind: models.MediaPhoto},
		{Index: 2, Path: "c.bin", Size: 30, Kind: models.MediaPhoto},
	})
	if err != nil {
		t.Fatalf("UploadBatch() error = %v", err)
	}

	wantStatus := []models.UploadStatus{
		models.StatusCompleted,
		models.StatusFailed,
		models.StatusCompleted,
	}
	for i, res := range results {
		if res.Status != wantStatus[i] {
			t.Errorf("results[%d].Status = %s, want %s", i, res.Status, wantStatus[i])
		}
	}

	// 60 of 90 bytes landed: ceil(60/90 * 100) = 67
	if overallPercent != 67 {
		t.Errorf("overall percent = %d, want 67", overallPercent)
	}
}

func TestUploadBatch_VideoThumbnail(t *testing.T) {
	files := map[string][]byte{
		"clip.mp4":   bytesOfLen(30),
		"/tmp/t.jpg": bytesOfLen(10),
	}
	provider := &fakeProvider{}
	prober := &fakeProber{dims: models.Dimensions{Width: 1920, Height: 1080}}

	engine := newTestEngine(t, Config{
		ChunkSize:      40,
		ChunkThreshold: 40,
		Provider:       provider,
		Completer:      &fakeCompleter{},
		Reader:         memReader{files: files},
		Transport:      &fakeTransport{},
		Prober:         prober,
		Thumbnailer:    &fakeThumbnailer{path: "/tmp/t.jpg", ok: true},
	})

	results, err := engine.UploadBatch(context.Background(), []FileDescriptor{
		{Index: 0, Path: "clip.mp4", Size: 30, Kind: models.MediaVideo},
	})
	if err != nil {
		t.Fatalf("UploadBatch() error = %v", err)
	}

	res := results[0]
	if res.Status != models.StatusCompleted {
		t.Fatalf("result status = %s, want completed (reason: %s)", res.Status, res.Reason)
	}
	if res.ThumbnailKey != "thumbnails/thumb.jpg" {
		t.Errorf("ThumbnailKey = %q, want thumbnails/thumb.jpg", res.ThumbnailKey)
	}
	if res.Width != 1920 || res.Height != 1080 {
		t.Errorf("dimensions = %dx%d, want 1920x1080", res.Width, res.Height)
	}
	if provider.thumbCalls != 1 {
		t.Errorf("thumbnail URL requests = %d, want 1", provider.thumbCalls)
	}

	// Video dimensions come from the generated thumbnail, not the source.
	if len(prober.paths) != 1 || prober.paths[0] != "/tmp/t.jpg" {
		t.Errorf("probed paths = %v, want [/tmp/t.jpg]", prober.paths)
	}
}

func TestUploadBatch_ThumbnailFailureIsBestEffort(t *testing.T) {
	files := map[string][]byte{
		"clip.mp4": bytesOfLen(30),
	}
	provider := &fakeProvider{thumbErr: context.DeadlineExceeded}

	engine := newTestEngine(t, Config{
		ChunkSize:      40,
		ChunkThreshold: 40,
		Provider:       provider,
		Completer:      &fakeCompleter{},
		Reader:         memReader{files: files},
		Transport:      &fakeTransport{},
		Thumbnailer:    &fakeThumbnailer{ok: false}, // generator unavailable
	})

	results, err := engine.UploadBatch(context.Background(), []FileDescriptor{
		{Index: 0, Path: "clip.mp4", Size: 30, Kind: models.MediaVideo},
	})
	if err != nil {
		t.Fatalf("UploadBatch() error = %v", err)
	}

	res := results[0]
	if res.Status != models.StatusCompleted {
		t.Errorf("result status = %s, want completed despite no thumbnail", res.Status)
	}
	if res.ThumbnailKey != "" {
		t.Errorf("ThumbnailKey = %q, want empty", res.ThumbnailKey)
	}
}

func TestUploadBatch_PhotoProbesSource(t *testing.T) {
	files := map[string][]byte{
		"pic.jpg": bytesOfLen(30),
	}
	prober := &fakeProber{dims: models.Dimensions{Width: 640, Height: 480}}

	engine := newTestEngine(t, Config{
		ChunkSize:      40,
		ChunkThreshold: 40,
		Provider:       &fakeProvider{},
		Completer:      &fakeCompleter{},
		Reader:         memReader{files: files},
		Transport:      &fakeTransport{},
		Prober:         prober,
	})

	results, err := engine.UploadBatch(context.Background(), []FileDescriptor{
		{Index: 0, Path: "pic.jpg", Size: 30, Kind: models.MediaPhoto},
	})
	if err != nil {
		t.Fatalf("UploadBatch() error = %v", err)
	}

	res := results[0]
	if res.Width != 640 || res.Height != 480 {
		t.Errorf("dimensions = %dx%d, want 640x480", res.Width, res.Height)
	}
	if res.ThumbnailKey != "" {
		t.Errorf("ThumbnailKey = %q, want empty for photos", res.ThumbnailKey)
	}
	if len(prober.paths) != 1 || prober.paths[0] != "pic.jpg" {
		t.Errorf("probed paths = %v, want [pic.jpg]", prober.paths)
	}
}
