// Package thumbnail provides ffmpeg-backed implementations of the upload
// engine's best-effort collaborators: video thumbnail generation and
// pixel dimension probing.
package thumbnail

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"

	"github.com/amillerrr/chunkflow/internal/uploader"
	"github.com/amillerrr/chunkflow/pkg/models"
)

// TempThumbnailDir is where generated thumbnails are written.
const TempThumbnailDir = "/tmp/thumbnails"

var tracer = otel.Tracer("chunkflow-thumbnail")

// FFmpegGenerator generates video thumbnails with ffmpeg. A missing
// ffmpeg binary is reported as unavailable, never as an error. Generated
// files are tracked so Cleanup can remove them after upload.
type FFmpegGenerator struct {
	log *slog.Logger

	// lookPath is swapped in tests.
	lookPath func(file string) (string, error)

	mu        sync.Mutex
	generated []string
}

// NewFFmpegGenerator creates a new FFmpegGenerator.
func NewFFmpegGenerator(log *slog.Logger) *FFmpegGenerator {
	return &FFmpegGenerator{
		log:      log,
		lookPath: exec.LookPath,
	}
}

// Generate extracts a single frame from the video as a JPEG thumbnail.
func (g *FFmpegGenerator) Generate(ctx context.Context, videoPath string, opts uploader.ThumbnailOptions) (string, bool, error) {
	ctx, span := tracer.Start(ctx, "generate-thumbnail")
	defer span.End()

	if _, err := g.lookPath("ffmpeg"); err != nil {
		g.log.DebugContext(ctx, "ffmpeg not installed, skipping thumbnail generation")
		return "", false, nil
	}

	if err := os.MkdirAll(TempThumbnailDir, 0755); err != nil {
		return "", true, fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	outPath := filepath.Join(TempThumbnailDir, base+".jpg")

	timestamp := fmt.Sprintf("%.3f", opts.Timestamp.Seconds())
	quality := strconv.Itoa(opts.Quality)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-ss", timestamp,
		"-i", videoPath,
		"-vframes", "1",
		"-q:v", quality,
		outPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", true, fmt.Errorf("%w: %v: %s", models.ErrThumbnail, err, trimOutput(output))
	}

	g.mu.Lock()
	g.generated = append(g.generated, outPath)
	g.mu.Unlock()

	return outPath, true, nil
}

// Cleanup removes every thumbnail generated so far.
func (g *FFmpegGenerator) Cleanup() {
	g.mu.Lock()
	paths := g.generated
	g.generated = nil
	g.mu.Unlock()

	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			g.log.Warn("Failed to remove thumbnail", "path", path, "error", err)
		}
	}
}

func trimOutput(output []byte) string {
	s := strings.TrimSpace(string(output))
	if len(s) > 200 {
		s = s[len(s)-200:]
	}
	return s
}
