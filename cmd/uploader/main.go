// Command uploader pushes local files to object storage through the
// backend's presigned-URL API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/amillerrr/chunkflow/internal/client"
	"github.com/amillerrr/chunkflow/internal/config"
	"github.com/amillerrr/chunkflow/internal/observability"
	"github.com/amillerrr/chunkflow/internal/thumbnail"
	"github.com/amillerrr/chunkflow/internal/uploader"
	"github.com/amillerrr/chunkflow/pkg/models"
)

const TracerShutdownTimeout = 5 * time.Second

var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
}

func main() {
	log := observability.NewLogger()

	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using system environment variables")
	}

	cfg, err := config.LoadUploader()
	if err != nil {
		log.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	paths := os.Args[1:]
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: uploader FILE [FILE ...]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, "chunkflow-uploader", cfg)
	if err != nil {
		log.Warn("Tracing disabled", "error", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), TracerShutdownTimeout)
			defer cancel()
			if err := shutdownTracer(shutdownCtx); err != nil {
				log.Error("Failed to shutdown tracer", "error", err)
			}
		}()
	}

	files, err := describeFiles(paths)
	if err != nil {
		log.Error("Failed to read input files", "error", err)
		os.Exit(1)
	}

	// Authenticate with the backend
	api := client.New(client.Config{
		BaseURL: cfg.Uploader.ServerURL,
		Logger:  log,
	})

	username, password, err := cfg.GetAPICredentials()
	if err != nil {
		log.Error("Failed to get API credentials", "error", err)
		os.Exit(1)
	}
	if err := api.Login(ctx, username, password); err != nil {
		log.Error("Login failed", "error", err)
		os.Exit(1)
	}

	thumbnailer := thumbnail.NewFFmpegGenerator(log)

	engine, err := uploader.New(uploader.Config{
		ChunkSize:        cfg.Uploader.ChunkSizeBytes,
		ChunkThreshold:   cfg.Uploader.ThresholdBytes,
		FileConcurrency:  cfg.Uploader.FileConcurrency,
		ChunkConcurrency: cfg.Uploader.ChunkConcurrency,
		MaxFileSizeMB:    cfg.Uploader.MaxFileSizeMB,
		Provider:         api,
		Completer:        api,
		Prober:           thumbnail.NewFFprobeProber(log),
		Thumbnailer:      thumbnailer,
		OnProgress: func(fileIndex int, snap models.ProgressSnapshot) {
			log.Info("Upload progress",
				"fileIndex", fileIndex,
				"percent", snap.Percent,
				"uploadedParts", snap.UploadedParts,
				"totalParts", snap.TotalParts,
				"status", snap.Status,
			)
		},
		OnOverallProgress: func(percent int) {
			log.Info("Batch progress", "percent", percent)
		},
		Logger: log,
	})
	if err != nil {
		log.Error("Failed to create upload engine", "error", err)
		os.Exit(1)
	}

	results, err := engine.UploadBatch(ctx, files)
	thumbnailer.Cleanup()
	if err != nil {
		log.Error("Upload batch aborted", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		log.Error("Failed to encode results", "error", err)
		os.Exit(1)
	}

	for _, res := range results {
		if res.Status == models.StatusFailed {
			os.Exit(1)
		}
	}
}

// describeFiles stats each path and classifies it for the engine.
func describeFiles(paths []string) ([]uploader.FileDescriptor, error) {
	files := make([]uploader.FileDescriptor, 0, len(paths))

	for i, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", path)
		}

		ext := strings.ToLower(filepath.Ext(path))
		kind := models.MediaPhoto
		if videoExtensions[ext] {
			kind = models.MediaVideo
		}

		contentType := mime.TypeByExtension(ext)
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		files = append(files, uploader.FileDescriptor{
			Index:       i,
			Path:        path,
			Size:        info.Size(),
			Kind:        kind,
			ContentType: contentType,
			Extension:   ext,
		})
	}

	return files, nil
}
