package uploader

import (
	"context"
	"path/filepath"
	"time"

	"github.com/amillerrr/chunkflow/pkg/models"
)

// Thumbnail upload parameters. Thumbnails are always JPEG regardless of
// the source container.
const (
	thumbnailContentType = "image/jpeg"
	thumbnailExtension   = ".jpg"

	defaultThumbnailTimestamp = 1 * time.Second
	defaultThumbnailQuality   = 2
)

// thumbnailAndDimensions runs the best-effort post-upload steps: probe
// pixel dimensions and, for videos, generate and upload a thumbnail.
// Every step downgrades to "no thumbnail" / "no dimensions" on failure;
// nothing here ever fails the parent upload.
func (e *Engine) thumbnailAndDimensions(ctx context.Context, fd FileDescriptor) (models.Dimensions, string) {
	if fd.Kind == models.MediaPhoto {
		return e.probeDimensions(ctx, fd.Path), ""
	}

	thumbPath := fd.ThumbnailPath
	if thumbPath == "" && e.cfg.Thumbnailer != nil {
		path, ok, err := e.cfg.Thumbnailer.Generate(ctx, fd.Path, ThumbnailOptions{
			Timestamp: defaultThumbnailTimestamp,
			Quality:   defaultThumbnailQuality,
		})
		if err != nil {
			e.cfg.Logger.WarnContext(ctx, "Thumbnail generation failed",
				"fileIndex", fd.Index,
				"path", fd.Path,
				"error", err,
			)
		} else if ok {
			thumbPath = path
		}
	}
	if thumbPath == "" {
		return models.Dimensions{}, ""
	}

	thumbKey := e.uploadThumbnail(ctx, fd, thumbPath)
	return e.probeDimensions(ctx, thumbPath), thumbKey
}

// uploadThumbnail requests a signed thumbnail URL and PUTs the thumbnail
// bytes. Returns the remote key, or "" if any step failed.
func (e *Engine) uploadThumbnail(ctx context.Context, fd FileDescriptor, thumbPath string) string {
	target, err := e.cfg.Provider.ThumbnailUploadURL(ctx, SimpleURLRequest{
		Filename:    filepath.Base(thumbPath),
		ContentType: thumbnailContentType,
		Extension:   thumbnailExtension,
		Kind:        fd.Kind,
	})
	if err != nil {
		e.cfg.Logger.WarnContext(ctx, "Thumbnail URL request failed",
			"fileIndex", fd.Index,
			"error", err,
		)
		return ""
	}

	body, err := e.readAll(thumbPath, 0)
	if err != nil {
		e.cfg.Logger.WarnContext(ctx, "Failed to read thumbnail",
			"fileIndex", fd.Index,
			"path", thumbPath,
			"error", err,
		)
		return ""
	}

	resp, err := e.cfg.Transport.Put(ctx, target.URL, body, thumbnailContentType)
	if err != nil || resp.StatusCode != 200 {
		e.cfg.Logger.WarnContext(ctx, "Thumbnail upload failed",
			"fileIndex", fd.Index,
			"error", err,
		)
		return ""
	}

	return target.Key
}

// probeDimensions returns the file's pixel dimensions, or zero dimensions
// when no prober is configured or the probe fails.
func (e *Engine) probeDimensions(ctx context.Context, path string) models.Dimensions {
	if e.cfg.Prober == nil {
		return models.Dimensions{}
	}

	dims, err := e.cfg.Prober.Probe(ctx, path)
	if err != nil {
		e.cfg.Logger.WarnContext(ctx, "Dimension probe failed",
			"path", path,
			"error", err,
		)
		return models.Dimensions{}
	}
	return dims
}
