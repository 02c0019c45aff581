package thumbnail

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/amillerrr/chunkflow/pkg/models"
)

// FFprobeProber probes pixel dimensions with ffprobe.
type FFprobeProber struct {
	log *slog.Logger
}

// NewFFprobeProber creates a new FFprobeProber.
func NewFFprobeProber(log *slog.Logger) *FFprobeProber {
	return &FFprobeProber{log: log}
}

// Probe returns the width and height of the first video stream, which for
// still images is the image itself.
func (p *FFprobeProber) Probe(ctx context.Context, path string) (models.Dimensions, error) {
	ctx, span := tracer.Start(ctx, "probe-dimensions")
	defer span.End()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return models.Dimensions{}, fmt.Errorf("%w: %v", models.ErrDimensionProbe, err)
	}

	dims, err := parseDimensions(string(output))
	if err != nil {
		return models.Dimensions{}, err
	}

	p.log.DebugContext(ctx, "Probed dimensions",
		"path", path,
		"width", dims.Width,
		"height", dims.Height,
	)
	return dims, nil
}

// parseDimensions parses ffprobe's "WIDTHxHEIGHT" output.
func parseDimensions(output string) (models.Dimensions, error) {
	fields := strings.SplitN(strings.TrimSpace(output), "x", 2)
	if len(fields) != 2 {
		return models.Dimensions{}, fmt.Errorf("%w: unexpected output %q", models.ErrDimensionProbe, output)
	}

	width, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return models.Dimensions{}, fmt.Errorf("%w: bad width %q", models.ErrDimensionProbe, fields[0])
	}
	height, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return models.Dimensions{}, fmt.Errorf("%w: bad height %q", models.ErrDimensionProbe, fields[1])
	}

	return models.Dimensions{Width: width, Height: height}, nil
}
