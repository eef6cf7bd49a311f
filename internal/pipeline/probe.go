package pipeline

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/salmlabs/video-pipeline/internal/models"
)

// Prober extracts stream geometry and duration from a media file via a
// single ffprobe call against the first video stream.
type Prober struct {
	runner  Runner
	timeout time.Duration
}

func NewProber(runner Runner, timeout time.Duration) *Prober {
	return &Prober{runner: runner, timeout: timeout}
}

func (p *Prober) Probe(ctx context.Context, path string) (models.MediaMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.runner.Run(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,duration",
		"-of", "csv=p=0",
		path,
	)
	if err != nil {
		return models.MediaMetadata{}, probeError(err)
	}

	meta := ParseProbeCSV(out)

	// WebM and some MOV files carry duration only at the container
	// level; fall back to a format-scoped probe before giving up.
	if meta.Duration == 0 {
		if out, err := p.runner.Run(ctx, "ffprobe",
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "csv=p=0",
			path,
		); err == nil {
			meta.Duration = parseProbeFloat(strings.TrimSpace(string(out)))
		}
	}

	if fi, err := os.Stat(path); err == nil {
		meta.FileSizeBytes = fi.Size()
	}
	return meta, nil
}

// ParseProbeCSV parses one "width,height,duration" line of ffprobe CSV
// output. Missing or malformed fields parse to zero; callers treat
// all-zero metadata as unknown. Exported so tests need no real ffprobe.
func ParseProbeCSV(out []byte) models.MediaMetadata {
	line := strings.TrimSpace(string(out))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	line = strings.TrimRight(line, ",")
	if line == "" {
		return models.MediaMetadata{}
	}

	var meta models.MediaMetadata
	parts := strings.Split(line, ",")
	if len(parts) > 0 {
		meta.Width = parseProbeInt(parts[0])
	}
	if len(parts) > 1 {
		meta.Height = parseProbeInt(parts[1])
	}
	if len(parts) > 2 {
		meta.Duration = parseProbeFloat(parts[2])
	}
	return meta
}

func probeError(err error) *ProbeError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProbeError{Timeout: true, Err: err}
	}
	return &ProbeError{ExitCode: exitCodeOf(err), Err: err}
}

func parseProbeInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func parseProbeFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
