package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/salmlabs/video-pipeline/internal/models"
	"github.com/salmlabs/video-pipeline/pkg/logger"
)

// thumbnailSeekOffset skips the first second of the stream; frame 0 is
// frequently black or only partially decoded.
const thumbnailSeekOffset = "00:00:01"

// Encoder runs the ffmpeg transcode and thumbnail extraction stages.
// Each invocation writes its destination fresh; a retried job never
// observes partial output from a previous attempt.
type Encoder struct {
	runner         Runner
	logger         logger.Logger
	encodeTimeout  time.Duration
	thumbTimeout   time.Duration
	thumbnailWidth int
}

func NewEncoder(runner Runner, log logger.Logger, encodeTimeout, thumbTimeout time.Duration, thumbnailWidth int) *Encoder {
	return &Encoder{
		runner:         runner,
		logger:         log,
		encodeTimeout:  encodeTimeout,
		thumbTimeout:   thumbTimeout,
		thumbnailWidth: thumbnailWidth,
	}
}

// Encode transcodes sourcePath into destPath under the plan's fixed
// codec policy, with faststart so playback can begin mid-download.
func (e *Encoder) Encode(ctx context.Context, sourcePath, destPath string, plan models.EncodePlan) error {
	ctx, cancel := context.WithTimeout(ctx, e.encodeTimeout)
	defer cancel()

	args := buildEncodeArgs(sourcePath, destPath, plan)
	if _, err := e.runner.Run(ctx, "ffmpeg", args...); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &EncodeError{Timeout: true, Err: err}
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		return &EncodeError{ExitCode: exitCodeOf(err), Err: err}
	}
	return nil
}

func buildEncodeArgs(sourcePath, destPath string, plan models.EncodePlan) []string {
	args := []string{
		"-i", sourcePath,
		"-c:v", plan.VideoCodec,
		"-preset", plan.Preset,
		"-crf", strconv.Itoa(plan.CRF),
	}
	if plan.TargetWidth > 0 && plan.TargetHeight > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", plan.TargetWidth, plan.TargetHeight))
	}
	args = append(args,
		"-c:a", plan.AudioCodec,
		"-b:a", plan.AudioBitrate,
		"-movflags", "+faststart",
		"-y", destPath,
	)
	return args
}

// Thumbnail extracts a single frame from encodedPath into destPath,
// scaled to the configured width with preserved (even) aspect.
func (e *Encoder) Thumbnail(ctx context.Context, encodedPath, destPath string) error {
	ctx, cancel := context.WithTimeout(ctx, e.thumbTimeout)
	defer cancel()

	_, err := e.runner.Run(ctx, "ffmpeg",
		"-i", encodedPath,
		"-ss", thumbnailSeekOffset,
		"-vframes", "1",
		"-vf", fmt.Sprintf("scale=%d:-2", e.thumbnailWidth),
		"-q:v", "2",
		"-y", destPath,
	)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return &ThumbnailError{Err: err}
	}
	return nil
}
