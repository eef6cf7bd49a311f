package pipeline

import (
	"errors"
	"fmt"
)

// ErrTooManyJobs is returned by non-blocking submission when the encode
// queue is full. Callers may retry after backing off.
var ErrTooManyJobs = errors.New("too many encode jobs queued")

// ErrSchedulerStopped is returned for submissions after shutdown began
// and for jobs still queued when it completed.
var ErrSchedulerStopped = errors.New("encode scheduler stopped")

// ValidationError covers the client-correctable rejections: bad
// extension, oversized upload, over-long video. The message is safe to
// surface verbatim.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ProbeError reports an ffprobe invocation that exited non-zero or ran
// past its deadline. The job cannot continue without geometry.
type ProbeError struct {
	Timeout  bool
	ExitCode int
	Err      error
}

func (e *ProbeError) Error() string {
	if e.Timeout {
		return "probe timed out"
	}
	return fmt.Sprintf("probe failed (exit=%d): %v", e.ExitCode, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// EncodeError reports a failed or timed-out transcode.
type EncodeError struct {
	Timeout  bool
	ExitCode int
	Err      error
}

func (e *EncodeError) Error() string {
	if e.Timeout {
		return "encode timed out"
	}
	return fmt.Sprintf("encode failed (exit=%d): %v", e.ExitCode, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// ThumbnailError reports a failed frame extraction. It never fails the
// pipeline; the orchestrator degrades to a thumbnail-less asset.
type ThumbnailError struct {
	Err error
}

func (e *ThumbnailError) Error() string {
	return fmt.Sprintf("thumbnail generation failed: %v", e.Err)
}

func (e *ThumbnailError) Unwrap() error { return e.Err }

// ExitError is produced by the exec-backed Runner for non-zero process
// exits, carrying the code and a bounded stderr sample.
type ExitError struct {
	Name   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Name, e.Code)
}

func exitCodeOf(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}
