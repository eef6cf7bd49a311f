package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/salmlabs/video-pipeline/internal/config"
	"github.com/salmlabs/video-pipeline/internal/models"
)

func testPipelineConfig(t *testing.T) *config.PipelineConfig {
	t.Helper()
	return &config.PipelineConfig{
		UploadDir:           t.TempDir(),
		MaxFileSizeBytes:    500 << 20,
		MaxDurationSeconds:  180,
		AllowedExtensions:   []string{"mp4", "mov", "avi", "webm", "mkv"},
		ProbeTimeoutSec:     5,
		EncodeTimeoutSec:    30,
		ThumbnailTimeoutSec: 5,
		ThumbnailWidth:      480,
		CRF:                 23,
		Preset:              "veryfast",
	}
}

func startedScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := NewScheduler(1, 4, 100, false, nopLogger{})
	s.Start()
	t.Cleanup(s.Stop)
	return s
}

// happyRunner probes to fixed geometry and "writes" output by copying
// bytes into ffmpeg's destination argument.
func happyRunner() *fakeRunner {
	return &fakeRunner{
		onFfprobe: func(args []string) ([]byte, error) {
			return []byte("1920,1080,10.0\n"), nil
		},
		onFfmpeg: func(args []string) ([]byte, error) {
			dest := args[len(args)-1]
			return nil, os.WriteFile(dest, []byte("encoded"), 0o644)
		},
	}
}

func uploadReq(fileName string) *models.UploadRequest {
	body := []byte("fake video bytes")
	return &models.UploadRequest{
		Body:        bytes.NewReader(body),
		FileName:    fileName,
		FileSize:    int64(len(body)),
		ContentType: "video/mp4",
		UserID:      uuid.New(),
	}
}

type recordingSink struct {
	states []models.JobState
}

func (r *recordingSink) SetJobStatus(ctx context.Context, jobID string, state models.JobState) error {
	r.states = append(r.states, state)
	return nil
}

func newTestOrchestrator(t *testing.T, runner Runner, sink StatusSink) (*Orchestrator, *config.PipelineConfig) {
	cfg := testPipelineConfig(t)
	o := NewOrchestrator(cfg, runner, startedScheduler(t), sink, nopLogger{})
	o.now = func() time.Time { return time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC) }
	return o, cfg
}

func TestOrchestratorCommit(t *testing.T) {
	sink := &recordingSink{}
	o, cfg := newTestOrchestrator(t, happyRunner(), sink)

	job := &models.EncodeJob{JobID: "job-1"}
	asset, err := o.Run(context.Background(), job, uploadReq("clip.mp4"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if asset.VideoPath != "/videos/2025/03/14/job-1.mp4" {
		t.Errorf("VideoPath = %q", asset.VideoPath)
	}
	if asset.ThumbnailPath != "/thumbnails/2025/03/14/job-1_thumb.jpg" {
		t.Errorf("ThumbnailPath = %q", asset.ThumbnailPath)
	}
	if asset.Width != 1920 || asset.Height != 1080 || asset.DurationSeconds != 10.0 {
		t.Errorf("metadata = %dx%d %.1fs", asset.Width, asset.Height, asset.DurationSeconds)
	}

	videoAbs := filepath.Join(cfg.UploadDir, "videos", "2025", "03", "14", "job-1.mp4")
	if _, err := os.Stat(videoAbs); err != nil {
		t.Errorf("committed video missing: %v", err)
	}
	thumbAbs := filepath.Join(cfg.UploadDir, "thumbnails", "2025", "03", "14", "job-1_thumb.jpg")
	if _, err := os.Stat(thumbAbs); err != nil {
		t.Errorf("committed thumbnail missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.UploadDir, "scratch", "job-1")); !os.IsNotExist(err) {
		t.Errorf("scratch dir survived commit: %v", err)
	}

	if job.State != models.JobCommitted {
		t.Errorf("job state = %s, want %s", job.State, models.JobCommitted)
	}
	want := []models.JobState{
		models.JobReceived, models.JobValidated, models.JobProbed, models.JobPlanned,
		models.JobEncoding, models.JobEncoded, models.JobThumbnailPending, models.JobCommitted,
	}
	if len(sink.states) != len(want) {
		t.Fatalf("sink saw %v, want %v", sink.states, want)
	}
	for i, s := range want {
		if sink.states[i] != s {
			t.Errorf("transition %d = %s, want %s", i, sink.states[i], s)
		}
	}
}

func TestOrchestratorEncodeArgs(t *testing.T) {
	runner := happyRunner()
	o, _ := newTestOrchestrator(t, runner, nil)

	if _, err := o.Run(context.Background(), &models.EncodeJob{JobID: "job-args"}, uploadReq("clip.mp4")); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var encodeArgs []string
	for _, c := range runner.callsFor("ffmpeg") {
		if isEncodeCall(c) {
			encodeArgs = c
		}
	}
	if encodeArgs == nil {
		t.Fatal("no encode invocation recorded")
	}
	if got := argValue(encodeArgs, "-c:v"); got != "libx264" {
		t.Errorf("-c:v = %q", got)
	}
	if got := argValue(encodeArgs, "-vf"); got != "scale=1080:608" {
		t.Errorf("-vf = %q", got)
	}
	if !hasArg(encodeArgs, "+faststart") {
		t.Error("faststart flag missing")
	}

	var thumbArgs []string
	for _, c := range runner.callsFor("ffmpeg") {
		if isThumbnailCall(c) {
			thumbArgs = c
		}
	}
	if thumbArgs == nil {
		t.Fatal("no thumbnail invocation recorded")
	}
	if !containsScale(thumbArgs, "scale=480:-2") {
		t.Errorf("thumbnail scale missing in %v", thumbArgs)
	}
	// The thumbnail is taken from the encoded output, not the source.
	if src := argValue(thumbArgs, "-i"); !strings.HasSuffix(src, "encoded.mp4") {
		t.Errorf("thumbnail input = %q, want the encoded file", src)
	}
}

func TestOrchestratorValidationRejects(t *testing.T) {
	runner := happyRunner()
	o, cfg := newTestOrchestrator(t, runner, nil)

	job := &models.EncodeJob{JobID: "job-bad"}
	_, err := o.Run(context.Background(), job, uploadReq("clip.wmv"))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Run = %v, want ValidationError", err)
	}
	if job.State != models.JobFailed {
		t.Errorf("job state = %s, want failed", job.State)
	}
	if len(runner.calls) != 0 {
		t.Errorf("subprocesses ran for a rejected upload: %v", runner.calls)
	}
	if _, err := os.Stat(filepath.Join(cfg.UploadDir, "scratch", "job-bad")); !os.IsNotExist(err) {
		t.Error("scratch dir created for a rejected upload")
	}
}

func TestOrchestratorOverlongVideoRejected(t *testing.T) {
	runner := happyRunner()
	runner.onFfprobe = func(args []string) ([]byte, error) {
		return []byte("1920,1080,300.0\n"), nil
	}
	o, cfg := newTestOrchestrator(t, runner, nil)

	job := &models.EncodeJob{JobID: "job-long"}
	_, err := o.Run(context.Background(), job, uploadReq("clip.mp4"))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Run = %v, want ValidationError", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.UploadDir, "scratch", "job-long")); !os.IsNotExist(err) {
		t.Error("scratch dir survived duration rejection")
	}
}

func TestOrchestratorEncodeFailureCleansUp(t *testing.T) {
	runner := happyRunner()
	runner.onFfmpeg = func(args []string) ([]byte, error) {
		return nil, &ExitError{Name: "ffmpeg", Code: 1, Stderr: "Invalid data found"}
	}
	o, cfg := newTestOrchestrator(t, runner, nil)

	job := &models.EncodeJob{JobID: "job-fail"}
	_, err := o.Run(context.Background(), job, uploadReq("clip.mp4"))
	var encErr *EncodeError
	if !errors.As(err, &encErr) {
		t.Fatalf("Run = %v, want EncodeError", err)
	}
	if encErr.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", encErr.ExitCode)
	}
	if job.State != models.JobFailed {
		t.Errorf("job state = %s, want failed", job.State)
	}

	if _, err := os.Stat(filepath.Join(cfg.UploadDir, "scratch", "job-fail")); !os.IsNotExist(err) {
		t.Error("scratch dir survived encode failure")
	}
	entries, _ := os.ReadDir(filepath.Join(cfg.UploadDir, "videos"))
	if len(entries) != 0 {
		t.Errorf("videos dir has %d entries after failure", len(entries))
	}
}

func TestOrchestratorThumbnailFailureIsNonFatal(t *testing.T) {
	runner := happyRunner()
	runner.onFfmpeg = func(args []string) ([]byte, error) {
		if hasArg(args, "-vframes") {
			return nil, &ExitError{Name: "ffmpeg", Code: 1, Stderr: "no frame"}
		}
		dest := args[len(args)-1]
		return nil, os.WriteFile(dest, []byte("encoded"), 0o644)
	}
	o, cfg := newTestOrchestrator(t, runner, nil)

	job := &models.EncodeJob{JobID: "job-nothumb"}
	asset, err := o.Run(context.Background(), job, uploadReq("clip.mp4"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if asset.ThumbnailPath != "" {
		t.Errorf("ThumbnailPath = %q, want empty", asset.ThumbnailPath)
	}
	if asset.VideoPath == "" {
		t.Error("VideoPath empty on committed asset")
	}
	if job.State != models.JobCommitted {
		t.Errorf("job state = %s, want committed", job.State)
	}
	if _, err := os.Stat(filepath.Join(cfg.UploadDir, "videos", "2025", "03", "14", "job-nothumb.mp4")); err != nil {
		t.Errorf("committed video missing: %v", err)
	}
}

func TestOrchestratorDeclaredSizeMismatch(t *testing.T) {
	o, cfg := newTestOrchestrator(t, happyRunner(), nil)

	req := uploadReq("clip.mp4")
	req.FileSize = 5 << 20 // body is a few bytes

	job := &models.EncodeJob{JobID: "job-size"}
	_, err := o.Run(context.Background(), job, req)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Run = %v, want ValidationError", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.UploadDir, "scratch", "job-size")); !os.IsNotExist(err) {
		t.Error("scratch dir survived size mismatch")
	}
}

// countingReader tracks how many bytes the pipeline drains from the
// upload stream.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func TestOrchestratorUnderDeclaredStreamBounded(t *testing.T) {
	o, cfg := newTestOrchestrator(t, happyRunner(), nil)

	// Declares one byte, streams 8 MiB.
	body := &countingReader{r: bytes.NewReader(make([]byte, 8<<20))}
	req := uploadReq("clip.mp4")
	req.Body = body
	req.FileSize = 1

	job := &models.EncodeJob{JobID: "job-flood"}
	_, err := o.Run(context.Background(), job, req)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Run = %v, want ValidationError", err)
	}

	// The copy must stop at declared size plus slack, not drain the body.
	maxConsumed := req.FileSize + declaredSizeTolerance + 1
	if body.n > maxConsumed {
		t.Errorf("consumed %d bytes from an under-declared stream, want at most %d", body.n, maxConsumed)
	}
	if _, err := os.Stat(filepath.Join(cfg.UploadDir, "scratch", "job-flood")); !os.IsNotExist(err) {
		t.Error("scratch dir survived over-streaming rejection")
	}
}

func TestOrchestratorRejectedSubmissionNotEncoding(t *testing.T) {
	cfg := testPipelineConfig(t)
	s := NewScheduler(1, 0, 100, true, nopLogger{})
	s.Start()
	t.Cleanup(s.Stop)

	release := make(chan struct{})
	defer close(release)
	if _, err := s.Submit(context.Background(), "occupant", func(ctx context.Context) (*models.VideoAsset, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, ctx.Err()
	}); err != nil {
		t.Fatalf("Submit occupant: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	sink := &recordingSink{}
	o := NewOrchestrator(cfg, happyRunner(), s, sink, nopLogger{})
	o.now = func() time.Time { return time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC) }

	job := &models.EncodeJob{JobID: "job-busy"}
	_, err := o.Run(context.Background(), job, uploadReq("clip.mp4"))
	if !errors.Is(err, ErrTooManyJobs) {
		t.Fatalf("Run = %v, want ErrTooManyJobs", err)
	}
	if job.State != models.JobFailed {
		t.Errorf("job state = %s, want failed", job.State)
	}
	for _, state := range sink.states {
		if state == models.JobEncoding {
			t.Error("rejected submission recorded an encoding state")
		}
	}
}

func TestOrchestratorGeneratesJobID(t *testing.T) {
	o, _ := newTestOrchestrator(t, happyRunner(), nil)

	job := &models.EncodeJob{}
	if _, err := o.Run(context.Background(), job, uploadReq("clip.mp4")); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if job.JobID == "" {
		t.Error("job id not assigned")
	}
	if _, err := uuid.Parse(job.JobID); err != nil {
		t.Errorf("job id %q is not a uuid", job.JobID)
	}
}
