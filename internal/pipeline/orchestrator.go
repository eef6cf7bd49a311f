package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/salmlabs/video-pipeline/internal/config"
	"github.com/salmlabs/video-pipeline/internal/models"
	"github.com/salmlabs/video-pipeline/pkg/logger"
)

// declaredSizeTolerance is the allowed gap between the declared byte
// size and the bytes actually read from the upload stream.
const declaredSizeTolerance = 1 << 20

// StatusSink receives state transitions for observability (the redis
// job-status cache implements it). A nil sink is valid.
type StatusSink interface {
	SetJobStatus(ctx context.Context, jobID string, state models.JobState) error
}

// Orchestrator sequences one upload through validate, probe, plan,
// encode, thumbnail and commit. The encode stage always dispatches
// through the shared scheduler; nothing transcodes on the caller's
// goroutine. On any failure every partial artifact of the job is
// removed before the error returns.
type Orchestrator struct {
	cfg       *config.PipelineConfig
	validator *Validator
	prober    *Prober
	planner   *Planner
	encoder   *Encoder
	scheduler *Scheduler
	status    StatusSink
	logger    logger.Logger

	// now is swappable so tests can pin the date path.
	now func() time.Time
}

func NewOrchestrator(cfg *config.PipelineConfig, runner Runner, scheduler *Scheduler, status StatusSink, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		validator: NewValidator(cfg),
		prober:    NewProber(runner, time.Duration(cfg.ProbeTimeoutSec)*time.Second),
		planner:   NewPlanner(cfg.CRF, cfg.Preset),
		encoder: NewEncoder(runner, log,
			time.Duration(cfg.EncodeTimeoutSec)*time.Second,
			time.Duration(cfg.ThumbnailTimeoutSec)*time.Second,
			cfg.ThumbnailWidth,
		),
		scheduler: scheduler,
		status:    status,
		logger:    log,
		now:       time.Now,
	}
}

// Run consumes req.Body exactly once and either returns a committed
// VideoAsset or a typed error with the filesystem left untouched.
func (o *Orchestrator) Run(ctx context.Context, job *models.EncodeJob, req *models.UploadRequest) (*models.VideoAsset, error) {
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	o.transition(ctx, job, models.JobReceived)

	if err := o.validator.ValidateUpload(req.FileName, req.FileSize, req.ContentType); err != nil {
		return nil, o.fail(ctx, job, "", err)
	}
	o.transition(ctx, job, models.JobValidated)

	scratchDir := filepath.Join(o.cfg.UploadDir, "scratch", job.JobID)
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, o.fail(ctx, job, "", fmt.Errorf("create scratch dir: %w", err))
	}

	srcPath, err := o.persistUpload(scratchDir, req)
	if err != nil {
		return nil, o.fail(ctx, job, scratchDir, err)
	}
	job.SourcePath = srcPath

	// Per-subprocess timeouts still apply; this bounds the whole job.
	ctx, cancel := context.WithTimeout(ctx, o.jobDeadline())
	defer cancel()

	meta, err := o.prober.Probe(ctx, srcPath)
	if err != nil {
		return nil, o.fail(ctx, job, scratchDir, err)
	}
	job.Metadata = meta
	o.transition(ctx, job, models.JobProbed)

	if err := o.validator.ValidateDuration(meta); err != nil {
		return nil, o.fail(ctx, job, scratchDir, err)
	}

	job.Plan = o.planner.Plan(meta)
	o.transition(ctx, job, models.JobPlanned)

	handle, err := o.scheduler.Submit(ctx, job.JobID, func(jobCtx context.Context) (*models.VideoAsset, error) {
		// Recorded from the worker, so a rejected submission never
		// reports an encoding job and later state writes stay ordered.
		o.transition(jobCtx, job, models.JobEncoding)
		return o.runEncodeStage(jobCtx, job, scratchDir, req)
	})
	if err != nil {
		return nil, o.fail(ctx, job, scratchDir, err)
	}

	asset, err := handle.Await(ctx)
	if err != nil {
		return nil, o.fail(ctx, job, scratchDir, err)
	}

	o.transition(ctx, job, models.JobCommitted)
	job.CompletedAt = o.now()
	o.removeScratch(scratchDir)
	return asset, nil
}

// runEncodeStage executes inside a scheduler slot: encode, derive the
// thumbnail (non-fatal), re-probe the output and commit atomically.
func (o *Orchestrator) runEncodeStage(ctx context.Context, job *models.EncodeJob, scratchDir string, req *models.UploadRequest) (*models.VideoAsset, error) {
	encodedScratch := filepath.Join(scratchDir, "encoded.mp4")
	if err := o.encoder.Encode(ctx, job.SourcePath, encodedScratch, job.Plan); err != nil {
		return nil, err
	}
	o.transition(ctx, job, models.JobEncoded)

	o.transition(ctx, job, models.JobThumbnailPending)
	thumbScratch := filepath.Join(scratchDir, "thumb.jpg")
	haveThumb := true
	if err := o.encoder.Thumbnail(ctx, encodedScratch, thumbScratch); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		o.logger.Warnf("job %s: %v, committing without thumbnail", job.JobID, err)
		haveThumb = false
	}

	finalMeta, err := o.prober.Probe(ctx, encodedScratch)
	if err != nil {
		return nil, err
	}

	return o.commit(job, req, encodedScratch, thumbScratch, haveThumb, finalMeta)
}

// commit promotes scratch artifacts to their public paths. The video
// rename is the commit point; a thumbnail promotion failure after it
// degrades to a thumbnail-less asset rather than rolling back.
func (o *Orchestrator) commit(job *models.EncodeJob, req *models.UploadRequest, encodedScratch, thumbScratch string, haveThumb bool, finalMeta models.MediaMetadata) (*models.VideoAsset, error) {
	datePath := o.now().Format("2006/01/02")
	videoRel := datePath + "/" + job.JobID + ".mp4"
	thumbRel := datePath + "/" + job.JobID + "_thumb.jpg"

	videoAbs := filepath.Join(o.cfg.UploadDir, "videos", filepath.FromSlash(videoRel))
	if err := os.MkdirAll(filepath.Dir(videoAbs), 0o755); err != nil {
		return nil, fmt.Errorf("create videos dir: %w", err)
	}
	if err := os.Rename(encodedScratch, videoAbs); err != nil {
		return nil, fmt.Errorf("commit video: %w", err)
	}

	thumbnailPath := ""
	if haveThumb {
		thumbAbs := filepath.Join(o.cfg.UploadDir, "thumbnails", filepath.FromSlash(thumbRel))
		if err := os.MkdirAll(filepath.Dir(thumbAbs), 0o755); err == nil {
			err = os.Rename(thumbScratch, thumbAbs)
			if err == nil {
				thumbnailPath = "/thumbnails/" + thumbRel
			}
		}
		if thumbnailPath == "" {
			o.logger.Warnf("job %s: thumbnail promotion failed, committing without thumbnail", job.JobID)
		}
	}

	return &models.VideoAsset{
		AssetID:         uuid.New(),
		UserID:          req.UserID,
		FileName:        req.FileName,
		VideoPath:       "/videos/" + videoRel,
		ThumbnailPath:   thumbnailPath,
		Width:           finalMeta.Width,
		Height:          finalMeta.Height,
		DurationSeconds: finalMeta.Duration,
		FileSizeBytes:   finalMeta.FileSizeBytes,
		CreatedAt:       o.now(),
	}, nil
}

// persistUpload drains the read-once body into the job's scratch dir
// and cross-checks the declared size.
func (o *Orchestrator) persistUpload(scratchDir string, req *models.UploadRequest) (string, error) {
	srcPath := filepath.Join(scratchDir, "source."+ExtensionOf(req.FileName))
	dst, err := os.Create(srcPath)
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}

	// The copy is bounded so an under-declaring client cannot fill the
	// disk; one extra byte distinguishes "at the bound" from "over it".
	maxBytes := req.FileSize + declaredSizeTolerance
	written, err := io.Copy(dst, io.LimitReader(req.Body, maxBytes+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("persist upload: %w", err)
	}

	if written > maxBytes {
		return "", validationErrorf("upload stream exceeds the declared %d bytes", req.FileSize)
	}
	if diff := req.FileSize - written; diff > declaredSizeTolerance {
		return "", validationErrorf("declared size %d does not match received %d bytes", req.FileSize, written)
	}
	return srcPath, nil
}

func (o *Orchestrator) jobDeadline() time.Duration {
	total := 2*o.cfg.ProbeTimeoutSec + o.cfg.EncodeTimeoutSec + o.cfg.ThumbnailTimeoutSec
	return time.Duration(total) * time.Second
}

func (o *Orchestrator) transition(ctx context.Context, job *models.EncodeJob, state models.JobState) {
	job.State = state
	if o.status != nil {
		if err := o.status.SetJobStatus(ctx, job.JobID, state); err != nil {
			o.logger.Warnf("job %s: status update to %s failed: %v", job.JobID, state, err)
		}
	}
}

// fail records the terminal state and removes every artifact the job
// created. This is the compensating-action guarantee: no orphaned
// files survive a failed job.
func (o *Orchestrator) fail(ctx context.Context, job *models.EncodeJob, scratchDir string, err error) error {
	job.Error = err.Error()
	job.CompletedAt = o.now()
	o.transition(ctx, job, models.JobFailed)
	if scratchDir != "" {
		o.removeScratch(scratchDir)
	}
	o.logger.Errorf("job %s failed in pipeline: %v", job.JobID, err)
	return err
}

func (o *Orchestrator) removeScratch(scratchDir string) {
	if err := os.RemoveAll(scratchDir); err != nil {
		o.logger.Errorf("cleanup of %s failed: %v", filepath.Base(scratchDir), err)
	}
}
