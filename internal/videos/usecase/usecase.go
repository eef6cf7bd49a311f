package usecase

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/salmlabs/video-pipeline/internal/config"
	"github.com/salmlabs/video-pipeline/internal/models"
	"github.com/salmlabs/video-pipeline/internal/pipeline"
	"github.com/salmlabs/video-pipeline/internal/videos"
	"github.com/salmlabs/video-pipeline/pkg/logger"
	"github.com/salmlabs/video-pipeline/pkg/utils"
)

type videoUC struct {
	cfg          *config.Config
	assetRepo    videos.Repository
	redisRepo    videos.RedisRepository
	awsRepo      videos.AWSRepository
	orchestrator *pipeline.Orchestrator
	logger       logger.Logger
}

func NewVideoUseCase(
	cfg *config.Config,
	assetRepo videos.Repository,
	redisRepo videos.RedisRepository,
	awsRepo videos.AWSRepository,
	orchestrator *pipeline.Orchestrator,
	log logger.Logger,
) videos.UseCase {
	return &videoUC{
		cfg:          cfg,
		assetRepo:    assetRepo,
		redisRepo:    redisRepo,
		awsRepo:      awsRepo,
		orchestrator: orchestrator,
		logger:       log,
	}
}

// UploadVideo runs one upload through the pipeline and records the
// committed asset. The call returns only after the asset triple exists
// on durable storage or every partial artifact has been removed.
func (u *videoUC) UploadVideo(ctx context.Context, req *models.UploadRequest) (*models.VideoAsset, error) {
	if err := utils.ValidateStruct(ctx, req); err != nil {
		u.logger.Errorf("UploadVideo - ValidateStruct: %v", err)
		return nil, &pipeline.ValidationError{Reason: "invalid upload request"}
	}

	job := &models.EncodeJob{
		JobID:     uuid.New().String(),
		UserID:    req.UserID.String(),
		FileName:  req.FileName,
		State:     models.JobReceived,
		StartedAt: time.Now(),
	}
	u.logger.Infof("UploadVideo - job %s accepted: file=%s size=%d", job.JobID, req.FileName, req.FileSize)

	asset, err := u.orchestrator.Run(ctx, job, req)
	if err != nil {
		return nil, err
	}

	saved, err := u.assetRepo.CreateAsset(ctx, asset)
	if err != nil {
		u.logger.Errorf("UploadVideo - CreateAsset: %v", err)
		// The files are committed; the record is the source of truth
		// for readers, so roll the files back too.
		u.removeCommittedFiles(asset)
		return nil, errors.Wrap(err, "failed to record video asset")
	}

	if u.cfg.S3.Enabled {
		u.mirrorToS3(ctx, saved)
	}

	u.logger.Infof("UploadVideo - job %s committed: asset=%s path=%s", job.JobID, saved.AssetID, saved.VideoPath)
	return saved, nil
}

func (u *videoUC) GetAsset(ctx context.Context, assetID uuid.UUID) (*models.VideoAsset, error) {
	if assetID == uuid.Nil {
		return nil, errors.New("invalid asset id: cannot be empty")
	}
	asset, err := u.assetRepo.GetAssetByID(ctx, assetID)
	if err != nil {
		u.logger.Errorf("GetAsset - GetAssetByID: %v", err)
		return nil, errors.Wrap(err, "failed to fetch asset")
	}
	return asset, nil
}

func (u *videoUC) ListAssets(ctx context.Context, userID uuid.UUID, pagination *utils.Pagination) (*models.AssetList, error) {
	if pagination == nil {
		pagination = &utils.Pagination{Page: 1, Size: 10}
	}
	if pagination.Page < 1 {
		pagination.Page = 1
	}
	if pagination.Size < 1 || pagination.Size > 100 {
		pagination.Size = 10
	}
	assets, err := u.assetRepo.GetAssets(ctx, userID, pagination)
	if err != nil {
		u.logger.Errorf("ListAssets - GetAssets: %v", err)
		return nil, errors.Wrap(err, "failed to fetch assets")
	}
	return assets, nil
}

func (u *videoUC) DeleteAsset(ctx context.Context, userID, assetID uuid.UUID) error {
	asset, err := u.assetRepo.GetAssetByID(ctx, assetID)
	if err != nil {
		return errors.Wrap(err, "failed to fetch asset")
	}
	if asset.UserID != userID {
		u.logger.Warnf("DeleteAsset - user %s is not the owner of asset %s", userID, assetID)
		return errors.New("not allowed to delete this asset")
	}
	if err := u.assetRepo.DeleteAsset(ctx, userID, assetID); err != nil {
		return errors.Wrap(err, "failed to delete asset")
	}
	u.removeCommittedFiles(asset)
	if u.cfg.S3.Enabled {
		if err := u.awsRepo.DeleteFile(ctx, u.cfg.S3.Bucket, s3KeyOf(asset.VideoPath)); err != nil {
			u.logger.Warnf("DeleteAsset - S3 delete failed for %s: %v", asset.VideoPath, err)
		}
		if asset.ThumbnailPath != "" {
			if err := u.awsRepo.DeleteFile(ctx, u.cfg.S3.Bucket, s3KeyOf(asset.ThumbnailPath)); err != nil {
				u.logger.Warnf("DeleteAsset - S3 delete failed for %s: %v", asset.ThumbnailPath, err)
			}
		}
	}
	return nil
}

func (u *videoUC) GetJobStatus(ctx context.Context, jobID string) (models.JobState, error) {
	if jobID == "" {
		return "", errors.New("invalid job id: cannot be empty")
	}
	state, err := u.redisRepo.GetJobStatus(ctx, jobID)
	if err != nil {
		return "", errors.Wrap(err, "failed to fetch job status")
	}
	return state, nil
}

// mirrorToS3 is best-effort: the local commit already happened, a
// failed mirror only degrades redundancy.
func (u *videoUC) mirrorToS3(ctx context.Context, asset *models.VideoAsset) {
	videoLocal := u.localPathOf(asset.VideoPath)
	if err := u.awsRepo.UploadFile(ctx, u.cfg.S3.Bucket, s3KeyOf(asset.VideoPath), videoLocal, "video/mp4"); err != nil {
		u.logger.Warnf("mirrorToS3 - video upload failed: %v", err)
		return
	}
	if asset.ThumbnailPath != "" {
		thumbLocal := u.localPathOf(asset.ThumbnailPath)
		if err := u.awsRepo.UploadFile(ctx, u.cfg.S3.Bucket, s3KeyOf(asset.ThumbnailPath), thumbLocal, "image/jpeg"); err != nil {
			u.logger.Warnf("mirrorToS3 - thumbnail upload failed: %v", err)
		}
	}
}

func (u *videoUC) removeCommittedFiles(asset *models.VideoAsset) {
	if err := os.Remove(u.localPathOf(asset.VideoPath)); err != nil && !os.IsNotExist(err) {
		u.logger.Warnf("failed to remove %s: %v", asset.VideoPath, err)
	}
	if asset.ThumbnailPath != "" {
		if err := os.Remove(u.localPathOf(asset.ThumbnailPath)); err != nil && !os.IsNotExist(err) {
			u.logger.Warnf("failed to remove %s: %v", asset.ThumbnailPath, err)
		}
	}
}

// localPathOf maps a public relative path ("/videos/yyyy/MM/dd/x.mp4")
// back to its location under the upload dir.
func (u *videoUC) localPathOf(publicPath string) string {
	return filepath.Join(u.cfg.Pipeline.UploadDir, filepath.FromSlash(strings.TrimPrefix(publicPath, "/")))
}

func s3KeyOf(publicPath string) string {
	return strings.TrimPrefix(publicPath, "/")
}
