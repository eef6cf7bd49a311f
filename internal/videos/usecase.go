package videos

import (
	"context"

	"github.com/google/uuid"
	"github.com/salmlabs/video-pipeline/internal/models"
	"github.com/salmlabs/video-pipeline/pkg/utils"
)

type UseCase interface {
	UploadVideo(ctx context.Context, req *models.UploadRequest) (*models.VideoAsset, error)
	GetAsset(ctx context.Context, assetID uuid.UUID) (*models.VideoAsset, error)
	ListAssets(ctx context.Context, userID uuid.UUID, pagination *utils.Pagination) (*models.AssetList, error)
	DeleteAsset(ctx context.Context, userID, assetID uuid.UUID) error
	GetJobStatus(ctx context.Context, jobID string) (models.JobState, error)
}
