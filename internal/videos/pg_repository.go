package videos

import (
	"context"

	"github.com/google/uuid"
	"github.com/salmlabs/video-pipeline/internal/models"
	"github.com/salmlabs/video-pipeline/pkg/utils"
)

type Repository interface {
	CreateAsset(ctx context.Context, asset *models.VideoAsset) (*models.VideoAsset, error)
	GetAssetByID(ctx context.Context, assetID uuid.UUID) (*models.VideoAsset, error)
	GetAssets(ctx context.Context, userID uuid.UUID, pagination *utils.Pagination) (*models.AssetList, error)
	DeleteAsset(ctx context.Context, userID, assetID uuid.UUID) error
}
