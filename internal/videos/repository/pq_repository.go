package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/salmlabs/video-pipeline/internal/models"
	"github.com/salmlabs/video-pipeline/internal/videos"
	"github.com/salmlabs/video-pipeline/pkg/utils"
)

type assetRepo struct {
	db *sqlx.DB
}

func NewAssetRepo(db *sqlx.DB) videos.Repository {
	return &assetRepo{db: db}
}

func (r *assetRepo) CreateAsset(ctx context.Context, asset *models.VideoAsset) (*models.VideoAsset, error) {
	created := &models.VideoAsset{}
	if err := r.db.QueryRowxContext(
		ctx,
		createAssetQuery,
		asset.UserID,
		asset.FileName,
		asset.VideoPath,
		asset.ThumbnailPath,
		asset.Width,
		asset.Height,
		asset.DurationSeconds,
		asset.FileSizeBytes,
	).StructScan(created); err != nil {
		return nil, errors.Wrap(err, "assetRepo.CreateAsset.StructScan")
	}
	return created, nil
}

func (r *assetRepo) GetAssetByID(ctx context.Context, assetID uuid.UUID) (*models.VideoAsset, error) {
	asset := &models.VideoAsset{}
	if err := r.db.GetContext(ctx, asset, getAssetByIDQuery, assetID); err != nil {
		return nil, errors.Wrap(err, "assetRepo.GetAssetByID.GetContext")
	}
	return asset, nil
}

func (r *assetRepo) GetAssets(ctx context.Context, userID uuid.UUID, pagination *utils.Pagination) (*models.AssetList, error) {
	var totalCount int
	if err := r.db.GetContext(ctx, &totalCount, getTotalAssetsByUserIDQuery, userID); err != nil {
		return nil, errors.Wrap(err, "assetRepo.GetAssets.TotalCount")
	}
	if totalCount == 0 {
		return &models.AssetList{
			Assets:     make([]*models.VideoAsset, 0),
			TotalCount: 0,
			Page:       pagination.GetPage(),
			PageSize:   pagination.GetSize(),
			HasMore:    false,
		}, nil
	}

	rows, err := r.db.QueryxContext(
		ctx,
		getAssetsByUserIDQuery,
		userID,
		pagination.GetOffset(),
		pagination.GetLimit(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "assetRepo.GetAssets.QueryxContext")
	}
	defer rows.Close()

	assets := make([]*models.VideoAsset, 0, pagination.GetSize())
	for rows.Next() {
		var asset models.VideoAsset
		if err = rows.StructScan(&asset); err != nil {
			return nil, errors.Wrap(err, "assetRepo.GetAssets.StructScan")
		}
		assets = append(assets, &asset)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "assetRepo.GetAssets.rows.Err")
	}

	return &models.AssetList{
		Assets:     assets,
		TotalCount: totalCount,
		Page:       pagination.GetPage(),
		PageSize:   pagination.GetSize(),
		HasMore:    utils.GetHasMore(pagination.GetPage(), totalCount, pagination.GetSize()),
	}, nil
}

func (r *assetRepo) DeleteAsset(ctx context.Context, userID, assetID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, deleteAssetQuery, assetID, userID)
	if err != nil {
		return errors.Wrap(err, "assetRepo.DeleteAsset.ExecContext")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "assetRepo.DeleteAsset.RowsAffected")
	}
	if affected == 0 {
		return errors.New("asset not found")
	}
	return nil
}
