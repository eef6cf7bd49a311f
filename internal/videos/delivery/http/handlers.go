package http

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/salmlabs/video-pipeline/internal/models"
	"github.com/salmlabs/video-pipeline/internal/pipeline"
	"github.com/salmlabs/video-pipeline/internal/videos"
	"github.com/salmlabs/video-pipeline/pkg/logger"
	"github.com/salmlabs/video-pipeline/pkg/utils"
)

type videoHandlers struct {
	videoUC videos.UseCase
	logger  logger.Logger
}

func NewVideoHandlers(videoUC videos.UseCase, log logger.Logger) videos.Handlers {
	return &videoHandlers{
		videoUC: videoUC,
		logger:  log,
	}
}

func (h *videoHandlers) UploadVideo() echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := utils.GetUserIDFromRequest(c)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
		}

		fileHeader, err := c.FormFile("video")
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing video file"})
		}
		src, err := fileHeader.Open()
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable video file"})
		}
		defer src.Close()

		req := &models.UploadRequest{
			Body:        src,
			FileName:    fileHeader.Filename,
			FileSize:    fileHeader.Size,
			ContentType: fileHeader.Header.Get("Content-Type"),
			UserID:      userID,
		}

		asset, err := h.videoUC.UploadVideo(c.Request().Context(), req)
		if err != nil {
			return h.errorResponse(c, err)
		}
		return c.JSON(http.StatusCreated, asset)
	}
}

func (h *videoHandlers) GetAssetByID() echo.HandlerFunc {
	return func(c echo.Context) error {
		assetID, err := uuid.Parse(c.Param("asset_id"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid asset id"})
		}
		asset, err := h.videoUC.GetAsset(c.Request().Context(), assetID)
		if err != nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "asset not found"})
		}
		return c.JSON(http.StatusOK, asset)
	}
}

func (h *videoHandlers) ListAssets() echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := utils.GetUserIDFromRequest(c)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
		}
		pagination, err := utils.GetPaginationFromCtx(c)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		assets, err := h.videoUC.ListAssets(c.Request().Context(), userID, pagination)
		if err != nil {
			return h.errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, assets)
	}
}

func (h *videoHandlers) DeleteAsset() echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := utils.GetUserIDFromRequest(c)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
		}
		assetID, err := uuid.Parse(c.Param("asset_id"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid asset id"})
		}
		if err := h.videoUC.DeleteAsset(c.Request().Context(), userID, assetID); err != nil {
			return h.errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, map[string]string{"message": "asset deleted"})
	}
}

func (h *videoHandlers) GetJobStatus() echo.HandlerFunc {
	return func(c echo.Context) error {
		state, err := h.videoUC.GetJobStatus(c.Request().Context(), c.Param("job_id"))
		if err != nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
		}
		return c.JSON(http.StatusOK, map[string]string{"state": string(state)})
	}
}

// errorResponse maps pipeline error classes to status codes.
// Validation failures are client-correctable and reported verbatim;
// tool failures come back as a generic message so internal paths and
// commands never leak to the caller.
func (h *videoHandlers) errorResponse(c echo.Context, err error) error {
	var validationErr *pipeline.ValidationError
	if errors.As(err, &validationErr) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": validationErr.Reason})
	}
	if errors.Is(err, pipeline.ErrTooManyJobs) {
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "encoder is busy, retry later"})
	}
	h.logger.Errorf("request %s: %v", utils.GetRequestID(c), err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "video processing failed"})
}
