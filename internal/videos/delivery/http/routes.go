package http

import (
	"github.com/labstack/echo/v4"
	"github.com/salmlabs/video-pipeline/internal/videos"
)

func MapVideoRoutes(videoGroup *echo.Group, h videos.Handlers) {
	videoGroup.POST("/upload", h.UploadVideo())
	videoGroup.GET("", h.ListAssets())
	videoGroup.GET("/:asset_id", h.GetAssetByID())
	videoGroup.DELETE("/:asset_id", h.DeleteAsset())
	videoGroup.GET("/jobs/:job_id", h.GetJobStatus())
}
