package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/salmlabs/video-pipeline/internal/middleware"
	"github.com/salmlabs/video-pipeline/internal/pipeline"
	videoHttp "github.com/salmlabs/video-pipeline/internal/videos/delivery/http"
	videoRepository "github.com/salmlabs/video-pipeline/internal/videos/repository"
	videoUsecase "github.com/salmlabs/video-pipeline/internal/videos/usecase"
	"github.com/salmlabs/video-pipeline/pkg/utils"
)

func (s *Server) MapHandlers(e *echo.Echo) error {
	assetRepo := videoRepository.NewAssetRepo(s.db)
	redisRepo := videoRepository.NewVideoRedisRepo(s.redisClient, s.cfg.Redis.JobStatusKey)
	awsRepo := videoRepository.NewAwsRepository(s.s3Client)

	runner, err := pipeline.NewExecRunner(s.logger, "ffprobe", "ffmpeg")
	if err != nil {
		return err
	}
	orchestrator := pipeline.NewOrchestrator(&s.cfg.Pipeline, runner, s.scheduler, redisRepo, s.logger)

	videoUC := videoUsecase.NewVideoUseCase(s.cfg, assetRepo, redisRepo, awsRepo, orchestrator, s.logger)
	videoHandlers := videoHttp.NewVideoHandlers(videoUC, s.logger)

	mw := middleware.NewMiddlewareManager(s.cfg, []string{"*"}, s.logger)
	e.Use(mw.RequestLoggerMiddleware)

	v1 := e.Group("/api/v1")
	health := v1.Group("/health")
	videoGroup := v1.Group("/videos")

	videoHttp.MapVideoRoutes(videoGroup, videoHandlers)
	health.GET("", func(c echo.Context) error {
		s.logger.Infof("Health check RequestID: %s", utils.GetRequestID(c))
		return c.JSON(http.StatusOK, map[string]string{"status": "OK"})
	})
	return nil
}
