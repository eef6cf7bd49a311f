package videos

import (
	"context"

	"github.com/salmlabs/video-pipeline/internal/models"
)

type RedisRepository interface {
	SetJobStatus(ctx context.Context, jobID string, state models.JobState) error
	GetJobStatus(ctx context.Context, jobID string) (models.JobState, error)
}
