package repository

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/salmlabs/video-pipeline/internal/models"
	"github.com/salmlabs/video-pipeline/internal/videos"
)

// Terminal states stay readable for a day so clients can poll after
// the upload request has returned.
const jobStatusTTL = 24 * time.Hour

type videoRedisRepo struct {
	redisClient *redis.Client
	keyPrefix   string
}

func NewVideoRedisRepo(redisClient *redis.Client, keyPrefix string) videos.RedisRepository {
	if keyPrefix == "" {
		keyPrefix = "video:job:"
	}
	return &videoRedisRepo{
		redisClient: redisClient,
		keyPrefix:   keyPrefix,
	}
}

func (v *videoRedisRepo) SetJobStatus(ctx context.Context, jobID string, state models.JobState) error {
	key := v.keyPrefix + jobID
	pipe := v.redisClient.Pipeline()
	pipe.HSet(ctx, key, "state", string(state), "updated_at", time.Now().Format(time.RFC3339))
	pipe.Expire(ctx, key, jobStatusTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "videoRedisRepo.SetJobStatus")
	}
	return nil
}

func (v *videoRedisRepo) GetJobStatus(ctx context.Context, jobID string) (models.JobState, error) {
	state, err := v.redisClient.HGet(ctx, v.keyPrefix+jobID, "state").Result()
	if err != nil {
		return "", errors.Wrap(err, "videoRedisRepo.GetJobStatus")
	}
	return models.JobState(state), nil
}
