package repository

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"github.com/salmlabs/video-pipeline/internal/videos"
)

type awsRepository struct {
	s3Client *s3.Client
}

func NewAwsRepository(s3Client *s3.Client) videos.AWSRepository {
	return &awsRepository{s3Client: s3Client}
}

// UploadFile mirrors a committed local artifact into the asset bucket.
func (r *awsRepository) UploadFile(ctx context.Context, bucket, key, localPath, contentType string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return errors.Wrap(err, "awsRepository.UploadFile.Open")
	}
	defer file.Close()

	_, err = r.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return errors.Wrap(err, "awsRepository.UploadFile.PutObject")
	}
	return nil
}

func (r *awsRepository) DeleteFile(ctx context.Context, bucket, key string) error {
	_, err := r.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrap(err, "awsRepository.DeleteFile.DeleteObject")
	}
	return nil
}
