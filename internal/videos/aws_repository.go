package videos

import "context"

type AWSRepository interface {
	UploadFile(ctx context.Context, bucket, key, localPath, contentType string) error
	DeleteFile(ctx context.Context, bucket, key string) error
}
