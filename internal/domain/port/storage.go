package port

import (
	"context"
	"io"
)

type ClipStorage interface {
	DownloadClip(ctx context.Context, objectKey string, destPath string) error
	UploadOutput(ctx context.Context, objectKey string, reader io.Reader, size int64) error
}
