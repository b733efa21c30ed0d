package storage

import (
	"context"
	"errors"
	"io"
)

var ErrUploadsDisabled = errors.New("object storage is not configured")

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}

// noopUploader stands in when no bucket is configured: reads degrade to no
// logo URL, writes fail loudly.
type noopUploader struct{}

func NewNoopUploader() FileUploader {
	return noopUploader{}
}

func (noopUploader) Upload(context.Context, string, string, io.Reader) (*UploadResult, error) {
	return nil, ErrUploadsDisabled
}

func (noopUploader) Delete(context.Context, string) error {
	return ErrUploadsDisabled
}

func (noopUploader) GetPublicURL(string) string {
	return ""
}
