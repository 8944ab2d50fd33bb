package interfaces

import "context"

type StorageService interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	GetPublicURL(key string) string
	// Pointer returns the durable reference stored on an attachment row.
	Pointer(key string) string
	ServiceName() string
	BucketName() string
}
