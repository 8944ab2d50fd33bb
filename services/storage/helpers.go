package storage

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"

	"github.com/customeros/bccstack/interfaces"
	"github.com/customeros/bccstack/services/storage/aws_client"
)

const (
	ProviderR2     = "r2"
	ProviderS3     = "s3"
	ProviderMemory = "memory"
)

type Config struct {
	Provider        string `env:"STORAGE_PROVIDER" envDefault:"r2"`
	AccountID       string `env:"CLOUDFLARE_R2_ACCOUNT_ID"`
	AWSRegion       string `env:"AWS_REGION" envDefault:"us-east-1"`
	AccessKeyID     string `env:"STORAGE_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"STORAGE_ACCESS_KEY_SECRET"`
	BucketName      string `env:"BUCKET_NAME_INBOUND_ATTACHMENT" envDefault:"inbound-attachments"`
	CDNDomain       string `env:"STORAGE_CDN_DOMAIN"`
}

// NewStorageServiceFromConfig picks the backend named by cfg.Provider.
func NewStorageServiceFromConfig(cfg *Config) (interfaces.StorageService, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderR2:
		if cfg.AccountID == "" || cfg.AccessKeyID == "" || cfg.AccessKeySecret == "" {
			return nil, fmt.Errorf("r2 storage requires account id and access keys")
		}
		return NewR2StorageService(cfg.AccountID, cfg.AccessKeyID, cfg.AccessKeySecret, cfg.BucketName, cfg.CDNDomain), nil
	case ProviderS3:
		if cfg.AccessKeyID == "" || cfg.AccessKeySecret == "" {
			return nil, fmt.Errorf("s3 storage requires access keys")
		}
		return NewS3StorageService(cfg.AWSRegion, cfg.AccessKeyID, cfg.AccessKeySecret, cfg.BucketName, cfg.CDNDomain), nil
	case ProviderMemory:
		return NewMemoryStorageService(cfg.BucketName), nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

// NewS3StorageService creates a StorageService configured for AWS S3
func NewS3StorageService(awsRegion, accessKeyID, accessKeySecret, bucketName, cdnDomain string) interfaces.StorageService {
	s3Client := aws_client.NewS3Client(&aws.Config{
		Region:      aws.String(awsRegion),
		Credentials: credentials.NewStaticCredentials(accessKeyID, accessKeySecret, ""),
	})

	return NewStorageService(s3Client, StorageConfig{
		ServiceName: ProviderS3,
		BucketName:  bucketName,
		CDNDomain:   cdnDomain,
	})
}

// NewR2StorageService creates a StorageService configured for Cloudflare R2
func NewR2StorageService(accountID, accessKeyID, accessKeySecret, bucketName, cdnDomain string) interfaces.StorageService {
	r2Client := aws_client.NewS3Client(&aws.Config{
		Endpoint:         aws.String("https://" + accountID + ".r2.cloudflarestorage.com"),
		Region:           aws.String("auto"),
		Credentials:      credentials.NewStaticCredentials(accessKeyID, accessKeySecret, ""),
		S3ForcePathStyle: aws.Bool(true),
	})

	return NewStorageService(r2Client, StorageConfig{
		ServiceName: ProviderR2,
		BucketName:  bucketName,
		CDNDomain:   cdnDomain,
	})
}
