package upload

import (
	"context"
	"fmt"

	"github.com/mitesh006/Code-duel-backend/internal/config"
)

// Builds the retrying uploader for the configured archive kind. Returns nil for "none".
func FromConfig(ctx context.Context, cfg *config.ArchiveConfig) (*RetryUploader, error) {
	switch cfg.Kind {
	case config.ArchiveKindNone, "":
		return nil, nil
	case config.ArchiveKindS3:
		u, err := NewMinioUploader(
			cfg.S3.Endpoint,
			cfg.S3.AccessKeyID,
			cfg.S3.SecretAccessKey,
			!cfg.S3.Insecure,
			cfg.S3.BucketName,
		)
		if err != nil {
			return nil, err
		}
		if err := u.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return NewRetryUploader(u), nil
	case config.ArchiveKindAzure:
		u, err := NewAzureUploader(
			cfg.Azure.AccountName,
			cfg.Azure.AccountKey,
			cfg.Azure.ServiceURL,
			cfg.Azure.Container,
		)
		if err != nil {
			return nil, err
		}
		if err := u.EnsureContainer(ctx); err != nil {
			return nil, err
		}
		return NewRetryUploader(u), nil
	default:
		return nil, fmt.Errorf("unknown archive kind %q", cfg.Kind)
	}
}
