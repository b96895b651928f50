package storage

import (
	"context"
	"fmt"

	"github.com/atvirokodosprendimai/inventory/internal/config"
	"github.com/atvirokodosprendimai/inventory/internal/domain"
	"go.uber.org/zap"
)

// New builds the blob store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (domain.BlobStore, error) {
	switch cfg.Driver {
	case "", "local":
		log.Info("attachment store", zap.String("driver", "local"), zap.String("path", cfg.Local.Path))
		return NewFileStore(cfg.Local.Path)
	case "s3":
		log.Info("attachment store", zap.String("driver", "s3"), zap.String("bucket", cfg.S3.Bucket))
		return NewS3Store(ctx, cfg.S3, WithLogger(log.Named("s3")))
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
