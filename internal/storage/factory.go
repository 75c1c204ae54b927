package storage

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/vaultstream/vaultstream/internal/config"
)

// New selects and constructs the configured backend.
func New(cfg *config.Config, log *zap.SugaredLogger) (Storage, error) {
	switch cfg.StorageBackend {
	case "local":
		return NewLocalBackend(cfg.LocalRoot)
	case "s3":
		return NewS3Backend(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
