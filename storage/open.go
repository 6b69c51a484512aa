package storage

import (
	"context"
	"fmt"

	"github.com/TheManchineel/titilda-music/config"
)

// Open returns the blob store selected by cfg.BlobBackend.
func Open(ctx context.Context, cfg *config.Config) (BlobStore, error) {
	switch cfg.BlobBackend {
	case "minio":
		return NewMinioBlobStore(ctx, cfg)
	case "local", "":
		return NewLocalBlobStore(cfg.BlobDir)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}
