package archive

import (
	"context"
	"fmt"

	"machinecore/internal/config"
	"machinecore/internal/infra/archive/fs"
	memorystore "machinecore/internal/infra/archive/memory"
	infraS3 "machinecore/internal/infra/archive/s3"
)

// Open selects an archive Store from cfg. It returns (nil, nil) for the
// "none" driver.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.ArchiveDriver {
	case config.ArchiveNone:
		return nil, nil
	case config.ArchiveFS:
		return NewFilesystem(cfg.ArchiveFSRoot)
	case config.ArchiveMemory:
		return NewMemory(), nil
	case config.ArchiveS3:
		return NewS3(ctx, infraS3.Config{
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKey,
			SecretAccessKey: cfg.S3.SecretKey,
			SessionToken:    cfg.S3.SessionToken,
			PathStyle:       cfg.S3.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown archive driver %q", cfg.ArchiveDriver)
	}
}

// NewFilesystem constructs a filesystem-backed Store rooted at root.
func NewFilesystem(root string) (Store, error) {
	store, err := fs.New(root)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewMemory returns an in-memory Store suitable for tests.
func NewMemory() Store { return memorystore.New() }

// NewS3 constructs an S3-backed Store.
func NewS3(ctx context.Context, cfg infraS3.Config) (Store, error) {
	store, err := infraS3.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewMockS3ForTests exposes the in-memory S3 transport mock for
// cross-package tests.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
