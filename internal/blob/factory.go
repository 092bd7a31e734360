package blob

import (
	"context"
	"fmt"

	"ecodcluster/internal/config"
	"ecodcluster/internal/infra/blob/fs"
	memorystore "ecodcluster/internal/infra/blob/memory"
	infraS3 "ecodcluster/internal/infra/blob/s3"
)

// Open selects a Store for cfg. publicURL, when set, is the base URL the fs
// driver uses for download links.
//
//	fs     (default) directory cfg.Root
//	s3     bucket cfg.Bucket, optional endpoint/path-style for MinIO
//	memory process memory
func Open(ctx context.Context, cfg config.Blob, publicURL string) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(cfg.Root, publicURL)
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			PathStyle:       cfg.PathStyle,
			AccessKeyID:     cfg.AccessKey,
			SecretAccessKey: cfg.SecretKey,
		})
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// S3Config re-exports the infra S3 configuration type.
type S3Config = infraS3.Config

// NewS3 constructs an S3-backed Store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return infraS3.New(ctx, cfg)
}

// NewMockS3ForTests exposes the in-memory S3 transport mock for cross-package tests.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }

// NewFilesystem constructs a filesystem-backed Store rooted at root.
func NewFilesystem(root, publicURL string) (Store, error) {
	return fs.New(root, publicURL)
}

// NewMemory returns an in-memory Store.
func NewMemory() Store { return memorystore.New() }
