// Package storage persists reconciliation reports.
package storage

import (
	"context"
	"io"
)

// ReportStore is the minimal object store the reconciler needs.
type ReportStore interface {
	// Put stores the object under key, overwriting any previous version.
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
}

// Config holds S3 connection settings. Endpoint is set for MinIO or any
// other S3-compatible store.
type Config struct {
	Region    string
	Bucket    string
	Endpoint  string
	AccessKey string
	SecretKey string
}
