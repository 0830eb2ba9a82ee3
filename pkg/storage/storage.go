// Package storage abstracts where run data lives: an S3-compatible
// bucket or a local directory tree with the same partitioned layout.
package storage

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"

	"github.com/querybench/querybench/pkg/config"
	"github.com/sirupsen/logrus"
)

// Reader provides read access to run data. Implementations return
// (nil, nil) for files that do not exist so callers can distinguish
// absence from failure.
type Reader interface {
	// ListDirs returns the immediate child directory names under
	// prefix, without trailing slashes.
	ListDirs(ctx context.Context, prefix string) ([]string, error)

	// GetFile reads a file. Returns (nil, nil) when it does not exist.
	GetFile(ctx context.Context, key string) ([]byte, error)
}

// Writer provides write access to run data.
type Writer interface {
	// PutFile writes data to key, creating intermediate structure as
	// needed.
	PutFile(ctx context.Context, key string, data []byte) error

	// Preflight verifies the backend is reachable and writable. It
	// writes a small test object to fail fast on misconfiguration.
	Preflight(ctx context.Context) error

	// UploadDir uploads every file under localDir to keyPrefix,
	// preserving the relative layout. Returns the file count.
	UploadDir(ctx context.Context, localDir, keyPrefix string) (int, error)
}

// Store combines read and write access to one backend.
type Store interface {
	Reader
	Writer
}

// New creates the Store the configuration selects.
func New(log logrus.FieldLogger, cfg *config.StorageConfig) (Store, error) {
	switch {
	case cfg.S3 != nil:
		return NewS3Store(log, cfg.S3)
	case cfg.Local != nil:
		return NewLocalStore(log, cfg.Local), nil
	default:
		return nil, fmt.Errorf("no storage backend configured")
	}
}

// detectContentType returns a MIME type based on file extension.
func detectContentType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return "application/octet-stream"
	}

	ct := mime.TypeByExtension(ext)
	if ct == "" {
		return "application/octet-stream"
	}

	return ct
}
