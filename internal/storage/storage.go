// Package storage defines the object storage used for mosque images.
//
// Backends register themselves with the factory from an init() function in
// their own package:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (storage.Storage, error) {
//	        return NewMyBackend(cfg)
//	    })
//	}
//
// cmd/server blank-imports every backend so the configured one can be
// selected by name.
package storage

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"time"
)

// ErrNotFound is returned (possibly wrapped) when an object does not exist.
var ErrNotFound = errors.New("object not found")

// Storage is an object store keyed by slash-separated paths.
type Storage interface {
	// Upload stores the object and returns its size and SHA256 checksum.
	Upload(ctx context.Context, path string, reader io.Reader, size int64) (*UploadResult, error)

	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete is idempotent: deleting a missing object is not an error.
	Delete(ctx context.Context, path string) error

	// GetURL returns a URL clients can fetch the object from. Signed URLs
	// expire after ttl; public and CDN URLs ignore it.
	GetURL(ctx context.Context, path string, ttl time.Duration) (string, error)

	Exists(ctx context.Context, path string) (bool, error)

	GetMetadata(ctx context.Context, path string) (*FileMetadata, error)
}

// UploadResult describes a stored object.
type UploadResult struct {
	Path     string
	Size     int64
	Checksum string
}

// FileMetadata describes an object without its contents.
type FileMetadata struct {
	Path         string
	Size         int64
	Checksum     string
	ContentType  string
	LastModified time.Time
}

// ContentTypeFor guesses a MIME type from the object's extension.
func ContentTypeFor(p string) string {
	if ct := mime.TypeByExtension(path.Ext(p)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
