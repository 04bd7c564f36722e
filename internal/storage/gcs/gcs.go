// Package gcs stores mosque images in Google Cloud Storage. Credentials come
// from a service account key file or Application Default Credentials; the
// endpoint can point at an emulator such as fake-gcs-server.
package gcs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	appconfig "github.com/muazhazali/lepakmasjid/internal/config"
	appstorage "github.com/muazhazali/lepakmasjid/internal/storage"
)

const checksumKey = "sha256"

func init() {
	appstorage.Register("gcs", func(cfg *appconfig.Config) (appstorage.Storage, error) {
		return New(&cfg.Storage.GCS, cfg.Storage.CacheControl)
	})
}

// GCSStorage implements storage.Storage on a single bucket.
type GCSStorage struct {
	client       *storage.Client
	bucket       string
	publicURL    string
	cacheControl string
}

func New(cfg *appconfig.GCSStorageConfig, cacheControl string) (*GCSStorage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.Endpoint != "":
		// Emulators do not check credentials.
		opts = append(opts, option.WithoutAuthentication())
	}

	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSStorage{
		client:       client,
		bucket:       cfg.Bucket,
		publicURL:    strings.TrimRight(cfg.PublicURL, "/"),
		cacheControl: cacheControl,
	}, nil
}

func (s *GCSStorage) Close() error {
	return s.client.Close()
}

func (s *GCSStorage) object(path string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(path)
}

func (s *GCSStorage) Upload(ctx context.Context, path string, reader io.Reader, size int64) (*appstorage.UploadResult, error) {
	w := s.object(path).NewWriter(ctx)
	w.ContentType = appstorage.ContentTypeFor(path)
	w.CacheControl = s.cacheControl

	// The checksum is only known once the body is read, so it goes in a
	// metadata update after the write.
	h := sha256.New()
	written, err := io.Copy(w, io.TeeReader(reader, h))
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish GCS upload: %w", err)
	}
	checksum := hex.EncodeToString(h.Sum(nil))
	if _, err := s.object(path).Update(ctx, storage.ObjectAttrsToUpdate{
		Metadata: map[string]string{checksumKey: checksum},
	}); err != nil {
		return nil, fmt.Errorf("failed to record checksum: %w", err)
	}
	return &appstorage.UploadResult{Path: path, Size: written, Checksum: checksum}, nil
}

func (s *GCSStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	r, err := s.object(path).NewReader(ctx)
	if err != nil {
		return nil, wrap(path, err)
	}
	return r, nil
}

func (s *GCSStorage) Delete(ctx context.Context, path string) error {
	if err := s.object(path).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete from GCS: %w", err)
	}
	return nil
}

// GetURL returns publicURL/path when configured, otherwise a V4 signed URL.
// Signing needs a service account key or signBlob permission.
func (s *GCSStorage) GetURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	if s.publicURL != "" {
		return s.publicURL + "/" + path, nil
	}
	if _, err := s.GetMetadata(ctx, path); err != nil {
		return "", err
	}
	u, err := s.client.Bucket(s.bucket).SignedURL(path, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}
	return u, nil
}

func (s *GCSStorage) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.object(path).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}

func (s *GCSStorage) GetMetadata(ctx context.Context, path string) (*appstorage.FileMetadata, error) {
	attrs, err := s.object(path).Attrs(ctx)
	if err != nil {
		return nil, wrap(path, err)
	}
	return &appstorage.FileMetadata{
		Path:         path,
		Size:         attrs.Size,
		Checksum:     attrs.Metadata[checksumKey],
		ContentType:  attrs.ContentType,
		LastModified: attrs.Updated,
	}, nil
}

func wrap(path string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: %s", appstorage.ErrNotFound, path)
	}
	return fmt.Errorf("GCS %s: %w", path, err)
}
