// Package local stores mosque images on the local filesystem. Objects are
// served back through the API's /api/v1/files route, so this backend suits
// development and single-node deployments.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/muazhazali/lepakmasjid/internal/config"
	"github.com/muazhazali/lepakmasjid/internal/storage"
	"github.com/muazhazali/lepakmasjid/pkg/checksum"
)

// FilesRoute is where the API serves objects from this backend.
const FilesRoute = "/api/v1/files/"

func init() {
	storage.Register("local", func(cfg *config.Config) (storage.Storage, error) {
		return New(&cfg.Storage.Local, cfg.Server.BaseURL)
	})
}

// LocalStorage keeps objects under a base directory.
type LocalStorage struct {
	basePath string
	baseURL  string
}

// New creates the base directory if needed.
func New(cfg *config.LocalStorageConfig, serverBaseURL string) (*LocalStorage, error) {
	if cfg.BasePath == "" {
		return nil, errors.New("local storage base_path is required")
	}
	base, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage directory: %w", err)
	}
	if err := os.MkdirAll(base, 0750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: base, baseURL: strings.TrimRight(serverBaseURL, "/")}, nil
}

// resolve maps an object path to a file under basePath, refusing anything
// that would escape it.
func (s *LocalStorage) resolve(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("invalid object path %q", p)
	}
	full := filepath.Join(s.basePath, filepath.FromSlash(p))
	rel, err := filepath.Rel(s.basePath, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("invalid object path %q", p)
	}
	return full, nil
}

func (s *LocalStorage) Upload(ctx context.Context, p string, reader io.Reader, size int64) (*storage.UploadResult, error) {
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0750); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a temp file first so readers never see a partial image.
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, sum, err := checksum.Copy(tmp, reader)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return nil, fmt.Errorf("failed to move file into place: %w", err)
	}

	return &storage.UploadResult{Path: p, Size: written, Checksum: sum}, nil
}

func (s *LocalStorage) Download(ctx context.Context, p string) (io.ReadCloser, error) {
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, p)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Delete removes the object and any directories it leaves empty.
func (s *LocalStorage) Delete(ctx context.Context, p string) error {
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	for dir := filepath.Dir(full); dir != s.basePath; dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break
		}
	}
	return nil
}

// GetURL points at the API's file route. ttl is ignored.
func (s *LocalStorage) GetURL(ctx context.Context, p string, ttl time.Duration) (string, error) {
	ok, err := s.Exists(ctx, p)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, p)
	}
	return s.baseURL + FilesRoute + p, nil
}

func (s *LocalStorage) Exists(ctx context.Context, p string) (bool, error) {
	full, err := s.resolve(p)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

func (s *LocalStorage) GetMetadata(ctx context.Context, p string) (*storage.FileMetadata, error) {
	rc, err := s.Download(ctx, p)
	if err != nil {
		return nil, err
	}
	f := rc.(*os.File)
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file metadata: %w", err)
	}
	sum, err := checksum.Calculate(f)
	if err != nil {
		return nil, err
	}
	return &storage.FileMetadata{
		Path:         p,
		Size:         info.Size(),
		Checksum:     sum,
		ContentType:  storage.ContentTypeFor(p),
		LastModified: info.ModTime(),
	}, nil
}
