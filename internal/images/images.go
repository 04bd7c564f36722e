// Package images validates uploaded mosque photos, normalises them to bounded
// JPEGs and keeps them in the configured storage backend.
package images

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif" // register decoders for image.Decode
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"

	"github.com/muazhazali/lepakmasjid/internal/apperrors"
	"github.com/muazhazali/lepakmasjid/internal/config"
	"github.com/muazhazali/lepakmasjid/internal/storage"
)

const (
	defaultMaxBytes     = 5 * 1024 * 1024
	defaultMaxDimension = 1600
	defaultQuality      = 85
	objectPrefix        = "mosques/"
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// Processor turns an upload into a normalised JPEG.
type Processor struct {
	MaxBytes     int64
	MaxDimension int
	Quality      int
}

// NewProcessor applies defaults to unset limits.
func NewProcessor(cfg config.ImagesConfig) Processor {
	p := Processor{MaxBytes: cfg.MaxUploadBytes, MaxDimension: cfg.MaxDimension, Quality: cfg.JPEGQuality}
	if p.MaxBytes <= 0 {
		p.MaxBytes = defaultMaxBytes
	}
	if p.MaxDimension <= 0 {
		p.MaxDimension = defaultMaxDimension
	}
	if p.Quality <= 0 || p.Quality > 100 {
		p.Quality = defaultQuality
	}
	return p
}

// Normalize reads at most MaxBytes, checks the content type by sniffing,
// applies EXIF orientation, fits the image inside MaxDimension and re-encodes
// it as JPEG. Rejections are InvalidParameter errors.
func (p Processor) Normalize(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, p.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, apperrors.InvalidParameter("Image file is empty")
	}
	if int64(len(data)) > p.MaxBytes {
		return nil, apperrors.InvalidParameter(fmt.Sprintf("Image must be %dMB or smaller", p.MaxBytes/(1024*1024)))
	}

	ct := http.DetectContentType(data)
	if !allowedTypes[ct] {
		return nil, apperrors.InvalidParameter("Image must be a JPEG, PNG, WebP or GIF file")
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidParameter, "Image could not be read", err)
	}
	img = p.fit(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.Quality)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func (p Processor) fit(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= p.MaxDimension && b.Dy() <= p.MaxDimension {
		return img
	}
	return imaging.Fit(img, p.MaxDimension, p.MaxDimension, imaging.Lanczos)
}

// Store keeps normalised mosque images in a storage backend. Stored
// references look like mosques/<mosque id>/<uuid>.jpg.
type Store struct {
	backend   storage.Storage
	processor Processor
	logger    *slog.Logger
}

func NewStore(backend storage.Storage, processor Processor, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, processor: processor, logger: logger}
}

// Save normalises r and uploads it for mosqueID, returning the reference to
// keep on the record.
func (s *Store) Save(ctx context.Context, mosqueID string, r io.Reader) (string, error) {
	data, err := s.processor.Normalize(r)
	if err != nil {
		return "", err
	}
	ref := path.Join(objectPrefix, mosqueID, uuid.NewString()+".jpg")
	if _, err := s.backend.Upload(ctx, ref, bytes.NewReader(data), int64(len(data))); err != nil {
		s.logger.ErrorContext(ctx, "failed to store mosque image", "mosque_id", mosqueID, "error", err)
		return "", apperrors.Wrap(apperrors.ErrFetchFailed, "Image could not be stored. Please try again later.", err)
	}
	s.logger.InfoContext(ctx, "stored mosque image", "mosque_id", mosqueID, "image", ref, "bytes", len(data))
	return ref, nil
}

// Delete removes a stored image. References outside the mosque image prefix
// are refused.
func (s *Store) Delete(ctx context.Context, ref string) error {
	if !IsImageRef(ref) {
		return fmt.Errorf("refusing to delete %q: not a mosque image", ref)
	}
	return s.backend.Delete(ctx, ref)
}

// URL returns a URL the client can fetch ref from.
func (s *Store) URL(ctx context.Context, ref string, ttl time.Duration) (string, error) {
	if !IsImageRef(ref) {
		return "", apperrors.NotFound("Image not found")
	}
	u, err := s.backend.GetURL(ctx, ref, ttl)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrFetchFailed, "Image is unavailable.", err)
	}
	return u, nil
}

// IsImageRef reports whether ref is a clean reference under the mosque image
// prefix.
func IsImageRef(ref string) bool {
	return strings.HasPrefix(ref, objectPrefix) && path.Clean(ref) == ref && !strings.Contains(ref, "..")
}
