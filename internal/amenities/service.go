// Package amenities manages the amenity catalog and the mosque_amenities rows
// that attach catalog or custom amenities to a mosque.
package amenities

import (
	"cmp"
	"context"
	"log/slog"
	"regexp"
	"slices"

	"github.com/muazhazali/lepakmasjid/internal/apperrors"
	"github.com/muazhazali/lepakmasjid/internal/models"
	"github.com/muazhazali/lepakmasjid/internal/recordsource"
)

const (
	catalogPerPage   = 100
	mosqueRowPerPage = recordsource.MaxPerPage
	defaultIcon      = "circle"
	invalidResponse  = "Received an invalid response from the data service."
)

var keyPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Service serves the amenity catalog and mosque amenity rows.
type Service struct {
	src    recordsource.Source
	retry  RetryPolicy
	logger *slog.Logger
}

// NewService creates a Service. A zero RetryPolicy selects DefaultRetryPolicy.
func NewService(src recordsource.Source, retry RetryPolicy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if retry == (RetryPolicy{}) {
		retry = DefaultRetryPolicy
	}
	return &Service{src: src, retry: retry, logger: logger}
}

func decodeFailed(err error) error {
	return apperrors.Wrap(apperrors.ErrFetchFailed, invalidResponse, err)
}

// List returns the catalog ordered by its order field.
func (s *Service) List(ctx context.Context) ([]models.Amenity, error) {
	res, _, err := recordsource.ListWithSortFallback(ctx, s.src, recordsource.CollectionAmenities, 1, catalogPerPage,
		recordsource.ListOptions{Sort: "order"})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch amenities", "error", err)
		return nil, apperrors.Sanitize(err)
	}
	items, err := models.DecodeAll[models.Amenity](recordsource.CollectionAmenities, res.Items)
	if err != nil {
		return nil, decodeFailed(err)
	}
	slices.SortStableFunc(items, func(a, b models.Amenity) int { return cmp.Compare(a.Order, b.Order) })
	return items, nil
}

// Get returns one catalog amenity.
func (s *Service) Get(ctx context.Context, id string) (*models.Amenity, error) {
	if !models.IsValidRecordID(id) {
		return nil, apperrors.InvalidParameter("Invalid amenity ID format")
	}
	raw, err := s.src.GetOne(ctx, recordsource.CollectionAmenities, id, recordsource.GetOptions{})
	if err != nil {
		return nil, apperrors.SanitizeNotFound(err, "Amenity not found")
	}
	a, err := models.Decode[models.Amenity](recordsource.CollectionAmenities, raw)
	if err != nil {
		return nil, decodeFailed(err)
	}
	return &a, nil
}

// CreateCustom adds a catalog amenity. Keys are lowercase snake case and unique.
func (s *Service) CreateCustom(ctx context.Context, in models.AmenityInput) (*models.Amenity, error) {
	if err := models.Validate(in); err != nil {
		return nil, apperrors.InvalidParameter(err.Error())
	}
	if !keyPattern.MatchString(in.Key) {
		return nil, apperrors.InvalidParameter("Amenity key may only contain lowercase letters, digits and underscores")
	}

	_, err := recordsource.FirstListItem(ctx, s.src, recordsource.CollectionAmenities, recordsource.Eq("key", in.Key))
	switch {
	case err == nil:
		return nil, apperrors.Conflict("An amenity with this key already exists")
	case !recordsource.IsNotFound(err):
		return nil, apperrors.Sanitize(err)
	}

	icon := in.Icon
	if icon == "" {
		icon = defaultIcon
	}
	order := 0
	if in.Order != nil {
		order = *in.Order
	}
	raw, err := s.src.Create(ctx, recordsource.CollectionAmenities, map[string]any{
		"key":      in.Key,
		"label_en": in.LabelEN,
		"label_bm": in.LabelBM,
		"icon":     icon,
		"order":    order,
	})
	if err != nil {
		return nil, apperrors.Sanitize(err)
	}
	a, err := models.Decode[models.Amenity](recordsource.CollectionAmenities, raw)
	if err != nil {
		return nil, decodeFailed(err)
	}
	return &a, nil
}

// GetByMosque returns every amenity row of a mosque with the catalog entry expanded.
func (s *Service) GetByMosque(ctx context.Context, mosqueID string) ([]models.MosqueAmenity, error) {
	if !models.IsValidRecordID(mosqueID) {
		return nil, apperrors.InvalidParameter("Invalid mosque ID format")
	}
	return listRows(ctx, s.src, mosqueID)
}

func listRows(ctx context.Context, src recordsource.Source, mosqueID string) ([]models.MosqueAmenity, error) {
	res, err := src.List(ctx, recordsource.CollectionMosqueAmenities, 1, mosqueRowPerPage, recordsource.ListOptions{
		Filter: recordsource.Eq("mosque_id", mosqueID),
		Expand: "amenity_id",
	})
	if err != nil {
		return nil, apperrors.Sanitize(err)
	}
	rows, err := models.DecodeAll[models.MosqueAmenity](recordsource.CollectionMosqueAmenities, res.Items)
	if err != nil {
		return nil, decodeFailed(err)
	}
	return rows, nil
}

// CreateMosqueAmenity attaches one catalog or custom amenity to a mosque.
func (s *Service) CreateMosqueAmenity(ctx context.Context, mosqueID string, in models.MosqueAmenityInput) (*models.MosqueAmenity, error) {
	if !models.IsValidRecordID(mosqueID) {
		return nil, apperrors.InvalidParameter("Invalid mosque ID format")
	}
	if in.AmenityID != "" && !models.IsValidRecordID(in.AmenityID) {
		return nil, apperrors.InvalidParameter("Invalid amenity ID format")
	}
	raw, err := s.src.Create(ctx, recordsource.CollectionMosqueAmenities, createBody(mosqueID, in))
	if err != nil {
		return nil, apperrors.Sanitize(err)
	}
	row, err := models.Decode[models.MosqueAmenity](recordsource.CollectionMosqueAmenities, raw)
	if err != nil {
		return nil, decodeFailed(err)
	}
	return &row, nil
}

// UpdateMosqueAmenity changes the details or verification of a row.
func (s *Service) UpdateMosqueAmenity(ctx context.Context, id string, upd models.MosqueAmenityUpdate) (*models.MosqueAmenity, error) {
	if !models.IsValidRecordID(id) {
		return nil, apperrors.InvalidParameter("Invalid mosque amenity ID format")
	}
	body := map[string]any{}
	if upd.Details != nil {
		body["details"] = upd.Details
	}
	if upd.Verified != nil {
		body["verified"] = *upd.Verified
	}
	if len(body) == 0 {
		return nil, apperrors.InvalidParameter("No changes to apply")
	}
	raw, err := s.src.Update(ctx, recordsource.CollectionMosqueAmenities, id, body)
	if err != nil {
		return nil, apperrors.SanitizeNotFound(err, "Mosque amenity not found")
	}
	row, err := models.Decode[models.MosqueAmenity](recordsource.CollectionMosqueAmenities, raw)
	if err != nil {
		return nil, decodeFailed(err)
	}
	return &row, nil
}

// DeleteMosqueAmenity removes a row.
func (s *Service) DeleteMosqueAmenity(ctx context.Context, id string) error {
	if !models.IsValidRecordID(id) {
		return apperrors.InvalidParameter("Invalid mosque amenity ID format")
	}
	if err := s.src.Delete(ctx, recordsource.CollectionMosqueAmenities, id); err != nil {
		return apperrors.SanitizeNotFound(err, "Mosque amenity not found")
	}
	return nil
}

func createBody(mosqueID string, in models.MosqueAmenityInput) map[string]any {
	details := in.Details
	if details == nil {
		details = models.Details{}
	}
	return map[string]any{
		"mosque_id":  mosqueID,
		"amenity_id": in.AmenityID,
		"details":    details,
		"verified":   in.Verified,
	}
}
