// Package activities manages mosque-scoped events and announcements.
package activities

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/muazhazali/lepakmasjid/internal/apperrors"
	"github.com/muazhazali/lepakmasjid/internal/models"
	"github.com/muazhazali/lepakmasjid/internal/recordsource"
)

const (
	listPerPage     = 100
	notFoundMessage = "Activity not found"
	invalidResponse = "Received an invalid response from the data service."
)

type Service struct {
	src    recordsource.Source
	logger *slog.Logger
}

func NewService(src recordsource.Source, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{src: src, logger: logger}
}

func validateID(id, message string) error {
	if !models.IsValidRecordID(id) {
		return apperrors.InvalidParameter(message)
	}
	return nil
}

func decode(raw []byte) (*models.Activity, error) {
	a, err := models.Decode[models.Activity](recordsource.CollectionActivities, raw)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrFetchFailed, invalidResponse, err)
	}
	return &a, nil
}

// ListByMosque returns the active activities of a mosque, newest first. An
// activity without a status is active.
func (s *Service) ListByMosque(ctx context.Context, mosqueID string) ([]models.Activity, error) {
	if err := validateID(mosqueID, "Invalid mosque ID format"); err != nil {
		return nil, err
	}
	res, sorted, err := recordsource.ListWithSortFallback(ctx, s.src, recordsource.CollectionActivities, 1, listPerPage,
		recordsource.ListOptions{
			// Status is checked after decoding: records without one count as active.
			Filter: recordsource.Eq("mosque_id", mosqueID),
			Sort:   "-created",
		})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch activities", "mosque_id", mosqueID, "error", err)
		return nil, apperrors.FetchFailed(err)
	}
	items, err := models.DecodeAll[models.Activity](recordsource.CollectionActivities, res.Items)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrFetchFailed, invalidResponse, err)
	}
	items = slices.DeleteFunc(items, func(a models.Activity) bool { return !a.IsActive() })
	if !sorted {
		slices.SortStableFunc(items, func(a, b models.Activity) int {
			return cmp.Compare(b.Created.UnixMilliOrEpoch(), a.Created.UnixMilliOrEpoch())
		})
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Activity, error) {
	if err := validateID(id, "Invalid activity ID format"); err != nil {
		return nil, err
	}
	raw, err := s.src.GetOne(ctx, recordsource.CollectionActivities, id, recordsource.GetOptions{})
	if err != nil {
		return nil, apperrors.SanitizeNotFound(err, notFoundMessage)
	}
	return decode(raw)
}

// Create stores an activity; status defaults to active. createdBy may be empty.
func (s *Service) Create(ctx context.Context, in models.ActivityInput, createdBy string) (*models.Activity, error) {
	if err := models.Validate(in); err != nil {
		return nil, apperrors.InvalidParameter(err.Error())
	}
	raw, err := s.src.Create(ctx, recordsource.CollectionActivities, in.Fields(createdBy))
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create activity", "mosque_id", in.MosqueID, "error", err)
		return nil, apperrors.Sanitize(err)
	}
	return decode(raw)
}

func (s *Service) Update(ctx context.Context, id string, upd models.ActivityUpdate) (*models.Activity, error) {
	if err := validateID(id, "Invalid activity ID format"); err != nil {
		return nil, err
	}
	if err := models.Validate(upd); err != nil {
		return nil, apperrors.InvalidParameter(err.Error())
	}
	fields := upd.Fields()
	if len(fields) == 0 {
		return nil, apperrors.InvalidParameter("No changes to apply")
	}
	raw, err := s.src.Update(ctx, recordsource.CollectionActivities, id, fields)
	if err != nil {
		return nil, apperrors.SanitizeNotFound(err, notFoundMessage)
	}
	return decode(raw)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := validateID(id, "Invalid activity ID format"); err != nil {
		return err
	}
	if err := s.src.Delete(ctx, recordsource.CollectionActivities, id); err != nil {
		return apperrors.SanitizeNotFound(err, notFoundMessage)
	}
	return nil
}
