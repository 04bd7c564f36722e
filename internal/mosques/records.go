package mosques

import (
	"context"
	"errors"
	"io"

	"github.com/muazhazali/lepakmasjid/internal/apperrors"
	"github.com/muazhazali/lepakmasjid/internal/models"
	"github.com/muazhazali/lepakmasjid/internal/recordsource"
	"github.com/muazhazali/lepakmasjid/internal/telemetry"
)

const (
	notFoundMessage = "Mosque not found"
	// detailPerPage bounds the related rows read for a single mosque.
	detailPerPage = 100
)

func validateID(id string) error {
	if !models.IsValidRecordID(id) {
		return apperrors.InvalidParameter("Invalid mosque ID format")
	}
	return nil
}

func invalidInput(err error) error {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		return apperrors.InvalidParameter(ve.Error())
	}
	return apperrors.InvalidParameter("Invalid mosque data")
}

// Get returns one mosque with its amenities and non-cancelled activities.
func (s *Service) Get(ctx context.Context, id string) (*models.Mosque, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	raw, err := s.src.GetOne(ctx, recordsource.CollectionMosques, id, recordsource.GetOptions{})
	if err != nil {
		return nil, apperrors.SanitizeNotFound(err, notFoundMessage)
	}
	m, err := models.Decode[models.Mosque](recordsource.CollectionMosques, raw)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrFetchFailed, "Received an invalid response from the data service.", err)
	}

	res, err := s.src.List(ctx, recordsource.CollectionMosqueAmenities, 1, detailPerPage, recordsource.ListOptions{
		Filter: recordsource.Eq("mosque_id", id),
		Expand: "amenity_id",
	})
	if err != nil {
		return nil, apperrors.Sanitize(err)
	}
	rows, err := models.DecodeAll[models.MosqueAmenity](recordsource.CollectionMosqueAmenities, res.Items)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrFetchFailed, "Received an invalid response from the data service.", err)
	}
	g := GroupAmenities(rows)
	m.Amenities = g.Catalog[id]
	m.CustomAmenities = g.Custom[id]

	m.Activities = s.detailActivities(ctx, id)
	m.EnsureRelations()
	return &m, nil
}

// detailActivities reads the activities of one mosque, loosening the request
// each time the source rejects it. Failure yields no activities.
func (s *Service) detailActivities(ctx context.Context, id string) []models.Activity {
	byMosque := recordsource.Eq("mosque_id", id)
	attempts := []struct {
		opts     recordsource.ListOptions
		filtered bool
	}{
		{recordsource.ListOptions{Filter: byMosque, Sort: "-created"}, true},
		{recordsource.ListOptions{Filter: byMosque}, true},
		{recordsource.ListOptions{Sort: "-created"}, false},
		{recordsource.ListOptions{}, false},
	}

	var (
		res      *recordsource.ListResult
		filtered bool
		err      error
	)
	for _, a := range attempts {
		res, err = s.src.List(ctx, recordsource.CollectionActivities, 1, detailPerPage, a.opts)
		if err == nil {
			filtered = a.filtered
			break
		}
		if ctx.Err() != nil {
			break
		}
		s.logger.DebugContext(ctx, "activity request rejected, loosening", "mosque_id", id, "error", err)
	}
	if err != nil {
		telemetry.AttachmentFailuresTotal.WithLabelValues("activities").Inc()
		s.logger.WarnContext(ctx, "failed to fetch activities", "mosque_id", id, "error", err)
		return nil
	}

	rows, err := models.DecodeAll[models.Activity](recordsource.CollectionActivities, res.Items)
	if err != nil {
		telemetry.AttachmentFailuresTotal.WithLabelValues("activities").Inc()
		s.logger.WarnContext(ctx, "invalid activity record", "mosque_id", id, "error", err)
		return nil
	}
	out := make([]models.Activity, 0, len(rows))
	for _, act := range rows {
		if act.Status == models.ActivityCancelled {
			continue
		}
		if !filtered && act.MosqueID != id {
			continue
		}
		out = append(out, act)
	}
	return out
}

// snapshot reads the current record for an audit before-image. Failure is
// logged and yields nil.
func (s *Service) snapshot(ctx context.Context, id string) *models.Mosque {
	raw, err := s.src.GetOne(ctx, recordsource.CollectionMosques, id, recordsource.GetOptions{})
	if err != nil {
		s.logger.DebugContext(ctx, "could not read mosque before change", "mosque_id", id, "error", err)
		return nil
	}
	m, err := models.Decode[models.Mosque](recordsource.CollectionMosques, raw)
	if err != nil {
		s.logger.DebugContext(ctx, "could not decode mosque before change", "mosque_id", id, "error", err)
		return nil
	}
	return &m
}

func (s *Service) saveImage(ctx context.Context, id string, image io.Reader) (string, error) {
	if s.images == nil {
		return "", apperrors.InvalidParameter("Image uploads are not enabled")
	}
	return s.images.Save(ctx, id, image)
}

// removeImage deletes a stored image, logging failures.
func (s *Service) removeImage(ctx context.Context, ref string) {
	if ref == "" || s.images == nil {
		return
	}
	if err := s.images.Delete(ctx, ref); err != nil {
		s.logger.WarnContext(ctx, "failed to delete mosque image", "image", ref, "error", err)
	}
}

func (s *Service) log(ctx context.Context, action, id string, before, after any) {
	if s.audit != nil {
		s.audit.Log(ctx, action, models.EntityMosque, id, before, after)
	}
}

// Create stores a new mosque. A supplied image is validated and stored before
// the record is created.
func (s *Service) Create(ctx context.Context, in models.MosqueInput, image io.Reader) (*models.Mosque, error) {
	if err := models.Validate(in); err != nil {
		return nil, invalidInput(err)
	}

	id := models.NewRecordID()
	fields := in.Fields()
	fields["id"] = id

	var ref string
	if image != nil {
		var err error
		if ref, err = s.saveImage(ctx, id, image); err != nil {
			return nil, err
		}
		fields["image"] = ref
	}

	raw, err := s.src.Create(ctx, recordsource.CollectionMosques, fields)
	if err != nil {
		s.removeImage(ctx, ref)
		s.logger.ErrorContext(ctx, "failed to create mosque", "error", err)
		return nil, apperrors.Sanitize(err)
	}
	m, err := models.Decode[models.Mosque](recordsource.CollectionMosques, raw)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrFetchFailed, "Received an invalid response from the data service.", err)
	}

	s.log(ctx, models.ActionCreate, m.ID, nil, m)
	m.EnsureRelations()
	return &m, nil
}

// Update applies a partial update. A new image replaces the stored one;
// deleteImage clears it. Old images are removed on a best effort basis.
func (s *Service) Update(ctx context.Context, id string, upd models.MosqueUpdate, image io.Reader, deleteImage bool) (*models.Mosque, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if err := models.Validate(upd); err != nil {
		return nil, invalidInput(err)
	}

	before := s.snapshot(ctx, id)
	fields := upd.Fields()

	var ref string
	switch {
	case image != nil:
		var err error
		if ref, err = s.saveImage(ctx, id, image); err != nil {
			return nil, err
		}
		fields["image"] = ref
	case deleteImage:
		fields["image"] = ""
	}
	if len(fields) == 0 {
		return nil, apperrors.InvalidParameter("No changes to apply")
	}

	raw, err := s.src.Update(ctx, recordsource.CollectionMosques, id, fields)
	if err != nil {
		s.removeImage(ctx, ref)
		return nil, apperrors.SanitizeNotFound(err, notFoundMessage)
	}
	m, err := models.Decode[models.Mosque](recordsource.CollectionMosques, raw)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrFetchFailed, "Received an invalid response from the data service.", err)
	}

	if (image != nil || deleteImage) && before != nil && before.Image != m.Image {
		s.removeImage(ctx, before.Image)
	}

	var beforeSnap any
	if before != nil {
		beforeSnap = before
	}
	s.log(ctx, models.ActionUpdate, id, beforeSnap, m)
	m.EnsureRelations()
	return &m, nil
}

// Delete removes a mosque and its stored image.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	before := s.snapshot(ctx, id)

	if err := s.src.Delete(ctx, recordsource.CollectionMosques, id); err != nil {
		return apperrors.SanitizeNotFound(err, notFoundMessage)
	}
	var beforeSnap any
	if before != nil {
		s.removeImage(ctx, before.Image)
		beforeSnap = before
	}
	s.log(ctx, models.ActionDelete, id, beforeSnap, nil)
	return nil
}

// ListAllAdmin returns every mosque regardless of status, newest first, with
// amenities attached.
func (s *Service) ListAllAdmin(ctx context.Context) ([]models.Mosque, error) {
	raws, _, err := recordsource.ListAll(ctx, s.src, recordsource.CollectionMosques, allModePerPage, recordsource.ListOptions{Sort: "-created"})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch mosques", "error", err)
		return nil, apperrors.FetchFailed(err)
	}
	items, err := decodeMosques(raws)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(items)
	s.attacher.attachAmenitiesOrDegrade(ctx, items)
	for i := range items {
		items[i].EnsureRelations()
	}
	return items, nil
}
