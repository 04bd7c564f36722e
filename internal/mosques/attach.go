package mosques

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/muazhazali/lepakmasjid/internal/apperrors"
	"github.com/muazhazali/lepakmasjid/internal/models"
	"github.com/muazhazali/lepakmasjid/internal/recordsource"
	"github.com/muazhazali/lepakmasjid/internal/telemetry"
)

// attachLimit caps the related rows fetched for one set of mosques.
const attachLimit = recordsource.MaxPerPage

// Attacher fetches the related rows of a set of mosques in one bulk request
// per collection, since the Record Source has no joins.
type Attacher struct {
	src    recordsource.Source
	logger *slog.Logger
}

// NewAttacher creates an Attacher.
func NewAttacher(src recordsource.Source, logger *slog.Logger) *Attacher {
	return &Attacher{src: src, logger: logger}
}

func mosqueIDs(mosques []models.Mosque) []string {
	ids := make([]string, 0, len(mosques))
	for _, m := range mosques {
		ids = append(ids, m.ID)
	}
	return ids
}

// AmenityGroups is the result of grouping mosque_amenities rows by mosque.
type AmenityGroups struct {
	Catalog map[string][]models.AttachedAmenity
	Custom  map[string][]models.MosqueAmenity
}

// GroupAmenities splits rows into catalog amenities (amenity_id set and
// expanded) and custom amenities (everything else), keyed by mosque id.
func GroupAmenities(rows []models.MosqueAmenity) AmenityGroups {
	g := AmenityGroups{
		Catalog: map[string][]models.AttachedAmenity{},
		Custom:  map[string][]models.MosqueAmenity{},
	}
	for _, row := range rows {
		if row.MosqueID == "" {
			continue
		}
		details := row.Details
		if details == nil {
			details = models.Details{}
		}
		if a := row.ExpandedAmenity(); row.AmenityID != "" && a != nil {
			g.Catalog[row.MosqueID] = append(g.Catalog[row.MosqueID], models.AttachedAmenity{
				Amenity:         *a,
				MosqueAmenityID: row.ID,
				Details:         details,
				Verified:        row.Verified,
			})
			continue
		}
		row.Details = details
		row.Expand = nil
		g.Custom[row.MosqueID] = append(g.Custom[row.MosqueID], row)
	}
	return g
}

// AttachAmenities sets Amenities and CustomAmenities on every mosque. On error
// the mosques are left untouched.
func (a *Attacher) AttachAmenities(ctx context.Context, mosques []models.Mosque) error {
	if len(mosques) == 0 {
		return nil
	}
	res, err := a.src.List(ctx, recordsource.CollectionMosqueAmenities, 1, attachLimit, recordsource.ListOptions{
		Filter: recordsource.AnyOf("mosque_id", mosqueIDs(mosques)),
		Expand: "amenity_id",
	})
	if err != nil {
		return fmt.Errorf("list mosque amenities: %w", err)
	}
	rows, err := models.DecodeAll[models.MosqueAmenity](recordsource.CollectionMosqueAmenities, res.Items)
	if err != nil {
		return err
	}

	g := GroupAmenities(rows)
	for i := range mosques {
		id := mosques[i].ID
		mosques[i].Amenities = orEmpty(g.Catalog[id])
		mosques[i].CustomAmenities = orEmpty(g.Custom[id])
	}
	return nil
}

// AttachActivities sets Activities on every mosque to its active activities,
// newest first when the source accepts the sort.
func (a *Attacher) AttachActivities(ctx context.Context, mosques []models.Mosque) error {
	if len(mosques) == 0 {
		return nil
	}
	res, _, err := recordsource.ListWithSortFallback(ctx, a.src, recordsource.CollectionActivities, 1, attachLimit, recordsource.ListOptions{
		Filter: recordsource.AnyOf("mosque_id", mosqueIDs(mosques)),
		Sort:   "-created",
	})
	if err != nil {
		return fmt.Errorf("list activities: %w", err)
	}
	rows, err := models.DecodeAll[models.Activity](recordsource.CollectionActivities, res.Items)
	if err != nil {
		return err
	}

	wanted := make(map[string]bool, len(mosques))
	for _, m := range mosques {
		wanted[m.ID] = true
	}
	byMosque := map[string][]models.Activity{}
	for _, act := range rows {
		if !wanted[act.MosqueID] || !act.IsActive() {
			continue
		}
		byMosque[act.MosqueID] = append(byMosque[act.MosqueID], act)
	}
	for i := range mosques {
		mosques[i].Activities = orEmpty(byMosque[mosques[i].ID])
	}
	return nil
}

// degrade records a failed attachment and leaves empty relations behind.
func (a *Attacher) degrade(ctx context.Context, kind string, mosques []models.Mosque, err error) {
	telemetry.AttachmentFailuresTotal.WithLabelValues(kind).Inc()
	a.logger.WarnContext(ctx, apperrors.ErrPartialAttachment.Error(),
		"kind", kind,
		"mosques", len(mosques),
		"error", err,
	)
	for i := range mosques {
		mosques[i].EnsureRelations()
	}
}

// attachAmenitiesOrDegrade never fails; see degrade.
func (a *Attacher) attachAmenitiesOrDegrade(ctx context.Context, mosques []models.Mosque) {
	if err := a.AttachAmenities(ctx, mosques); err != nil {
		a.degrade(ctx, "amenities", mosques, err)
	}
}

func (a *Attacher) attachActivitiesOrDegrade(ctx context.Context, mosques []models.Mosque) {
	if err := a.AttachActivities(ctx, mosques); err != nil {
		a.degrade(ctx, "activities", mosques, err)
	}
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
