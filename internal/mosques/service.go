// Package mosques implements the mosque listing and mosque record operations.
//
// The listing is composed on top of a Record Source that has no joins and only
// a small filter language: rows are over-fetched with the state/search filter,
// then visibility, state and amenity filters are re-applied in memory, sorted,
// sliced to the requested page, and finally decorated with amenities and
// activities fetched in bulk. Attachment failures degrade to empty relations;
// only a failure of the primary fetch fails the call.
package mosques

import (
	"cmp"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/muazhazali/lepakmasjid/internal/apperrors"
	"github.com/muazhazali/lepakmasjid/internal/models"
	"github.com/muazhazali/lepakmasjid/internal/recordsource"
	"github.com/muazhazali/lepakmasjid/internal/telemetry"
)

// Auditor records mutations. Implementations never fail the caller.
type Auditor interface {
	Log(ctx context.Context, action, entityType, entityID string, before, after any)
}

// ImageStore persists mosque images and returns the reference stored in the
// record's image field.
type ImageStore interface {
	Save(ctx context.Context, mosqueID string, r io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
}

// Service serves mosque listings and mosque record operations.
type Service struct {
	src      recordsource.Source
	attacher *Attacher
	images   ImageStore
	audit    Auditor
	logger   *slog.Logger
}

// NewService creates a Service. images may be nil when uploads are disabled.
func NewService(src recordsource.Source, images ImageStore, auditor Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		src:      src,
		attacher: NewAttacher(src, logger),
		images:   images,
		audit:    auditor,
		logger:   logger,
	}
}

// Attacher exposes the amenity and activity attacher used by the service.
func (s *Service) Attacher() *Attacher {
	return s.attacher
}

// List returns one page of publicly visible mosques matching q.
//
// totalItems counts the filtered rows inside the over-fetch window, so it is
// exact only when the window covers every matching row.
func (s *Service) List(ctx context.Context, q Query) (*Page, error) {
	n, err := q.normalize()
	if err != nil {
		return nil, err
	}
	defer observeQuery("paged", time.Now())

	items, total, err := s.compose(ctx, n, true)
	if err != nil {
		return nil, err
	}
	return &Page{
		Items:      items,
		Page:       n.page,
		PerPage:    n.perPage,
		TotalItems: total,
		TotalPages: (total + n.perPage - 1) / n.perPage,
	}, nil
}

// ListAll returns every publicly visible mosque matching q, ignoring paging.
func (s *Service) ListAll(ctx context.Context, q Query) ([]models.Mosque, error) {
	n, err := q.normalize()
	if err != nil {
		return nil, err
	}
	defer observeQuery("all", time.Now())

	items, _, err := s.compose(ctx, n, false)
	return items, err
}

func observeQuery(mode string, started time.Time) {
	telemetry.MosqueQueryDuration.WithLabelValues(mode).Observe(time.Since(started).Seconds())
}

// compose runs the listing pipeline. It returns the result set and the
// filtered count before slicing.
func (s *Service) compose(ctx context.Context, n normalized, paged bool) ([]models.Mosque, int, error) {
	opts := recordsource.ListOptions{Filter: n.filter(), Sort: n.serverSort()}

	var (
		raws []json.RawMessage
		err  error
	)
	if paged {
		raws, _, _, err = recordsource.ListWindow(ctx, s.src, recordsource.CollectionMosques, n.window(), opts)
	} else {
		raws, _, err = recordsource.ListAll(ctx, s.src, recordsource.CollectionMosques, allModePerPage, opts)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch mosques", "error", err)
		return nil, 0, apperrors.FetchFailed(err)
	}
	fetched, err := decodeMosques(raws)
	if err != nil {
		s.logger.ErrorContext(ctx, "invalid mosque record", "error", err)
		return nil, 0, err
	}

	visible := fetched[:0]
	for _, m := range fetched {
		if !m.IsPubliclyVisible() {
			continue
		}
		if n.state != "" && m.State != n.state {
			continue
		}
		visible = append(visible, m)
	}

	early := n.needsAmenitiesEarly()
	if early {
		s.attacher.attachAmenitiesOrDegrade(ctx, visible)
	}
	if len(n.amenities) > 0 {
		visible = filterByAmenities(visible, n.amenities)
	}

	sortMosques(visible, n.sortBy)
	total := len(visible)

	result := visible
	if paged {
		start := min((n.page-1)*n.perPage, total)
		end := min(start+n.perPage, total)
		result = visible[start:end]
	}

	if !early {
		s.attacher.attachAmenitiesOrDegrade(ctx, result)
	}
	s.attacher.attachActivitiesOrDegrade(ctx, result)

	for i := range result {
		result[i].EnsureRelations()
	}
	return result, total, nil
}

func decodeMosques(raws []json.RawMessage) ([]models.Mosque, error) {
	items, err := models.DecodeAll[models.Mosque](recordsource.CollectionMosques, raws)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrFetchFailed, "Received an invalid response from the data service.", err)
	}
	return items, nil
}

// filterByAmenities keeps mosques whose catalog amenity ids include every
// requested id.
func filterByAmenities(mosques []models.Mosque, required []string) []models.Mosque {
	out := mosques[:0]
	for _, m := range mosques {
		have := make(map[string]bool, len(m.Amenities))
		for _, a := range m.Amenities {
			have[a.ID] = true
		}
		ok := true
		for _, id := range required {
			if !have[id] {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, m)
		}
	}
	return out
}

// sortMosques sorts in place. Every mode is stable.
func sortMosques(mosques []models.Mosque, sortBy string) {
	switch sortBy {
	case SortAlphabetical:
		c := collate.New(language.Malay)
		slices.SortStableFunc(mosques, func(a, b models.Mosque) int {
			return c.CompareString(a.Name, b.Name)
		})
	case SortMostAmenities:
		slices.SortStableFunc(mosques, func(a, b models.Mosque) int {
			return cmp.Compare(b.AmenityCount(), a.AmenityCount())
		})
	default:
		sortNewestFirst(mosques)
	}
}

func sortNewestFirst(mosques []models.Mosque) {
	slices.SortStableFunc(mosques, func(a, b models.Mosque) int {
		return cmp.Compare(b.Created.UnixMilliOrEpoch(), a.Created.UnixMilliOrEpoch())
	})
}
