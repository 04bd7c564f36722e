package amenities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/muazhazali/lepakmasjid/internal/apperrors"
	"github.com/muazhazali/lepakmasjid/internal/models"
	"github.com/muazhazali/lepakmasjid/internal/recordsource"
)

// RetryPolicy bounds the retries of a single mutation when the Record Source
// has no transactions.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy is used when NewService is given a zero policy.
var DefaultRetryPolicy = RetryPolicy{
	MaxTries:        4,
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     2 * time.Second,
}

func (p RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.Reset()
	return b
}

type mutationKind string

const (
	mutationCreate mutationKind = "create"
	mutationUpdate mutationKind = "update"
	mutationDelete mutationKind = "delete"
)

// mutation is one planned change to mosque_amenities.
type mutation struct {
	kind mutationKind
	id   string
	body map[string]any
}

func (m mutation) apply(ctx context.Context, src recordsource.Source) error {
	var err error
	switch m.kind {
	case mutationCreate:
		_, err = src.Create(ctx, recordsource.CollectionMosqueAmenities, m.body)
	case mutationUpdate:
		_, err = src.Update(ctx, recordsource.CollectionMosqueAmenities, m.id, m.body)
	case mutationDelete:
		err = src.Delete(ctx, recordsource.CollectionMosqueAmenities, m.id)
	}
	if err != nil {
		return fmt.Errorf("%s mosque amenity %s: %w", m.kind, m.id, err)
	}
	return nil
}

// plan diffs the current rows of a mosque against the desired set. Catalog
// rows are matched by amenity id, custom rows by details. Matched rows are
// updated only when details or verification differ; unmatched desired rows are
// created and unmatched current rows deleted.
func plan(mosqueID string, current []models.MosqueAmenity, desired []models.MosqueAmenityInput) []mutation {
	catalog := map[string]models.MosqueAmenity{}
	var custom []models.MosqueAmenity
	var surplus []models.MosqueAmenity
	for _, row := range current {
		switch {
		case row.AmenityID == "":
			custom = append(custom, row)
		case hasKey(catalog, row.AmenityID):
			surplus = append(surplus, row)
		default:
			catalog[row.AmenityID] = row
		}
	}

	var updates, creates []mutation
	usedCustom := make([]bool, len(custom))
	for _, want := range desired {
		if want.Details == nil {
			want.Details = models.Details{}
		}
		if want.AmenityID != "" {
			row, ok := catalog[want.AmenityID]
			if !ok {
				creates = append(creates, mutation{kind: mutationCreate, body: createBody(mosqueID, want)})
				continue
			}
			delete(catalog, want.AmenityID)
			if !row.Details.Equal(want.Details) || row.Verified != want.Verified {
				updates = append(updates, mutation{kind: mutationUpdate, id: row.ID, body: map[string]any{
					"details": want.Details, "verified": want.Verified,
				}})
			}
			continue
		}

		matched := -1
		for i, row := range custom {
			if !usedCustom[i] && row.Details.Equal(want.Details) {
				matched = i
				break
			}
		}
		if matched < 0 {
			creates = append(creates, mutation{kind: mutationCreate, body: createBody(mosqueID, want)})
			continue
		}
		usedCustom[matched] = true
		if row := custom[matched]; row.Verified != want.Verified {
			updates = append(updates, mutation{kind: mutationUpdate, id: row.ID, body: map[string]any{"verified": want.Verified}})
		}
	}

	for _, row := range current {
		if r, ok := catalog[row.AmenityID]; ok && row.AmenityID != "" && r.ID == row.ID {
			surplus = append(surplus, row)
		}
	}
	for i, row := range custom {
		if !usedCustom[i] {
			surplus = append(surplus, row)
		}
	}

	out := append(updates, creates...)
	for _, row := range surplus {
		out = append(out, mutation{kind: mutationDelete, id: row.ID})
	}
	return out
}

func hasKey[V any](m map[string]V, k string) bool {
	_, ok := m[k]
	return ok
}

// cleanDesired drops entries whose amenity id is malformed and repeated
// catalog entries, keeping the first.
func (s *Service) cleanDesired(ctx context.Context, mosqueID string, desired []models.MosqueAmenityInput) []models.MosqueAmenityInput {
	seen := map[string]bool{}
	out := make([]models.MosqueAmenityInput, 0, len(desired))
	for _, in := range desired {
		if in.AmenityID != "" {
			if !models.IsValidRecordID(in.AmenityID) {
				s.logger.WarnContext(ctx, "skipping invalid amenity id", "mosque_id", mosqueID, "amenity_id", in.AmenityID)
				continue
			}
			if seen[in.AmenityID] {
				continue
			}
			seen[in.AmenityID] = true
		}
		out = append(out, in)
	}
	return out
}

// ReplaceAll makes the amenity rows of a mosque equal to desired and returns
// the resulting rows.
//
// When the Record Source supports transactions every change is applied in one
// transaction and any failure leaves the rows untouched. Otherwise each change
// is retried with exponential backoff while the failure is retriable; changes
// that still fail are skipped and reported together as an ErrPartialUpdate
// error, returned alongside the rows as they ended up.
func (s *Service) ReplaceAll(ctx context.Context, mosqueID string, desired []models.MosqueAmenityInput) ([]models.MosqueAmenity, error) {
	if !models.IsValidRecordID(mosqueID) {
		return nil, apperrors.InvalidParameter("Invalid mosque ID format")
	}
	desired = s.cleanDesired(ctx, mosqueID, desired)

	if tx, ok := s.src.(recordsource.Transactor); ok {
		err := tx.RunInTx(ctx, func(src recordsource.Source) error {
			current, err := listRows(ctx, src, mosqueID)
			if err != nil {
				return err
			}
			for _, m := range plan(mosqueID, current, desired) {
				if err := m.apply(ctx, src); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to replace mosque amenities", "mosque_id", mosqueID, "error", err)
			return nil, apperrors.Sanitize(err)
		}
		return listRows(ctx, s.src, mosqueID)
	}

	current, err := listRows(ctx, s.src, mosqueID)
	if err != nil {
		return nil, err
	}
	changes := plan(mosqueID, current, desired)

	var failures []error
	for _, m := range changes {
		if err := s.applyWithRetry(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil, apperrors.Sanitize(err)
			}
			s.logger.WarnContext(ctx, "skipping failed amenity change", "mosque_id", mosqueID, "change", string(m.kind), "error", err)
			failures = append(failures, err)
		}
	}

	rows, err := listRows(ctx, s.src, mosqueID)
	if err != nil {
		return nil, err
	}
	if len(failures) > 0 {
		return rows, apperrors.Wrap(apperrors.ErrPartialUpdate,
			fmt.Sprintf("%d of %d amenity changes could not be applied", len(failures), len(changes)),
			errors.Join(failures...))
	}
	return rows, nil
}

func (s *Service) applyWithRetry(ctx context.Context, m mutation) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := m.apply(ctx, s.src)
		if err != nil && !recordsource.IsRetriable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(s.retry.backOff()),
		backoff.WithMaxTries(s.retry.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.DebugContext(ctx, "retrying amenity change", "change", string(m.kind), "in", next, "error", err)
		}),
	)
	return err
}
