// Package seed populates an empty Record Source with the amenity catalog and
// a handful of sample mosques, and checks that every collection the service
// depends on is reachable. Seeding is idempotent: existing amenities are
// reused and mosques matching on name and address are skipped.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/muazhazali/lepakmasjid/internal/models"
	"github.com/muazhazali/lepakmasjid/internal/recordsource"
)

// systemUserDomain is where generated seed accounts live.
const systemUserDomain = "system.lepakmasjid.app"

// Result summarises one Run.
type Result struct {
	AmenitiesCreated int
	AmenitiesTotal   int
	MosquesCreated   int
	MosquesSkipped   int
	// LinkFailures counts amenity links that could not be written.
	LinkFailures int
	CreatedBy    string
}

type Seeder struct {
	src    recordsource.Source
	logger *slog.Logger
}

func New(src recordsource.Source, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{src: src, logger: logger}
}

func recordID(raw []byte) (string, error) {
	var rec struct {
		ID string `json:"id"`
	}
	if err := jsoniter.Unmarshal(raw, &rec); err != nil {
		return "", err
	}
	if rec.ID == "" {
		return "", errors.New("record has no id")
	}
	return rec.ID, nil
}

// Run seeds the catalog, picks a creator account and seeds the sample mosques.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	res := &Result{}

	amenityIDs, created, err := s.EnsureAmenities(ctx)
	if err != nil {
		return nil, err
	}
	res.AmenitiesCreated = created
	res.AmenitiesTotal = len(amenityIDs)

	creator, err := s.Creator(ctx)
	if err != nil {
		return nil, err
	}
	res.CreatedBy = creator

	if err := s.SeedMosques(ctx, amenityIDs, creator, res); err != nil {
		return res, err
	}
	return res, nil
}

// EnsureAmenities creates missing catalog amenities and returns key -> id for
// every catalog entry, plus the number created.
func (s *Seeder) EnsureAmenities(ctx context.Context) (map[string]string, int, error) {
	ids := make(map[string]string, len(Catalog))
	created := 0
	for _, a := range Catalog {
		raw, err := recordsource.FirstListItem(ctx, s.src, recordsource.CollectionAmenities, recordsource.Eq("key", a.Key))
		if err == nil {
			id, err := recordID(raw)
			if err != nil {
				return nil, created, fmt.Errorf("amenity %q: %w", a.Key, err)
			}
			ids[a.Key] = id
			continue
		}
		if !recordsource.IsNotFound(err) {
			return nil, created, fmt.Errorf("look up amenity %q: %w", a.Key, err)
		}

		raw, err = s.src.Create(ctx, recordsource.CollectionAmenities, map[string]any{
			"key":      a.Key,
			"label_en": a.LabelEN,
			"label_bm": a.LabelBM,
			"icon":     a.Icon,
			"order":    a.Order,
		})
		if err != nil {
			return nil, created, fmt.Errorf("create amenity %q: %w", a.Key, err)
		}
		id, err := recordID(raw)
		if err != nil {
			return nil, created, fmt.Errorf("amenity %q: %w", a.Key, err)
		}
		ids[a.Key] = id
		created++
		s.logger.Info("created amenity", "key", a.Key, "id", id)
	}
	return ids, created, nil
}

// Creator returns the account recorded as created_by on seeded mosques: the
// first admin, else any user, else a newly created system admin.
func (s *Seeder) Creator(ctx context.Context) (string, error) {
	raw, err := recordsource.FirstListItem(ctx, s.src, recordsource.CollectionUsers, recordsource.Eq("role", models.RoleAdmin))
	if err == nil {
		return recordID(raw)
	}
	if !recordsource.IsNotFound(err) {
		return "", fmt.Errorf("look up admin user: %w", err)
	}

	res, err := s.src.List(ctx, recordsource.CollectionUsers, 1, 1, recordsource.ListOptions{})
	if err != nil {
		return "", fmt.Errorf("list users: %w", err)
	}
	if len(res.Items) > 0 {
		return recordID(res.Items[0])
	}

	password := uuid.NewString()
	raw, err = s.src.Create(ctx, recordsource.CollectionUsers, map[string]any{
		"email":           "seed-" + uuid.NewString()[:8] + "@" + systemUserDomain,
		"emailVisibility": false,
		"password":        password,
		"passwordConfirm": password,
		"verified":        true,
		"role":            models.RoleAdmin,
	})
	if err != nil {
		return "", fmt.Errorf("create system user: %w", err)
	}
	id, err := recordID(raw)
	if err != nil {
		return "", err
	}
	s.logger.Info("created system user for seeding", "id", id)
	return id, nil
}

// SeedMosques creates the sample mosques that do not exist yet and links their
// amenities. A failed link is logged and counted; it does not stop the run.
func (s *Seeder) SeedMosques(ctx context.Context, amenityIDs map[string]string, createdBy string, res *Result) error {
	for _, m := range SampleMosques {
		_, err := recordsource.FirstListItem(ctx, s.src, recordsource.CollectionMosques, recordsource.And{
			recordsource.Eq("name", m.Name),
			recordsource.Eq("address", m.Address),
		})
		if err == nil {
			res.MosquesSkipped++
			s.logger.Info("mosque already exists, skipping", "name", m.Name)
			continue
		}
		if !recordsource.IsNotFound(err) {
			return fmt.Errorf("look up mosque %q: %w", m.Name, err)
		}

		raw, err := s.src.Create(ctx, recordsource.CollectionMosques, map[string]any{
			"name":           m.Name,
			"name_bm":        m.NameBM,
			"address":        m.Address,
			"state":          m.State,
			"lat":            m.Lat,
			"lng":            m.Lng,
			"description":    m.Description,
			"description_bm": m.DescriptionBM,
			"status":         models.StatusApproved,
			"created_by":     createdBy,
		})
		if err != nil {
			return fmt.Errorf("create mosque %q: %w", m.Name, err)
		}
		mosqueID, err := recordID(raw)
		if err != nil {
			return fmt.Errorf("mosque %q: %w", m.Name, err)
		}
		res.MosquesCreated++

		for _, key := range m.AmenityKeys {
			amenityID, ok := amenityIDs[key]
			if !ok {
				continue
			}
			_, err := s.src.Create(ctx, recordsource.CollectionMosqueAmenities, map[string]any{
				"mosque_id":  mosqueID,
				"amenity_id": amenityID,
				"details":    map[string]any{},
				"verified":   true,
			})
			if err != nil {
				res.LinkFailures++
				s.logger.Warn("could not link amenity", "mosque", m.Name, "amenity", key, "error", err)
			}
		}
		s.logger.Info("created mosque", "name", m.Name, "state", m.State, "amenities", len(m.AmenityKeys))
	}
	return nil
}

// Collections lists every collection the service reads or writes.
var Collections = []string{
	recordsource.CollectionMosques,
	recordsource.CollectionAmenities,
	recordsource.CollectionMosqueAmenities,
	recordsource.CollectionActivities,
	recordsource.CollectionSubmissions,
	recordsource.CollectionUsers,
	recordsource.CollectionAuditLogs,
}

// Verify lists one record from every collection and returns the failures by
// collection name. An empty map means every collection is reachable.
func (s *Seeder) Verify(ctx context.Context) map[string]error {
	failures := map[string]error{}
	for _, c := range Collections {
		if _, err := s.src.List(ctx, c, 1, 1, recordsource.ListOptions{}); err != nil {
			failures[c] = err
		}
	}
	return failures
}
