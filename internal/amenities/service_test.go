package amenities_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muazhazali/lepakmasjid/internal/amenities"
	"github.com/muazhazali/lepakmasjid/internal/apperrors"
	"github.com/muazhazali/lepakmasjid/internal/models"
	"github.com/muazhazali/lepakmasjid/internal/recordsource"
	"github.com/muazhazali/lepakmasjid/internal/recordsource/recordsourcetest"
)

var fastRetry = amenities.RetryPolicy{
	MaxTries:        3,
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
}

func newService(src recordsource.Source) *amenities.Service {
	return amenities.NewService(src, fastRetry, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var (
	mosque   = recordsourcetest.ID("m", 1)
	amenityA = recordsourcetest.ID("a", 1)
	amenityB = recordsourcetest.ID("a", 2)
	amenityC = recordsourcetest.ID("a", 3)
)

func seedCatalog(m *recordsourcetest.Memory) {
	for i, key := range []string{"wifi", "parking", "oku"} {
		m.Seed(recordsource.CollectionAmenities, map[string]any{
			"id": recordsourcetest.ID("a", i+1), "key": key, "label_en": key, "label_bm": key, "order": 3 - i,
		})
	}
}

// seedAB gives the mosque rows for amenities A and B.
func seedAB(m *recordsourcetest.Memory) {
	seedCatalog(m)
	m.Seed(recordsource.CollectionMosqueAmenities, map[string]any{
		"id": recordsourcetest.ID("row", 1), "mosque_id": mosque, "amenity_id": amenityA, "details": map[string]any{},
	})
	m.Seed(recordsource.CollectionMosqueAmenities, map[string]any{
		"id": recordsourcetest.ID("row", 2), "mosque_id": mosque, "amenity_id": amenityB, "details": map[string]any{"spaces": 20.0},
	})
}

func wantBC() []models.MosqueAmenityInput {
	return []models.MosqueAmenityInput{
		{AmenityID: amenityB, Details: models.Details{"spaces": 20.0}},
		{AmenityID: amenityC},
	}
}

func amenityIDs(rows []models.MosqueAmenity) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.AmenityID)
	}
	sort.Strings(out)
	return out
}

// ---------------------------------------------------------------------------
// catalog
// ---------------------------------------------------------------------------

func TestList_OrderedByOrderField(t *testing.T) {
	src := recordsourcetest.New()
	seedCatalog(src)

	items, err := newService(src).List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"oku", "parking", "wifi"}, []string{items[0].Key, items[1].Key, items[2].Key})

	call := src.CallsFor("list", recordsource.CollectionAmenities)[0]
	assert.Equal(t, "order", call.Opts.Sort)
	assert.Equal(t, 100, call.PerPage)
}

func TestList_ForbiddenMessage(t *testing.T) {
	src := recordsourcetest.New()
	src.Hook = func(recordsourcetest.Call) error {
		return recordsource.NewError(http.StatusForbidden, "Only admins can perform this action.")
	}

	_, err := newService(src).List(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.Equal(t, "Access denied. Please check your permissions.", err.Error())
}

func TestGet(t *testing.T) {
	src := recordsourcetest.New()
	seedCatalog(src)
	svc := newService(src)

	a, err := svc.Get(context.Background(), amenityA)
	require.NoError(t, err)
	assert.Equal(t, "wifi", a.Key)

	_, err = svc.Get(context.Background(), recordsourcetest.ID("a", 9))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)
}

func TestCreateCustom(t *testing.T) {
	src := recordsourcetest.New()
	seedCatalog(src)
	svc := newService(src)

	a, err := svc.CreateCustom(context.Background(), models.AmenityInput{Key: "kids_corner", LabelEN: "Kids corner", LabelBM: "Sudut kanak-kanak"})
	require.NoError(t, err)
	assert.Equal(t, "kids_corner", a.Key)
	assert.Equal(t, "circle", a.Icon)
	assert.Equal(t, 0, a.Order)

	_, err = svc.CreateCustom(context.Background(), models.AmenityInput{Key: "wifi", LabelEN: "Wifi", LabelBM: "Wifi"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	for _, key := range []string{"Wifi", "wi-fi", "wi fi", "wifi!"} {
		_, err = svc.CreateCustom(context.Background(), models.AmenityInput{Key: key, LabelEN: "x", LabelBM: "x"})
		assert.ErrorIs(t, err, apperrors.ErrInvalidParameter, key)
	}

	_, err = svc.CreateCustom(context.Background(), models.AmenityInput{Key: "shade"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)

	assert.Len(t, src.CallsFor("create", recordsource.CollectionAmenities), 1)
}

func TestCreateCustom_LookupFailureIsNotTreatedAsFree(t *testing.T) {
	src := recordsourcetest.New()
	src.Hook = func(c recordsourcetest.Call) error {
		if c.Op == "list" {
			return recordsource.NewError(http.StatusInternalServerError, "boom")
		}
		return nil
	}

	_, err := newService(src).CreateCustom(context.Background(), models.AmenityInput{Key: "shade", LabelEN: "Shade", LabelBM: "Teduhan"})
	assert.ErrorIs(t, err, apperrors.ErrFetchFailed)
	assert.Empty(t, src.CallsFor("create", recordsource.CollectionAmenities))
}

// ---------------------------------------------------------------------------
// mosque amenity rows
// ---------------------------------------------------------------------------

func TestMosqueAmenityCRUD(t *testing.T) {
	src := recordsourcetest.New()
	seedCatalog(src)
	svc := newService(src)
	ctx := context.Background()

	row, err := svc.CreateMosqueAmenity(ctx, mosque, models.MosqueAmenityInput{AmenityID: amenityA})
	require.NoError(t, err)
	assert.NotNil(t, row.Details)

	rows, err := svc.GetByMosque(ctx, mosque)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].ExpandedAmenity())
	assert.Equal(t, "wifi", rows[0].ExpandedAmenity().Key)

	verified := true
	updated, err := svc.UpdateMosqueAmenity(ctx, row.ID, models.MosqueAmenityUpdate{Verified: &verified})
	require.NoError(t, err)
	assert.True(t, updated.Verified)

	_, err = svc.UpdateMosqueAmenity(ctx, row.ID, models.MosqueAmenityUpdate{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)

	require.NoError(t, svc.DeleteMosqueAmenity(ctx, row.ID))
	assert.ErrorIs(t, svc.DeleteMosqueAmenity(ctx, row.ID), apperrors.ErrNotFound)

	_, err = svc.CreateMosqueAmenity(ctx, "bad", models.MosqueAmenityInput{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)
	_, err = svc.CreateMosqueAmenity(ctx, mosque, models.MosqueAmenityInput{AmenityID: "bad"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)
	_, err = svc.GetByMosque(ctx, "bad")
	assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)
}
