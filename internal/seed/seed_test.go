package seed

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muazhazali/lepakmasjid/internal/models"
	"github.com/muazhazali/lepakmasjid/internal/recordsource"
	"github.com/muazhazali/lepakmasjid/internal/recordsource/recordsourcetest"
)

func totalLinks() int {
	n := 0
	for _, m := range SampleMosques {
		n += len(m.AmenityKeys)
	}
	return n
}

func TestRun_EmptySource(t *testing.T) {
	src := recordsourcetest.New()
	res, err := New(src, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, len(Catalog), res.AmenitiesCreated)
	assert.Equal(t, len(Catalog), res.AmenitiesTotal)
	assert.Equal(t, len(SampleMosques), res.MosquesCreated)
	assert.Zero(t, res.MosquesSkipped)
	assert.Zero(t, res.LinkFailures)

	assert.Len(t, src.Records(recordsource.CollectionMosqueAmenities), totalLinks())

	users := src.Records(recordsource.CollectionUsers)
	require.Len(t, users, 1)
	assert.Equal(t, models.RoleAdmin, users[0]["role"])
	assert.Equal(t, users[0]["id"], res.CreatedBy)

	for _, m := range src.Records(recordsource.CollectionMosques) {
		assert.Equal(t, models.StatusApproved, m["status"])
		assert.Equal(t, res.CreatedBy, m["created_by"])
	}
}

func TestRun_Idempotent(t *testing.T) {
	src := recordsourcetest.New()
	s := New(src, nil)
	_, err := s.Run(context.Background())
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.AmenitiesCreated)
	assert.Zero(t, res.MosquesCreated)
	assert.Equal(t, len(SampleMosques), res.MosquesSkipped)

	assert.Len(t, src.Records(recordsource.CollectionAmenities), len(Catalog))
	assert.Len(t, src.Records(recordsource.CollectionMosques), len(SampleMosques))
	assert.Len(t, src.Records(recordsource.CollectionUsers), 1)
}

func TestCreator_PrefersAdmin(t *testing.T) {
	src := recordsourcetest.New()
	src.Seed(recordsource.CollectionUsers, map[string]any{"id": "user00000000001", "email": "a@example.com"})
	src.Seed(recordsource.CollectionUsers, map[string]any{"id": "admin0000000001", "email": "b@example.com", "role": "admin"})

	id, err := New(src, nil).Creator(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "admin0000000001", id)
}

func TestCreator_FallsBackToAnyUser(t *testing.T) {
	src := recordsourcetest.New()
	src.Seed(recordsource.CollectionUsers, map[string]any{"id": "user00000000001", "email": "a@example.com"})

	id, err := New(src, nil).Creator(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user00000000001", id)
	assert.Len(t, src.Records(recordsource.CollectionUsers), 1)
}

func TestSeedMosques_LinkFailuresAreCounted(t *testing.T) {
	src := recordsourcetest.New()
	src.Hook = func(c recordsourcetest.Call) error {
		if c.Op == "create" && c.Collection == recordsource.CollectionMosqueAmenities {
			return recordsource.NewError(http.StatusBadRequest, "validation failed")
		}
		return nil
	}

	res, err := New(src, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(SampleMosques), res.MosquesCreated)
	assert.Equal(t, totalLinks(), res.LinkFailures)
}

func TestRun_LookupFailureStops(t *testing.T) {
	src := recordsourcetest.New()
	src.Hook = func(c recordsourcetest.Call) error {
		if c.Collection == recordsource.CollectionAmenities {
			return recordsource.NewError(http.StatusForbidden, "forbidden")
		}
		return nil
	}

	_, err := New(src, nil).Run(context.Background())
	assert.Error(t, err)
	assert.Empty(t, src.Records(recordsource.CollectionMosques))
}

func TestVerify(t *testing.T) {
	src := recordsourcetest.New()
	assert.Empty(t, New(src, nil).Verify(context.Background()))

	src.Hook = func(c recordsourcetest.Call) error {
		if c.Collection == recordsource.CollectionAuditLogs {
			return recordsource.NewError(http.StatusNotFound, "missing collection")
		}
		return nil
	}
	failures := New(src, nil).Verify(context.Background())
	require.Len(t, failures, 1)
	assert.Contains(t, failures, recordsource.CollectionAuditLogs)
}
