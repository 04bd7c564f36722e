package postgres

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muazhazali/lepakmasjid/internal/recordsource"
)

// ---------------------------------------------------------------------------
// filter translation
// ---------------------------------------------------------------------------

func TestBuildCountQuery_BindsFieldAndValue(t *testing.T) {
	q, args, err := buildCountQuery("mosques", recordsource.Eq("state", "Selangor"))
	require.NoError(t, err)

	assert.Contains(t, q, `SELECT COUNT(*) FROM "records"`)
	assert.Contains(t, q, `"collection" = $1`)
	assert.Contains(t, q, `COALESCE(data->>($2::text), '') = $3`)
	assert.Equal(t, []any{"mosques", "state", "Selangor"}, args)
}

func TestBuildCountQuery_NoFilter(t *testing.T) {
	q, args, err := buildCountQuery("amenities", nil)
	require.NoError(t, err)
	assert.NotContains(t, q, "COALESCE")
	assert.Equal(t, []any{"amenities"}, args)
}

func TestBuildListQuery_LikeIsEscapedILike(t *testing.T) {
	filter := recordsource.AllOf(
		recordsource.Eq("state", "Johor"),
		recordsource.Or{recordsource.Like("name", "50%_off"), recordsource.Like("address", "jalan")},
	)
	q, args, err := buildListQuery("mosques", 1, 20, recordsource.ListOptions{Filter: filter, Sort: "-created"})
	require.NoError(t, err)

	assert.Contains(t, q, "ILIKE")
	assert.Contains(t, q, " OR ")
	assert.Contains(t, q, `"created" DESC`)
	assert.Contains(t, q, `"id" ASC`)
	assert.Contains(t, args, `%50\%\_off%`)
	assert.Contains(t, args, "%jalan%")
}

func TestBuildListQuery_DataSortUsesJSONField(t *testing.T) {
	q, args, err := buildListQuery("amenities", 2, 10, recordsource.ListOptions{Sort: "order"})
	require.NoError(t, err)
	assert.Contains(t, q, "data->($2::text) ASC")
	assert.Equal(t, "order", args[1])
}

func TestBuildListQuery_NullComparison(t *testing.T) {
	q, _, err := buildListQuery("activities", 1, 10, recordsource.ListOptions{
		Filter: recordsource.Cond{Field: "status", Op: recordsource.OpEq, Value: nil},
	})
	require.NoError(t, err)
	assert.Contains(t, q, "IS NULL")
}

func TestBuildListQuery_TypedComparisons(t *testing.T) {
	q, _, err := buildListQuery("users", 1, 10, recordsource.ListOptions{
		Filter: recordsource.AllOf(
			recordsource.Eq("verified", true),
			recordsource.Gte("order", 3),
		),
	})
	require.NoError(t, err)
	assert.Contains(t, q, "::boolean")
	assert.Contains(t, q, "::numeric")
}

func TestBuildQueries_RejectBadIdentifiers(t *testing.T) {
	tests := []struct {
		name string
		run  func() error
	}{
		{"filter field", func() error {
			_, _, err := buildCountQuery("mosques", recordsource.Eq("name) OR (1=1", "x"))
			return err
		}},
		{"sort field", func() error {
			_, _, err := buildListQuery("mosques", 1, 10, recordsource.ListOptions{Sort: "-name;drop"})
			return err
		}},
		{"null with like", func() error {
			_, _, err := buildCountQuery("mosques", recordsource.Cond{Field: "name", Op: recordsource.OpLike})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			var se *recordsource.Error
			require.ErrorAs(t, err, &se)
			assert.Equal(t, http.StatusBadRequest, se.Status)
		})
	}
}

func TestBuildGetQuery_InList(t *testing.T) {
	q, args, err := buildGetQuery("amenities", []string{"a", "b"})
	require.NoError(t, err)
	assert.Contains(t, q, `"id" IN ($2, $3)`)
	assert.Equal(t, []any{"amenities", "a", "b"}, args)
}

func TestToOrder_AlwaysEndsWithTieBreak(t *testing.T) {
	order, err := toOrder("")
	require.NoError(t, err)
	assert.Len(t, order, 2)

	order, err = toOrder("name, -created")
	require.NoError(t, err)
	assert.Len(t, order, 4)
}
