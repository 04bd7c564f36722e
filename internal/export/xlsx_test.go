package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/muazhazali/lepakmasjid/internal/models"
)

func TestMosquesXLSX(t *testing.T) {
	created := models.NewDateTime(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	data, err := MosquesXLSX([]models.Mosque{
		{
			ID: "m00000000000001", Name: "Masjid Negara", State: "Kuala Lumpur", Lat: 3.1419, Lng: 101.6919,
			Created:   created,
			Amenities: []models.AttachedAmenity{{Amenity: models.Amenity{LabelEN: "WiFi"}}, {Amenity: models.Amenity{LabelEN: "Parking"}}},
			CustomAmenities: []models.MosqueAmenity{
				{Details: models.Details{"notes": "Kids corner"}},
				{Details: models.Details{}},
			},
		},
		{ID: "m00000000000002", Name: "Masjid Sultan Salahuddin", State: "Selangor", Status: models.StatusPending},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Mosques"}, f.GetSheetList())
	rows, err := f.GetRows("Mosques")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "Updated", rows[0][11])

	assert.Equal(t, "Masjid Negara", rows[1][1])
	assert.Equal(t, "approved", rows[1][7])
	assert.Equal(t, "WiFi, Parking, Kids corner", rows[1][8])
	assert.Equal(t, "2024-03-01 08:00:00.000Z", rows[1][10])

	assert.Equal(t, "pending", rows[2][7])
}

func TestMosquesXLSX_Empty(t *testing.T) {
	data, err := MosquesXLSX(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Mosques")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
