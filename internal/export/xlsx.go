// Package export renders admin downloads.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/muazhazali/lepakmasjid/internal/models"
)

// ContentTypeXLSX is the MIME type of the workbooks produced here.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const mosqueSheet = "Mosques"

var mosqueHeaders = []string{
	"ID", "Name", "Name (BM)", "Address", "State", "Latitude", "Longitude",
	"Status", "Amenities", "Created By", "Created", "Updated",
}

// MosquesXLSX writes one row per mosque. An absent status is written as
// approved.
func MosquesXLSX(mosques []models.Mosque) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(mosqueSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("remove default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	header := make([]any, len(mosqueHeaders))
	for i, h := range mosqueHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(mosqueSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, m := range mosques {
		status := m.Status
		if status == "" {
			status = models.StatusApproved
		}
		row := []any{
			m.ID, m.Name, m.NameBM, m.Address, m.State, m.Lat, m.Lng,
			status, amenityLabels(m), m.CreatedBy, m.Created.String(), m.Updated.String(),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(mosqueSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(mosqueSheet, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}
	if err := f.AutoFilter(mosqueSheet, fmt.Sprintf("A1:L%d", len(mosques)+1), nil); err != nil {
		return nil, fmt.Errorf("add filter: %w", err)
	}
	_ = f.SetColWidth(mosqueSheet, "B", "D", 36)
	_ = f.SetColWidth(mosqueSheet, "I", "I", 48)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// amenityLabels joins catalog labels with the notes of custom rows.
func amenityLabels(m models.Mosque) string {
	labels := make([]string, 0, m.AmenityCount())
	for _, a := range m.Amenities {
		labels = append(labels, a.LabelEN)
	}
	for _, c := range m.CustomAmenities {
		if notes, ok := c.Details["notes"].(string); ok && notes != "" {
			labels = append(labels, notes)
		}
	}
	return strings.Join(labels, ", ")
}
