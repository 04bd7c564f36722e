package models

import (
	"bytes"
	"encoding/json"
)

// Amenity is a catalog entry shared across mosques.
type Amenity struct {
	ID      string   `json:"id" validate:"required"`
	Key     string   `json:"key" validate:"required"`
	LabelEN string   `json:"label_en"`
	LabelBM string   `json:"label_bm"`
	Icon    string   `json:"icon"`
	Order   int      `json:"order"`
	Created DateTime `json:"created"`
	Updated DateTime `json:"updated"`
}

// AmenityInput creates a catalog amenity.
type AmenityInput struct {
	Key     string `json:"key" validate:"required,max=64"`
	LabelEN string `json:"label_en" validate:"required,max=100"`
	LabelBM string `json:"label_bm" validate:"required,max=100"`
	Icon    string `json:"icon" validate:"max=64"`
	Order   *int   `json:"order" validate:"omitempty,gte=0"`
}

// Details is the free-form JSON document attached to a mosque amenity row.
type Details map[string]any

// UnmarshalJSON accepts null and objects; null decodes to an empty map.
func (d *Details) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*d = Details{}
		return nil
	}
	m := map[string]any{}
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*d = m
	return nil
}

// Equal compares two documents by canonical JSON encoding; nil equals empty.
func (d Details) Equal(other Details) bool {
	return d.canonical() == other.canonical()
}

func (d Details) canonical() string {
	if len(d) == 0 {
		return "{}"
	}
	// encoding/json sorts map keys, which makes the encoding canonical.
	b, err := json.Marshal(map[string]any(d))
	if err != nil {
		return ""
	}
	return string(b)
}

// MosqueAmenity is a row of mosque_amenities. AmenityID is empty for custom
// amenities.
type MosqueAmenity struct {
	ID        string               `json:"id" validate:"required"`
	MosqueID  string               `json:"mosque_id" validate:"required"`
	AmenityID string               `json:"amenity_id"`
	Details   Details              `json:"details"`
	Verified  bool                 `json:"verified"`
	Created   DateTime             `json:"created"`
	Updated   DateTime             `json:"updated"`
	Expand    *MosqueAmenityExpand `json:"expand,omitempty"`
}

// MosqueAmenityExpand holds the expanded catalog amenity when requested.
type MosqueAmenityExpand struct {
	AmenityID *Amenity `json:"amenity_id,omitempty"`
}

// ExpandedAmenity returns the expanded catalog amenity, or nil.
func (ma *MosqueAmenity) ExpandedAmenity() *Amenity {
	if ma.Expand == nil {
		return nil
	}
	return ma.Expand.AmenityID
}

// AttachedAmenity is a catalog amenity as attached to one mosque.
type AttachedAmenity struct {
	Amenity
	MosqueAmenityID string  `json:"mosque_amenity_id"`
	Details         Details `json:"details"`
	Verified        bool    `json:"verified"`
}

// MosqueAmenityInput is one desired row for creation or replacement.
type MosqueAmenityInput struct {
	AmenityID string  `json:"amenity_id"`
	Details   Details `json:"details"`
	Verified  bool    `json:"verified"`
}

// MosqueAmenityUpdate changes details and verification of an existing row.
type MosqueAmenityUpdate struct {
	Details  Details `json:"details"`
	Verified *bool   `json:"verified"`
}
