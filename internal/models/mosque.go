package models

// Mosque status values. An absent status is treated as approved.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Mosque is a record of the mosques collection, optionally augmented with its
// attached amenities and activities.
type Mosque struct {
	ID            string  `json:"id" validate:"required"`
	Name          string  `json:"name"`
	NameBM        string  `json:"name_bm"`
	Address       string  `json:"address"`
	State         string  `json:"state"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	Description   string  `json:"description"`
	DescriptionBM string  `json:"description_bm"`
	Status        string  `json:"status,omitempty" validate:"omitempty,oneof=pending approved rejected"`
	Image         string  `json:"image"`
	// ImageURL is resolved from Image for responses and never stored.
	ImageURL  string   `json:"image_url,omitempty"`
	CreatedBy string   `json:"created_by"`
	Created   DateTime `json:"created"`
	Updated   DateTime `json:"updated"`

	Amenities       []AttachedAmenity `json:"amenities"`
	CustomAmenities []MosqueAmenity   `json:"customAmenities"`
	Activities      []Activity        `json:"activities"`
}

// IsPubliclyVisible reports whether the mosque may appear in public listings.
func (m *Mosque) IsPubliclyVisible() bool {
	return m.Status == "" || m.Status == StatusApproved
}

// AmenityCount is the number of catalog and custom amenities attached.
func (m *Mosque) AmenityCount() int {
	return len(m.Amenities) + len(m.CustomAmenities)
}

// EnsureRelations replaces nil relation slices with empty ones so they encode as [].
func (m *Mosque) EnsureRelations() {
	if m.Amenities == nil {
		m.Amenities = []AttachedAmenity{}
	}
	if m.CustomAmenities == nil {
		m.CustomAmenities = []MosqueAmenity{}
	}
	if m.Activities == nil {
		m.Activities = []Activity{}
	}
}

// MosqueInput is the payload for creating a mosque. It is also the shape of a
// submission's proposed data.
type MosqueInput struct {
	Name          string   `json:"name" validate:"required,max=200"`
	NameBM        string   `json:"name_bm" validate:"max=200"`
	Address       string   `json:"address" validate:"required,max=500"`
	State         string   `json:"state" validate:"required,state"`
	Lat           *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng           *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
	Description   string   `json:"description" validate:"max=5000"`
	DescriptionBM string   `json:"description_bm" validate:"max=5000"`
	Status        string   `json:"status,omitempty" validate:"omitempty,oneof=pending approved rejected"`
	CreatedBy     string   `json:"created_by,omitempty" validate:"omitempty,recordid"`
}

// Fields renders the input as a Record Source body.
func (in MosqueInput) Fields() map[string]any {
	f := map[string]any{
		"name":           in.Name,
		"name_bm":        in.NameBM,
		"address":        in.Address,
		"state":          in.State,
		"description":    in.Description,
		"description_bm": in.DescriptionBM,
	}
	if in.Lat != nil {
		f["lat"] = *in.Lat
	}
	if in.Lng != nil {
		f["lng"] = *in.Lng
	}
	if in.Status != "" {
		f["status"] = in.Status
	}
	if in.CreatedBy != "" {
		f["created_by"] = in.CreatedBy
	}
	return f
}

// MosqueUpdate is a partial update; nil fields are left unchanged.
type MosqueUpdate struct {
	Name          *string  `json:"name" validate:"omitempty,min=1,max=200"`
	NameBM        *string  `json:"name_bm" validate:"omitempty,max=200"`
	Address       *string  `json:"address" validate:"omitempty,min=1,max=500"`
	State         *string  `json:"state" validate:"omitempty,state"`
	Lat           *float64 `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lng           *float64 `json:"lng" validate:"omitempty,gte=-180,lte=180"`
	Description   *string  `json:"description" validate:"omitempty,max=5000"`
	DescriptionBM *string  `json:"description_bm" validate:"omitempty,max=5000"`
	Status        *string  `json:"status" validate:"omitempty,oneof=pending approved rejected"`
}

// Fields renders only the fields that are set.
func (u MosqueUpdate) Fields() map[string]any {
	f := map[string]any{}
	setString(f, "name", u.Name)
	setString(f, "name_bm", u.NameBM)
	setString(f, "address", u.Address)
	setString(f, "state", u.State)
	setString(f, "description", u.Description)
	setString(f, "description_bm", u.DescriptionBM)
	setString(f, "status", u.Status)
	if u.Lat != nil {
		f["lat"] = *u.Lat
	}
	if u.Lng != nil {
		f["lng"] = *u.Lng
	}
	return f
}

// UpdateFromInput converts a full input into an update touching every field.
func UpdateFromInput(in MosqueInput) MosqueUpdate {
	u := MosqueUpdate{
		Name:          &in.Name,
		NameBM:        &in.NameBM,
		Address:       &in.Address,
		State:         &in.State,
		Lat:           in.Lat,
		Lng:           in.Lng,
		Description:   &in.Description,
		DescriptionBM: &in.DescriptionBM,
	}
	if in.Status != "" {
		u.Status = &in.Status
	}
	return u
}

func setString(f map[string]any, key string, v *string) {
	if v != nil {
		f[key] = *v
	}
}
