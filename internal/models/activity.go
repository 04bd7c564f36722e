package models

// Activity status and type values.
const (
	ActivityActive    = "active"
	ActivityCancelled = "cancelled"

	ActivityOneOff    = "one_off"
	ActivityRecurring = "recurring"
	ActivityFixed     = "fixed"
)

// Activity is a mosque-scoped event or announcement.
type Activity struct {
	ID            string         `json:"id" validate:"required"`
	MosqueID      string         `json:"mosque_id"`
	Title         string         `json:"title"`
	TitleBM       string         `json:"title_bm"`
	Description   string         `json:"description"`
	DescriptionBM string         `json:"description_bm"`
	Type          string         `json:"type"`
	Schedule      map[string]any `json:"schedule_json"`
	StartDate     DateTime       `json:"start_date"`
	EndDate       DateTime       `json:"end_date"`
	Status        string         `json:"status,omitempty"`
	CreatedBy     string         `json:"created_by"`
	Created       DateTime       `json:"created"`
	Updated       DateTime       `json:"updated"`
}

// IsActive reports whether the activity should be shown. An absent status counts as active.
func (a *Activity) IsActive() bool {
	return a.Status == "" || a.Status == ActivityActive
}

// ActivityInput creates an activity.
type ActivityInput struct {
	MosqueID      string         `json:"mosque_id" validate:"required,recordid"`
	Title         string         `json:"title" validate:"required,max=200"`
	TitleBM       string         `json:"title_bm" validate:"max=200"`
	Description   string         `json:"description" validate:"max=5000"`
	DescriptionBM string         `json:"description_bm" validate:"max=5000"`
	Type          string         `json:"type" validate:"required,oneof=one_off recurring fixed"`
	Schedule      map[string]any `json:"schedule_json"`
	StartDate     string         `json:"start_date" validate:"omitempty,datetime_any"`
	EndDate       string         `json:"end_date" validate:"omitempty,datetime_any"`
	Status        string         `json:"status" validate:"omitempty,oneof=active cancelled"`
}

// Fields renders the input as a Record Source body; status defaults to active.
func (in ActivityInput) Fields(createdBy string) map[string]any {
	status := in.Status
	if status == "" {
		status = ActivityActive
	}
	f := map[string]any{
		"mosque_id":      in.MosqueID,
		"title":          in.Title,
		"title_bm":       in.TitleBM,
		"description":    in.Description,
		"description_bm": in.DescriptionBM,
		"type":           in.Type,
		"status":         status,
		"start_date":     in.StartDate,
		"end_date":       in.EndDate,
	}
	if in.Schedule != nil {
		f["schedule_json"] = in.Schedule
	}
	if createdBy != "" {
		f["created_by"] = createdBy
	}
	return f
}

// ActivityUpdate is a partial activity update.
type ActivityUpdate struct {
	Title         *string        `json:"title" validate:"omitempty,min=1,max=200"`
	TitleBM       *string        `json:"title_bm" validate:"omitempty,max=200"`
	Description   *string        `json:"description" validate:"omitempty,max=5000"`
	DescriptionBM *string        `json:"description_bm" validate:"omitempty,max=5000"`
	Type          *string        `json:"type" validate:"omitempty,oneof=one_off recurring fixed"`
	Schedule      map[string]any `json:"schedule_json"`
	StartDate     *string        `json:"start_date" validate:"omitempty,datetime_any"`
	EndDate       *string        `json:"end_date" validate:"omitempty,datetime_any"`
	Status        *string        `json:"status" validate:"omitempty,oneof=active cancelled"`
}

// Fields renders only the fields that are set.
func (u ActivityUpdate) Fields() map[string]any {
	f := map[string]any{}
	setString(f, "title", u.Title)
	setString(f, "title_bm", u.TitleBM)
	setString(f, "description", u.Description)
	setString(f, "description_bm", u.DescriptionBM)
	setString(f, "type", u.Type)
	setString(f, "start_date", u.StartDate)
	setString(f, "end_date", u.EndDate)
	setString(f, "status", u.Status)
	if u.Schedule != nil {
		f["schedule_json"] = u.Schedule
	}
	return f
}
