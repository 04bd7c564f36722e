package models

import "encoding/json"

// Submission types.
const (
	SubmissionNewMosque  = "new_mosque"
	SubmissionEditMosque = "edit_mosque"
)

// Submission is a contributor's proposed create or edit of a mosque. Data holds
// the proposed mosque payload as an opaque document.
type Submission struct {
	ID              string          `json:"id" validate:"required"`
	Type            string          `json:"type" validate:"required,oneof=new_mosque edit_mosque"`
	MosqueID        string          `json:"mosque_id"`
	Data            json.RawMessage `json:"data"`
	Status          string          `json:"status" validate:"omitempty,oneof=pending approved rejected"`
	SubmittedBy     string          `json:"submitted_by"`
	SubmittedAt     DateTime        `json:"submitted_at"`
	ReviewedBy      string          `json:"reviewed_by"`
	ReviewedAt      DateTime        `json:"reviewed_at"`
	RejectionReason string          `json:"rejection_reason"`
	Image           string          `json:"image"`
	Created         DateTime        `json:"created"`
	Updated         DateTime        `json:"updated"`
}

// IsPending reports whether the submission can still be reviewed. An absent
// status counts as pending.
func (s *Submission) IsPending() bool {
	return s.Status == "" || s.Status == StatusPending
}

// SubmissionPayload is the decoded Data of a submission.
type SubmissionPayload struct {
	MosqueInput
	Amenities []MosqueAmenityInput `json:"amenities" validate:"omitempty,dive"`
}

// SubmissionInput is what a contributor sends.
type SubmissionInput struct {
	Type     string            `json:"type" validate:"required,oneof=new_mosque edit_mosque"`
	MosqueID string            `json:"mosque_id" validate:"omitempty,recordid"`
	Data     SubmissionPayload `json:"data"`
}

// RejectInput carries the reviewer's reason.
type RejectInput struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// Payload decodes Data. An empty document decodes to a zero payload.
func (s *Submission) Payload() (SubmissionPayload, error) {
	var p SubmissionPayload
	if len(s.Data) == 0 || string(s.Data) == "null" {
		return p, nil
	}
	if err := codec.Unmarshal(s.Data, &p); err != nil {
		return p, &DecodeError{Collection: "submissions", Field: "data", Err: err}
	}
	return p, nil
}
