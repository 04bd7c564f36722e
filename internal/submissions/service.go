// Package submissions implements the contribution workflow: users propose new
// mosques or edits, and admins approve or reject them. Approval applies the
// proposal to the mosques collection.
package submissions

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/muazhazali/lepakmasjid/internal/apperrors"
	"github.com/muazhazali/lepakmasjid/internal/models"
	"github.com/muazhazali/lepakmasjid/internal/recordsource"
)

const (
	listPerPage     = 100
	notFoundMessage = "Submission not found"
	invalidResponse = "Received an invalid response from the data service."
)

// Auditor records mutations without failing the caller.
type Auditor interface {
	Log(ctx context.Context, action, entityType, entityID string, before, after any)
}

// AmenityReplacer applies a desired amenity set to a mosque.
type AmenityReplacer interface {
	ReplaceAll(ctx context.Context, mosqueID string, desired []models.MosqueAmenityInput) ([]models.MosqueAmenity, error)
}

type Service struct {
	src       recordsource.Source
	amenities AmenityReplacer
	audit     Auditor
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(src recordsource.Source, amenities AmenityReplacer, auditor Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{src: src, amenities: amenities, audit: auditor, logger: logger, now: time.Now}
}

func (s *Service) timestamp() string {
	return models.NewDateTime(s.now()).String()
}

func (s *Service) log(ctx context.Context, action, id string, before, after any) {
	if s.audit != nil {
		s.audit.Log(ctx, action, models.EntitySubmission, id, before, after)
	}
}

func decodeFailed(err error) error {
	return apperrors.Wrap(apperrors.ErrFetchFailed, invalidResponse, err)
}

func statusFilter(status string) (recordsource.Expr, error) {
	switch status {
	case "":
		return nil, nil
	case models.StatusPending, models.StatusApproved, models.StatusRejected:
		return recordsource.Eq("status", status), nil
	default:
		return nil, apperrors.InvalidParameter("Invalid status parameter")
	}
}

// List returns every submission, optionally with one status, newest first.
func (s *Service) List(ctx context.Context, status string) ([]models.Submission, error) {
	filter, err := statusFilter(status)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, filter)
}

// ListMine returns the submissions of one user.
func (s *Service) ListMine(ctx context.Context, userID, status string) ([]models.Submission, error) {
	if !models.IsValidRecordID(userID) {
		return nil, apperrors.Unauthenticated("Authentication required. Please log in.")
	}
	filter, err := statusFilter(status)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, recordsource.AllOf(recordsource.Eq("submitted_by", userID), filter))
}

func (s *Service) list(ctx context.Context, filter recordsource.Expr) ([]models.Submission, error) {
	raws, _, err := recordsource.ListAll(ctx, s.src, recordsource.CollectionSubmissions, listPerPage,
		recordsource.ListOptions{Filter: filter, Sort: "-submitted_at"})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch submissions", "error", err)
		return nil, apperrors.FetchFailed(err)
	}
	items, err := models.DecodeAll[models.Submission](recordsource.CollectionSubmissions, raws)
	if err != nil {
		return nil, decodeFailed(err)
	}
	slices.SortStableFunc(items, func(a, b models.Submission) int {
		return cmp.Compare(b.SubmittedAt.UnixMilliOrEpoch(), a.SubmittedAt.UnixMilliOrEpoch())
	})
	return items, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Submission, error) {
	if !models.IsValidRecordID(id) {
		return nil, apperrors.InvalidParameter("Invalid submission ID format")
	}
	raw, err := s.src.GetOne(ctx, recordsource.CollectionSubmissions, id, recordsource.GetOptions{})
	if err != nil {
		return nil, apperrors.SanitizeNotFound(err, notFoundMessage)
	}
	sub, err := models.Decode[models.Submission](recordsource.CollectionSubmissions, raw)
	if err != nil {
		return nil, decodeFailed(err)
	}
	return &sub, nil
}

// Create records a pending submission for userID.
func (s *Service) Create(ctx context.Context, userID string, in models.SubmissionInput) (*models.Submission, error) {
	if !models.IsValidRecordID(userID) {
		return nil, apperrors.Unauthenticated("Authentication required. Please log in.")
	}
	if err := models.Validate(in); err != nil {
		return nil, apperrors.InvalidParameter(err.Error())
	}
	if in.Type == models.SubmissionEditMosque && in.MosqueID == "" {
		return nil, apperrors.InvalidParameter("mosque_id is required for edits")
	}
	if in.Type == models.SubmissionEditMosque {
		if _, err := s.src.GetOne(ctx, recordsource.CollectionMosques, in.MosqueID, recordsource.GetOptions{}); err != nil {
			return nil, apperrors.SanitizeNotFound(err, "Mosque not found")
		}
	}

	fields := map[string]any{
		"type":         in.Type,
		"data":         in.Data,
		"status":       models.StatusPending,
		"submitted_by": userID,
		"submitted_at": s.timestamp(),
	}
	if in.Type == models.SubmissionEditMosque {
		fields["mosque_id"] = in.MosqueID
	}
	raw, err := s.src.Create(ctx, recordsource.CollectionSubmissions, fields)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create submission", "error", err)
		return nil, apperrors.Sanitize(err)
	}
	sub, err := models.Decode[models.Submission](recordsource.CollectionSubmissions, raw)
	if err != nil {
		return nil, decodeFailed(err)
	}
	s.log(ctx, models.ActionCreate, sub.ID, nil, sub)
	return &sub, nil
}

func (s *Service) pending(ctx context.Context, id string) (*models.Submission, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sub.IsPending() {
		return nil, apperrors.Conflict("Submission has already been reviewed")
	}
	return sub, nil
}

// Approve applies a pending submission and marks it approved. A new mosque is
// created approved and owned by the submitter; an edit updates the mosque.
// Proposed amenities, when present, replace the mosque's amenities. Amenity
// failures are logged and do not undo the approval.
//
// With a transactional Record Source the mosque write and the status change
// commit together. Otherwise the created mosque's id is recorded on the
// submission before the status change, and a retried approval reuses that
// mosque instead of creating another.
func (s *Service) Approve(ctx context.Context, id, reviewerID string) (*models.Submission, error) {
	sub, err := s.pending(ctx, id)
	if err != nil {
		return nil, err
	}
	payload, err := sub.Payload()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidParameter, "Submission data is invalid", err)
	}

	var (
		mosqueID string
		after    *models.Submission
		written  []mosqueWrite
	)
	approve := func(src recordsource.Source) error {
		var err error
		mosqueID, written, err = s.applyMosque(ctx, src, sub, payload)
		if err != nil {
			return err
		}
		after, err = s.update(ctx, src, sub.ID, map[string]any{
			"status":      models.StatusApproved,
			"reviewed_by": reviewerID,
			"reviewed_at": s.timestamp(),
			"mosque_id":   mosqueID,
		})
		return err
	}

	if tx, ok := s.src.(recordsource.Transactor); ok {
		if err := tx.RunInTx(ctx, approve); err != nil {
			s.logger.ErrorContext(ctx, "submission approval rolled back", "submission_id", sub.ID, "error", err)
			return nil, err
		}
	} else if err := approve(s.src); err != nil {
		// Whatever reached the mosques collection stays there.
		s.logMosqueWrites(ctx, written)
		return nil, err
	}
	s.logMosqueWrites(ctx, written)

	if payload.Amenities != nil && s.amenities != nil {
		if _, err := s.amenities.ReplaceAll(ctx, mosqueID, payload.Amenities); err != nil {
			s.logger.WarnContext(ctx, "amenities from submission not fully applied",
				"submission_id", sub.ID, "mosque_id", mosqueID, "partial", errors.Is(err, apperrors.ErrPartialUpdate), "error", err)
		}
	}

	s.log(ctx, models.ActionApprove, after.ID, sub, after)
	return after, nil
}

// mosqueWrite is an audit entry for a mosque change made during approval,
// held back until the change is known to persist.
type mosqueWrite struct {
	action        string
	id            string
	before, after []byte
}

func (s *Service) applyMosque(ctx context.Context, src recordsource.Source, sub *models.Submission, payload models.SubmissionPayload) (string, []mosqueWrite, error) {
	// Status and ownership are decided here, never by the contributor.
	in := payload.MosqueInput
	in.Status = ""
	in.CreatedBy = ""
	if err := models.Validate(in); err != nil {
		return "", nil, apperrors.InvalidParameter(err.Error())
	}

	if sub.Type == models.SubmissionEditMosque {
		if !models.IsValidRecordID(sub.MosqueID) {
			return "", nil, apperrors.InvalidParameter("Submission has no valid mosque_id")
		}
		before, _ := src.GetOne(ctx, recordsource.CollectionMosques, sub.MosqueID, recordsource.GetOptions{})
		raw, err := src.Update(ctx, recordsource.CollectionMosques, sub.MosqueID, models.UpdateFromInput(in).Fields())
		if err != nil {
			return "", nil, apperrors.SanitizeNotFound(err, "Mosque not found")
		}
		return sub.MosqueID, []mosqueWrite{{models.ActionUpdate, sub.MosqueID, before, raw}}, nil
	}

	// A new_mosque submission only carries a mosque_id from an earlier,
	// interrupted approval.
	if sub.MosqueID != "" {
		_, err := src.GetOne(ctx, recordsource.CollectionMosques, sub.MosqueID, recordsource.GetOptions{})
		switch {
		case err == nil:
			s.logger.InfoContext(ctx, "reusing mosque from interrupted approval", "submission_id", sub.ID, "mosque_id", sub.MosqueID)
			return sub.MosqueID, nil, nil
		case !recordsource.IsNotFound(err):
			return "", nil, apperrors.Sanitize(err)
		}
	}

	fields := in.Fields()
	fields["status"] = models.StatusApproved
	if sub.SubmittedBy != "" {
		fields["created_by"] = sub.SubmittedBy
	}
	if sub.Image != "" {
		fields["image"] = sub.Image
	}
	raw, err := src.Create(ctx, recordsource.CollectionMosques, fields)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create mosque from submission", "submission_id", sub.ID, "error", err)
		return "", nil, apperrors.Sanitize(err)
	}
	m, err := models.Decode[models.Mosque](recordsource.CollectionMosques, raw)
	if err != nil {
		return "", nil, decodeFailed(err)
	}

	if _, err := src.Update(ctx, recordsource.CollectionSubmissions, sub.ID, map[string]any{"mosque_id": m.ID}); err != nil {
		s.logger.ErrorContext(ctx, "failed to link submission to created mosque", "submission_id", sub.ID, "mosque_id", m.ID, "error", err)
		if derr := src.Delete(ctx, recordsource.CollectionMosques, m.ID); derr != nil {
			s.logger.ErrorContext(ctx, "failed to remove unlinked mosque", "mosque_id", m.ID, "error", derr)
			return "", []mosqueWrite{{models.ActionCreate, m.ID, nil, raw}}, apperrors.Sanitize(err)
		}
		return "", nil, apperrors.Sanitize(err)
	}
	return m.ID, []mosqueWrite{{models.ActionCreate, m.ID, nil, raw}}, nil
}

func (s *Service) logMosqueWrites(ctx context.Context, writes []mosqueWrite) {
	for _, w := range writes {
		s.logMosque(ctx, w.action, w.id, w.before, w.after)
	}
}

func (s *Service) logMosque(ctx context.Context, action, id string, before, after []byte) {
	if s.audit == nil {
		return
	}
	var b, a any
	if before != nil {
		b = json.RawMessage(before)
	}
	if after != nil {
		a = json.RawMessage(after)
	}
	s.audit.Log(ctx, action, models.EntityMosque, id, b, a)
}

// Reject marks a pending submission rejected with a reason.
func (s *Service) Reject(ctx context.Context, id, reviewerID string, in models.RejectInput) (*models.Submission, error) {
	if err := models.Validate(in); err != nil {
		return nil, apperrors.InvalidParameter("A rejection reason is required")
	}
	sub, err := s.pending(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.review(ctx, sub, models.ActionReject, map[string]any{
		"status":           models.StatusRejected,
		"reviewed_by":      reviewerID,
		"reviewed_at":      s.timestamp(),
		"rejection_reason": in.Reason,
	})
}

func (s *Service) review(ctx context.Context, before *models.Submission, action string, fields map[string]any) (*models.Submission, error) {
	after, err := s.update(ctx, s.src, before.ID, fields)
	if err != nil {
		return nil, err
	}
	s.log(ctx, action, after.ID, before, after)
	return after, nil
}

func (s *Service) update(ctx context.Context, src recordsource.Source, id string, fields map[string]any) (*models.Submission, error) {
	raw, err := src.Update(ctx, recordsource.CollectionSubmissions, id, fields)
	if err != nil {
		return nil, apperrors.SanitizeNotFound(err, notFoundMessage)
	}
	sub, err := models.Decode[models.Submission](recordsource.CollectionSubmissions, raw)
	if err != nil {
		return nil, decodeFailed(err)
	}
	return &sub, nil
}
