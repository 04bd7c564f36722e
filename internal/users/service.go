// Package users manages accounts: registration, login, profile changes and the
// admin user list.
package users

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/muazhazali/lepakmasjid/internal/apperrors"
	"github.com/muazhazali/lepakmasjid/internal/models"
	"github.com/muazhazali/lepakmasjid/internal/recordsource"
)

const (
	listPerPage       = 100
	minPasswordLength = 8
	notFoundMessage   = "User not found"
	invalidResponse   = "Received an invalid response from the data service."
)

// Auditor records mutations without failing the caller.
type Auditor interface {
	Log(ctx context.Context, action, entityType, entityID string, before, after any)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(u models.User) (token string, expires time.Time, err error)
}

// Session is returned by Register and Login.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

type Service struct {
	src               recordsource.Source
	tokens            TokenIssuer
	audit             Auditor
	allowRegistration bool
	logger            *slog.Logger
}

func NewService(src recordsource.Source, tokens TokenIssuer, auditor Auditor, allowRegistration bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{src: src, tokens: tokens, audit: auditor, allowRegistration: allowRegistration, logger: logger}
}

func decode(raw []byte) (*models.User, error) {
	u, err := models.Decode[models.User](recordsource.CollectionUsers, raw)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrFetchFailed, invalidResponse, err)
	}
	return &u, nil
}

func validateID(id string) error {
	if !models.IsValidRecordID(id) {
		return apperrors.InvalidParameter("Invalid user ID format")
	}
	return nil
}

func (s *Service) log(ctx context.Context, action, id string, before, after any) {
	if s.audit != nil {
		s.audit.Log(ctx, action, models.EntityUser, id, before, after)
	}
}

// List returns every user, newest first.
func (s *Service) List(ctx context.Context) ([]models.User, error) {
	raws, _, err := recordsource.ListAll(ctx, s.src, recordsource.CollectionUsers, listPerPage,
		recordsource.ListOptions{Sort: "-created"})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch users", "error", err)
		return nil, apperrors.FetchFailed(err)
	}
	items, err := models.DecodeAll[models.User](recordsource.CollectionUsers, raws)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrFetchFailed, invalidResponse, err)
	}
	slices.SortStableFunc(items, func(a, b models.User) int {
		return cmp.Compare(b.Created.UnixMilliOrEpoch(), a.Created.UnixMilliOrEpoch())
	})
	return items, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	raw, err := s.src.GetOne(ctx, recordsource.CollectionUsers, id, recordsource.GetOptions{})
	if err != nil {
		return nil, apperrors.SanitizeNotFound(err, notFoundMessage)
	}
	return decode(raw)
}

// snapshot reads a user for an audit before-image; nil on failure.
func (s *Service) snapshot(ctx context.Context, id string) any {
	u, err := s.Get(ctx, id)
	if err != nil {
		s.logger.DebugContext(ctx, "could not read user before change", "user_id", id, "error", err)
		return nil
	}
	return u
}

// Update is the admin-side change of name, email, role or verification.
func (s *Service) Update(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if err := models.Validate(upd); err != nil {
		return nil, apperrors.InvalidParameter(err.Error())
	}
	fields := upd.Fields()
	if len(fields) == 0 {
		return nil, apperrors.InvalidParameter("No changes to apply")
	}

	before := s.snapshot(ctx, id)
	raw, err := s.src.Update(ctx, recordsource.CollectionUsers, id, fields)
	if err != nil {
		return nil, apperrors.SanitizeNotFound(err, notFoundMessage)
	}
	u, err := decode(raw)
	if err != nil {
		return nil, err
	}
	s.log(ctx, models.ActionUpdate, id, before, u)
	return u, nil
}

// UpdateProfile changes the caller's own name or email.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.User, error) {
	if err := validateID(userID); err != nil {
		return nil, err
	}
	if err := models.Validate(upd); err != nil {
		return nil, apperrors.InvalidParameter(err.Error())
	}
	fields := map[string]any{}
	if upd.Name != nil {
		fields["name"] = strings.TrimSpace(*upd.Name)
	}
	if upd.Email != nil {
		fields["email"] = strings.TrimSpace(*upd.Email)
	}
	if len(fields) == 0 {
		return nil, apperrors.InvalidParameter("No changes to apply")
	}
	raw, err := s.src.Update(ctx, recordsource.CollectionUsers, userID, fields)
	if err != nil {
		return nil, apperrors.SanitizeNotFound(err, notFoundMessage)
	}
	return decode(raw)
}

// UpdatePassword re-authenticates with the current password before setting
// the new one.
func (s *Service) UpdatePassword(ctx context.Context, userID string, in models.PasswordChange) error {
	if err := validateID(userID); err != nil {
		return err
	}
	if err := models.Validate(in); err != nil {
		return apperrors.InvalidParameter(err.Error())
	}
	if len(in.Password) < minPasswordLength {
		return apperrors.InvalidParameter("Password must be at least 8 characters")
	}
	if in.Password != in.PasswordConfirm {
		return apperrors.InvalidParameter("Passwords do not match")
	}

	u, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := s.src.AuthWithPassword(ctx, recordsource.CollectionUsers, u.Email, in.OldPassword); err != nil {
		if recordsource.IsClientError(err) {
			return apperrors.InvalidParameter("Current password is incorrect")
		}
		return apperrors.Sanitize(err)
	}

	_, err = s.src.Update(ctx, recordsource.CollectionUsers, userID, map[string]any{
		"oldPassword":     in.OldPassword,
		"password":        in.Password,
		"passwordConfirm": in.PasswordConfirm,
	})
	if err != nil {
		return apperrors.SanitizeNotFound(err, notFoundMessage)
	}
	return nil
}

// RequestPasswordReset starts a reset. Unknown emails are not reported.
func (s *Service) RequestPasswordReset(ctx context.Context, in models.PasswordResetInput) error {
	if err := models.Validate(in); err != nil {
		return apperrors.InvalidParameter("A valid email is required")
	}
	err := s.src.RequestPasswordReset(ctx, recordsource.CollectionUsers, in.Email)
	switch {
	case err == nil:
		return nil
	case recordsource.IsClientError(err):
		s.logger.InfoContext(ctx, "password reset not started", "error", err)
		return nil
	default:
		return apperrors.Sanitize(err)
	}
}

// Delete removes an account.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	before := s.snapshot(ctx, id)
	if err := s.src.Delete(ctx, recordsource.CollectionUsers, id); err != nil {
		return apperrors.SanitizeNotFound(err, notFoundMessage)
	}
	s.log(ctx, models.ActionDelete, id, before, nil)
	return nil
}

// Register creates a regular account and signs the caller in.
func (s *Service) Register(ctx context.Context, in models.RegisterInput) (*Session, error) {
	if !s.allowRegistration {
		return nil, apperrors.Forbidden("Registration is disabled")
	}
	if err := models.Validate(in); err != nil {
		return nil, apperrors.InvalidParameter(err.Error())
	}
	raw, err := s.src.Create(ctx, recordsource.CollectionUsers, map[string]any{
		"email":           strings.TrimSpace(in.Email),
		"password":        in.Password,
		"passwordConfirm": in.PasswordConfirm,
		"name":            strings.TrimSpace(in.Name),
		"role":            "",
	})
	if err != nil {
		if recordsource.IsClientError(err) {
			return nil, apperrors.Wrap(apperrors.ErrInvalidParameter, "Unable to register with this email", err)
		}
		return nil, apperrors.Sanitize(err)
	}
	u, err := decode(raw)
	if err != nil {
		return nil, err
	}
	return s.session(*u)
}

// Login verifies credentials and issues a session token.
func (s *Service) Login(ctx context.Context, in models.LoginInput) (*Session, error) {
	if err := models.Validate(in); err != nil {
		return nil, apperrors.InvalidParameter(err.Error())
	}
	raw, err := s.src.AuthWithPassword(ctx, recordsource.CollectionUsers, strings.TrimSpace(in.Email), in.Password)
	if err != nil {
		if recordsource.IsClientError(err) {
			return nil, apperrors.Unauthenticated("Invalid email or password")
		}
		return nil, apperrors.Sanitize(err)
	}
	u, err := decode(raw)
	if err != nil {
		return nil, err
	}
	return s.session(*u)
}

func (s *Service) session(u models.User) (*Session, error) {
	token, expires, err := s.tokens.Issue(u)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrFetchFailed, "Unable to sign in. Please try again later.", err)
	}
	return &Session{Token: token, ExpiresAt: expires, User: u}, nil
}
