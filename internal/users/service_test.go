package users_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muazhazali/lepakmasjid/internal/apperrors"
	"github.com/muazhazali/lepakmasjid/internal/models"
	"github.com/muazhazali/lepakmasjid/internal/recordsource"
	"github.com/muazhazali/lepakmasjid/internal/recordsource/recordsourcetest"
	"github.com/muazhazali/lepakmasjid/internal/users"
)

type stubIssuer struct{ err error }

func (s stubIssuer) Issue(u models.User) (string, time.Time, error) {
	if s.err != nil {
		return "", time.Time{}, s.err
	}
	return "token-for-" + u.ID + "-" + u.Role, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

type auditSpy struct{ actions []string }

func (a *auditSpy) Log(_ context.Context, action, entityType, _ string, _, _ any) {
	a.actions = append(a.actions, action+"/"+entityType)
}

var aliceID = recordsourcetest.ID("u", 1)

func seedAlice(m *recordsourcetest.Memory) {
	m.Seed(recordsource.CollectionUsers, map[string]any{
		"id": aliceID, "email": "alice@example.com", "password": "correct-horse", "name": "Alice", "role": "admin",
	})
}

func newService(src recordsource.Source, audit users.Auditor) *users.Service {
	return users.NewService(src, stubIssuer{}, audit, true, nil)
}

// ---------------------------------------------------------------------------
// Login / Register
// ---------------------------------------------------------------------------

func TestLogin(t *testing.T) {
	src := recordsourcetest.New()
	seedAlice(src)
	svc := newService(src, nil)

	sess, err := svc.Login(context.Background(), models.LoginInput{Email: "alice@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, "token-for-"+aliceID+"-admin", sess.Token)
	assert.True(t, sess.User.IsAdmin())

	_, err = svc.Login(context.Background(), models.LoginInput{Email: "alice@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	assert.Equal(t, "Invalid email or password", err.Error())

	_, err = svc.Login(context.Background(), models.LoginInput{Email: "not-an-email", Password: "x"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)
}

func TestLogin_SourceDown(t *testing.T) {
	src := recordsourcetest.New()
	src.Hook = func(recordsourcetest.Call) error {
		return &recordsource.Error{Err: errors.New("dial tcp: connection refused")}
	}
	_, err := newService(src, nil).Login(context.Background(), models.LoginInput{Email: "a@example.com", Password: "x"})
	assert.ErrorIs(t, err, apperrors.ErrFetchFailed)
	assert.NotContains(t, err.Error(), "dial tcp")
}

func TestRegister(t *testing.T) {
	src := recordsourcetest.New()
	svc := newService(src, nil)

	sess, err := svc.Register(context.Background(), models.RegisterInput{
		Email: "bob@example.com", Password: "longenough", PasswordConfirm: "longenough", Name: " Bob ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bob", sess.User.Name)
	assert.False(t, sess.User.IsAdmin())
	assert.NotEmpty(t, sess.Token)

	_, err = svc.Register(context.Background(), models.RegisterInput{Email: "c@example.com", Password: "longenough", PasswordConfirm: "different"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)
	assert.Equal(t, "Passwords do not match", err.Error())

	_, err = svc.Register(context.Background(), models.RegisterInput{Email: "c@example.com", Password: "short", PasswordConfirm: "short"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)
}

func TestRegister_Disabled(t *testing.T) {
	src := recordsourcetest.New()
	svc := users.NewService(src, stubIssuer{}, nil, false, nil)
	_, err := svc.Register(context.Background(), models.RegisterInput{Email: "bob@example.com", Password: "longenough", PasswordConfirm: "longenough"})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.Empty(t, src.Calls)
}

func TestRegister_TokenFailure(t *testing.T) {
	svc := users.NewService(recordsourcetest.New(), stubIssuer{err: errors.New("no secret")}, nil, true, nil)
	_, err := svc.Register(context.Background(), models.RegisterInput{Email: "bob@example.com", Password: "longenough", PasswordConfirm: "longenough"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "no secret")
}

// ---------------------------------------------------------------------------
// self service
// ---------------------------------------------------------------------------

func TestUpdatePassword(t *testing.T) {
	tests := []struct {
		name    string
		in      models.PasswordChange
		wantMsg string
	}{
		{"too short", models.PasswordChange{OldPassword: "correct-horse", Password: "short", PasswordConfirm: "short"}, "Password must be at least 8 characters"},
		{"mismatch", models.PasswordChange{OldPassword: "correct-horse", Password: "new-password", PasswordConfirm: "other-password"}, "Passwords do not match"},
		{"wrong current", models.PasswordChange{OldPassword: "nope", Password: "new-password", PasswordConfirm: "new-password"}, "Current password is incorrect"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := recordsourcetest.New()
			seedAlice(src)
			err := newService(src, nil).UpdatePassword(context.Background(), aliceID, tt.in)
			require.ErrorIs(t, err, apperrors.ErrInvalidParameter)
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.Empty(t, src.CallsFor("update", recordsource.CollectionUsers))
		})
	}

	t.Run("success", func(t *testing.T) {
		src := recordsourcetest.New()
		seedAlice(src)
		svc := newService(src, nil)
		err := svc.UpdatePassword(context.Background(), aliceID, models.PasswordChange{
			OldPassword: "correct-horse", Password: "new-password", PasswordConfirm: "new-password",
		})
		require.NoError(t, err)

		_, err = svc.Login(context.Background(), models.LoginInput{Email: "alice@example.com", Password: "new-password"})
		assert.NoError(t, err)
	})
}

func TestUpdateProfile(t *testing.T) {
	src := recordsourcetest.New()
	seedAlice(src)
	svc := newService(src, nil)

	name := "  Alice Tan "
	u, err := svc.UpdateProfile(context.Background(), aliceID, models.ProfileUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Alice Tan", u.Name)
	assert.Equal(t, "alice@example.com", u.Email)

	_, err = svc.UpdateProfile(context.Background(), aliceID, models.ProfileUpdate{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)

	bad := "nope"
	_, err = svc.UpdateProfile(context.Background(), aliceID, models.ProfileUpdate{Email: &bad})
	assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)
}

func TestRequestPasswordReset(t *testing.T) {
	src := recordsourcetest.New()
	svc := newService(src, nil)

	require.NoError(t, svc.RequestPasswordReset(context.Background(), models.PasswordResetInput{Email: "a@example.com"}))
	assert.Len(t, src.CallsFor("password-reset", recordsource.CollectionUsers), 1)

	assert.ErrorIs(t, svc.RequestPasswordReset(context.Background(), models.PasswordResetInput{Email: "x"}), apperrors.ErrInvalidParameter)

	src.Hook = func(recordsourcetest.Call) error {
		return recordsource.NewError(http.StatusBadRequest, "unknown email")
	}
	assert.NoError(t, svc.RequestPasswordReset(context.Background(), models.PasswordResetInput{Email: "ghost@example.com"}))

	src.Hook = func(recordsourcetest.Call) error {
		return recordsource.NewError(http.StatusServiceUnavailable, "smtp down")
	}
	assert.ErrorIs(t, svc.RequestPasswordReset(context.Background(), models.PasswordResetInput{Email: "a@example.com"}), apperrors.ErrFetchFailed)
}

// ---------------------------------------------------------------------------
// admin
// ---------------------------------------------------------------------------

func TestList_NewestFirst(t *testing.T) {
	src := recordsourcetest.New()
	src.Seed(recordsource.CollectionUsers, map[string]any{"email": "old@example.com", "created": "2023-01-01 00:00:00.000Z"})
	src.Seed(recordsource.CollectionUsers, map[string]any{"email": "new@example.com", "created": "2024-01-01 00:00:00.000Z"})
	src.Hook = func(c recordsourcetest.Call) error {
		if c.Opts.Sort != "" {
			return recordsource.NewError(http.StatusBadRequest, "sort not allowed")
		}
		return nil
	}

	items, err := newService(src, nil).List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "new@example.com", items[0].Email)
}

func TestUpdateAndDeleteAreAudited(t *testing.T) {
	src := recordsourcetest.New()
	seedAlice(src)
	audit := &auditSpy{}
	svc := newService(src, audit)

	role := "user"
	u, err := svc.Update(context.Background(), aliceID, models.UserUpdate{Role: &role})
	require.NoError(t, err)
	assert.False(t, u.IsAdmin())

	require.NoError(t, svc.Delete(context.Background(), aliceID))
	assert.ErrorIs(t, svc.Delete(context.Background(), aliceID), apperrors.ErrNotFound)

	_, err = svc.Get(context.Background(), aliceID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.Equal(t, []string{"update/user", "delete/user"}, audit.actions)
}
