package submissions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muazhazali/lepakmasjid/internal/apperrors"
	"github.com/muazhazali/lepakmasjid/internal/auth"
	"github.com/muazhazali/lepakmasjid/internal/cache"
	"github.com/muazhazali/lepakmasjid/internal/middleware"
	"github.com/muazhazali/lepakmasjid/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ---------------------------------------------------------------------------
// Test setup helpers
// ---------------------------------------------------------------------------

const (
	alice = "alice0000000001"
	bob   = "bob000000000001"
	subID = "sub000000000001"
)

type fakeService struct {
	listCalls int
	err       error
	owner     string
	userID    string
	status    string
	input     models.SubmissionInput
	reviewer  string
	reason    string
}

func (f *fakeService) List(_ context.Context, status string) ([]models.Submission, error) {
	f.listCalls++
	f.status = status
	return []models.Submission{{ID: subID, Status: models.StatusPending}}, f.err
}

func (f *fakeService) ListMine(_ context.Context, userID, status string) ([]models.Submission, error) {
	f.userID, f.status = userID, status
	return []models.Submission{{ID: subID, SubmittedBy: userID}}, f.err
}

func (f *fakeService) Get(_ context.Context, id string) (*models.Submission, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Submission{ID: id, SubmittedBy: f.owner}, nil
}

func (f *fakeService) Create(_ context.Context, userID string, in models.SubmissionInput) (*models.Submission, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.userID, f.input = userID, in
	return &models.Submission{ID: subID, Type: in.Type, SubmittedBy: userID, Status: models.StatusPending}, nil
}

func (f *fakeService) Approve(_ context.Context, id, reviewerID string) (*models.Submission, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.reviewer = reviewerID
	return &models.Submission{ID: id, Status: models.StatusApproved, ReviewedBy: reviewerID}, nil
}

func (f *fakeService) Reject(_ context.Context, id, reviewerID string, in models.RejectInput) (*models.Submission, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.reviewer, f.reason = reviewerID, in.Reason
	return &models.Submission{ID: id, Status: models.StatusRejected, RejectionReason: in.Reason}, nil
}

// newRouter registers every handler behind a stub that installs claims for
// userID with role.
func newRouter(svc *fakeService, userID, role string) *gin.Engine {
	c := cache.New(cache.NewMemoryStore(), "test:", map[string]time.Duration{cache.Submissions: time.Minute}, nil)
	h := NewHandlers(svc, c)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Set(middleware.RoleKey, role)
		c.Set(middleware.ClaimsKey, &auth.Claims{UserID: userID, Role: role})
		c.Next()
	})
	r.POST("/submissions", h.CreateHandler())
	r.GET("/submissions/:id", h.GetHandler())
	r.GET("/me/submissions", h.ListMineHandler())
	r.GET("/admin/submissions", h.ListHandler())
	r.POST("/admin/submissions/:id/approve", h.ApproveHandler())
	r.POST("/admin/submissions/:id/reject", h.RejectHandler())
	return r
}

func send(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func getJSON(resp *httptest.ResponseRecorder) map[string]interface{} {
	var m map[string]interface{}
	json.Unmarshal(resp.Body.Bytes(), &m)
	return m
}

// ---------------------------------------------------------------------------
// Contributor routes
// ---------------------------------------------------------------------------

func TestCreateHandler(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc, alice, "")

	w := send(r, http.MethodPost, "/submissions",
		`{"type":"new_mosque","data":{"name":"Surau Al-Ikhlas","address":"Kampung Baru","state":"Kuala Lumpur","lat":3.16,"lng":101.7,"amenities":[{"amenity_id":"a1"}]}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, alice, svc.userID)
	assert.Equal(t, "Surau Al-Ikhlas", svc.input.Data.Name)
	require.Len(t, svc.input.Data.Amenities, 1)
	assert.Equal(t, models.StatusPending, getJSON(w)["status"])
}

func TestCreateHandler_Invalid(t *testing.T) {
	r := newRouter(&fakeService{err: apperrors.InvalidParameter("Invalid mosque_id format")}, alice, "")
	w := send(r, http.MethodPost, "/submissions", `{"type":"edit_mosque"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid mosque_id format", getJSON(w)["error"])
}

func TestListMineHandler(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc, alice, "")

	w := send(r, http.MethodGet, "/me/submissions?status=rejected", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, alice, svc.userID)
	assert.Equal(t, "rejected", svc.status)
}

func TestGetHandler_Visibility(t *testing.T) {
	tests := []struct {
		name   string
		viewer string
		role   string
		want   int
	}{
		{"owner", alice, "", http.StatusOK},
		{"someone else", bob, "", http.StatusNotFound},
		{"admin", bob, models.RoleAdmin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(&fakeService{owner: alice}, tt.viewer, tt.role)
			w := send(r, http.MethodGet, "/submissions/"+subID, "")
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

// ---------------------------------------------------------------------------
// Admin routes
// ---------------------------------------------------------------------------

func TestListHandler_CachedPerStatusUntilReview(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc, bob, models.RoleAdmin)

	send(r, http.MethodGet, "/admin/submissions?status=pending", "")
	send(r, http.MethodGet, "/admin/submissions?status=pending", "")
	assert.Equal(t, 1, svc.listCalls)

	send(r, http.MethodGet, "/admin/submissions", "")
	assert.Equal(t, 2, svc.listCalls)

	w := send(r, http.MethodPost, "/admin/submissions/"+subID+"/approve", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, bob, svc.reviewer)

	send(r, http.MethodGet, "/admin/submissions?status=pending", "")
	assert.Equal(t, 3, svc.listCalls)
}

func TestApproveHandler_Conflict(t *testing.T) {
	r := newRouter(&fakeService{err: apperrors.Conflict("Submission has already been reviewed")}, bob, models.RoleAdmin)
	w := send(r, http.MethodPost, "/admin/submissions/"+subID+"/approve", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestApproveHandler_FailureStillInvalidates(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc, bob, models.RoleAdmin)

	send(r, http.MethodGet, "/admin/submissions", "")
	send(r, http.MethodGet, "/admin/submissions", "")
	require.Equal(t, 1, svc.listCalls)

	svc.err = apperrors.FetchFailed(errors.New("status update failed"))
	w := send(r, http.MethodPost, "/admin/submissions/"+subID+"/approve", "")
	require.Equal(t, http.StatusBadGateway, w.Code)

	svc.err = nil
	send(r, http.MethodGet, "/admin/submissions", "")
	assert.Equal(t, 2, svc.listCalls)
}

func TestRejectHandler(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc, bob, models.RoleAdmin)

	w := send(r, http.MethodPost, "/admin/submissions/"+subID+"/reject", `{"reason":"Duplicate of an existing mosque"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Duplicate of an existing mosque", svc.reason)
	assert.Equal(t, models.StatusRejected, getJSON(w)["status"])

	w = send(r, http.MethodPost, "/admin/submissions/"+subID+"/reject", ``)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
