package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muazhazali/lepakmasjid/internal/apperrors"
	"github.com/muazhazali/lepakmasjid/internal/audit"
	"github.com/muazhazali/lepakmasjid/internal/middleware"
	"github.com/muazhazali/lepakmasjid/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const adminID = "admin0000000001"

type fakeUsers struct {
	err     error
	updated models.UserUpdate
	deleted string
}

func (f *fakeUsers) List(context.Context) ([]models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []models.User{{ID: "u1", Email: "a@example.com"}, {ID: "u2", Email: "b@example.com"}}, nil
}

func (f *fakeUsers) Get(_ context.Context, id string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.User{ID: id}, nil
}

func (f *fakeUsers) Update(_ context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.updated = upd
	u := &models.User{ID: id}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	return u, nil
}

func (f *fakeUsers) Delete(_ context.Context, id string) error {
	f.deleted = id
	return f.err
}

type fakeAudit struct {
	filter  models.AuditFilter
	page    int
	perPage int
}

func (f *fakeAudit) List(_ context.Context, filter models.AuditFilter, page, perPage int) (*audit.Page, error) {
	f.filter, f.page, f.perPage = filter, page, perPage
	return &audit.Page{Items: []models.AuditLog{{ID: "log1", Action: "approve"}}, Page: page, PerPage: perPage, TotalItems: 1, TotalPages: 1}, nil
}

func (f *fakeAudit) Get(_ context.Context, id string) (*models.AuditLog, error) {
	if id != "log1" {
		return nil, apperrors.NotFound("Audit log not found")
	}
	return &models.AuditLog{ID: id}, nil
}

func newRouter(users *fakeUsers, logs *fakeAudit) *gin.Engine {
	uh := NewUserHandlers(users)
	ah := NewAuditHandlers(logs)
	r := gin.New()
	g := r.Group("/admin", func(c *gin.Context) {
		c.Set(middleware.UserIDKey, adminID)
		c.Set(middleware.RoleKey, models.RoleAdmin)
		c.Next()
	})
	g.GET("/users", uh.ListUsersHandler())
	g.GET("/users/:id", uh.GetUserHandler())
	g.PATCH("/users/:id", uh.UpdateUserHandler())
	g.DELETE("/users/:id", uh.DeleteUserHandler())
	g.GET("/audit-logs", ah.ListHandler())
	g.GET("/audit-logs/:id", ah.GetHandler())
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
// Users
// ---------------------------------------------------------------------------

func TestListUsersHandler(t *testing.T) {
	w := send(newRouter(&fakeUsers{}, &fakeAudit{}), http.MethodGet, "/admin/users", "")
	require.Equal(t, http.StatusOK, w.Code)
	items := getJSON(w)["items"].([]interface{})
	assert.Len(t, items, 2)
}

func TestListUsersHandler_Error(t *testing.T) {
	w := send(newRouter(&fakeUsers{err: apperrors.FetchFailed(assert.AnError)}, &fakeAudit{}), http.MethodGet, "/admin/users", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestGetUserHandler_NotFound(t *testing.T) {
	w := send(newRouter(&fakeUsers{err: apperrors.NotFound("User not found")}, &fakeAudit{}), http.MethodGet, "/admin/users/nobody", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", getJSON(w)["error"])
}

func TestUpdateUserHandler_PromotesOther(t *testing.T) {
	svc := &fakeUsers{}
	w := send(newRouter(svc, &fakeAudit{}), http.MethodPatch, "/admin/users/u2", `{"role":"admin"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.updated.Role)
	assert.Equal(t, models.RoleAdmin, *svc.updated.Role)
	assert.Equal(t, models.RoleAdmin, getJSON(w)["role"])
}

func TestUpdateUserHandler_CannotDemoteSelf(t *testing.T) {
	svc := &fakeUsers{}
	w := send(newRouter(svc, &fakeAudit{}), http.MethodPatch, "/admin/users/"+adminID, `{"role":"user"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Nil(t, svc.updated.Role)
}

func TestUpdateUserHandler_InvalidBody(t *testing.T) {
	w := send(newRouter(&fakeUsers{}, &fakeAudit{}), http.MethodPatch, "/admin/users/u2", `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteUserHandler(t *testing.T) {
	svc := &fakeUsers{}
	w := send(newRouter(svc, &fakeAudit{}), http.MethodDelete, "/admin/users/u2", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "u2", svc.deleted)
}

func TestDeleteUserHandler_Self(t *testing.T) {
	svc := &fakeUsers{}
	w := send(newRouter(svc, &fakeAudit{}), http.MethodDelete, "/admin/users/"+adminID, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, svc.deleted)
}

// ---------------------------------------------------------------------------
// Audit logs
// ---------------------------------------------------------------------------

func TestAuditListHandler_BindsFilter(t *testing.T) {
	logs := &fakeAudit{}
	w := send(newRouter(&fakeUsers{}, logs), http.MethodGet,
		"/admin/audit-logs?action=approve&entityType=submission&actorId=admin0000000001&startDate=2026-01-01&page=2&perPage=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "approve", logs.filter.Action)
	assert.Equal(t, "submission", logs.filter.EntityType)
	assert.Equal(t, adminID, logs.filter.ActorID)
	assert.Equal(t, "2026-01-01", logs.filter.StartDate)
	assert.Equal(t, 2, logs.page)
	assert.Equal(t, 10, logs.perPage)

	body := getJSON(w)
	assert.EqualValues(t, 1, body["totalItems"])
}

func TestAuditListHandler_Defaults(t *testing.T) {
	logs := &fakeAudit{}
	w := send(newRouter(&fakeUsers{}, logs), http.MethodGet, "/admin/audit-logs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, logs.page)
	assert.Equal(t, 50, logs.perPage)
}

func TestAuditGetHandler(t *testing.T) {
	r := newRouter(&fakeUsers{}, &fakeAudit{})

	w := send(r, http.MethodGet, "/admin/audit-logs/log1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = send(r, http.MethodGet, "/admin/audit-logs/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
