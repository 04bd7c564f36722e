package mosques

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muazhazali/lepakmasjid/internal/apperrors"
	"github.com/muazhazali/lepakmasjid/internal/cache"
	"github.com/muazhazali/lepakmasjid/internal/export"
	"github.com/muazhazali/lepakmasjid/internal/models"
	mosquesvc "github.com/muazhazali/lepakmasjid/internal/mosques"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ---------------------------------------------------------------------------
// Test setup helpers
// ---------------------------------------------------------------------------

const testID = "abcdefghijklmno"

type fakeService struct {
	listCalls   int
	lastQuery   mosquesvc.Query
	items       []models.Mosque
	err         error
	created     models.MosqueInput
	updated     models.MosqueUpdate
	image       []byte
	deleteImage bool
	deleted     string
}

func (f *fakeService) List(_ context.Context, q mosquesvc.Query) (*mosquesvc.Page, error) {
	f.listCalls++
	f.lastQuery = q
	if f.err != nil {
		return nil, f.err
	}
	return &mosquesvc.Page{Items: f.items, Page: 1, PerPage: 12, TotalItems: len(f.items), TotalPages: 1}, nil
}

func (f *fakeService) ListAll(_ context.Context, q mosquesvc.Query) ([]models.Mosque, error) {
	f.lastQuery = q
	return f.items, f.err
}

func (f *fakeService) Get(_ context.Context, id string) (*models.Mosque, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Mosque{ID: id, Name: "Masjid Negara", Image: "mosques/" + id + "/a.jpg"}, nil
}

func (f *fakeService) Create(_ context.Context, in models.MosqueInput, image io.Reader) (*models.Mosque, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = in
	if image != nil {
		f.image, _ = io.ReadAll(image)
	}
	return &models.Mosque{ID: testID, Name: in.Name}, nil
}

func (f *fakeService) Update(_ context.Context, id string, upd models.MosqueUpdate, image io.Reader, deleteImage bool) (*models.Mosque, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.updated = upd
	f.deleteImage = deleteImage
	if image != nil {
		f.image, _ = io.ReadAll(image)
	}
	return &models.Mosque{ID: id}, nil
}

func (f *fakeService) Delete(_ context.Context, id string) error {
	f.deleted = id
	return f.err
}

func (f *fakeService) ListAllAdmin(context.Context) ([]models.Mosque, error) {
	return f.items, f.err
}

type fakeActivities struct{ mosqueID string }

func (f *fakeActivities) ListByMosque(_ context.Context, mosqueID string) ([]models.Activity, error) {
	f.mosqueID = mosqueID
	return []models.Activity{{ID: "act", Title: "Kuliah Maghrib"}}, nil
}

type fakeImages struct{}

func (fakeImages) URL(_ context.Context, ref string, _ time.Duration) (string, error) {
	return "https://cdn.example/" + ref, nil
}

func newRouter(t *testing.T, svc *fakeService) *gin.Engine {
	t.Helper()
	c := cache.New(cache.NewMemoryStore(), "test:", map[string]time.Duration{cache.Mosques: time.Minute}, nil)
	h := NewHandlers(svc, &fakeActivities{}, fakeImages{}, c, 1<<20)

	r := gin.New()
	r.GET("/mosques", h.ListHandler())
	r.GET("/mosques/all", h.ListAllHandler())
	r.GET("/mosques/:id", h.GetHandler())
	r.GET("/mosques/:id/activities", h.ActivitiesHandler())
	r.GET("/admin/mosques", h.AdminListHandler())
	r.GET("/admin/mosques/export", h.ExportHandler())
	r.POST("/admin/mosques", h.CreateHandler())
	r.PATCH("/admin/mosques/:id", h.UpdateHandler())
	r.DELETE("/admin/mosques/:id", h.DeleteHandler())
	return r
}

func do(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func jsonBody(v interface{}) *bytes.Buffer {
	b, _ := json.Marshal(v)
	return bytes.NewBuffer(b)
}

func getJSON(resp *httptest.ResponseRecorder) map[string]interface{} {
	var m map[string]interface{}
	json.Unmarshal(resp.Body.Bytes(), &m)
	return m
}

// ---------------------------------------------------------------------------
// Public listing
// ---------------------------------------------------------------------------

func TestListHandler_ParsesQueryAndResolvesImages(t *testing.T) {
	svc := &fakeService{items: []models.Mosque{{ID: testID, Name: "A", Image: "mosques/x/1.jpg"}, {ID: "b", Name: "B"}}}
	r := newRouter(t, svc)

	w := do(r, httptest.NewRequest(http.MethodGet, "/mosques?state=Selangor&amenities=wifi,+parking&search=jamek&sortBy=alphabetical&page=2&perPage=5", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, mosquesvc.Query{
		State: "Selangor", Amenities: []string{"wifi", "parking"}, Search: "jamek",
		SortBy: "alphabetical", Page: 2, PerPage: 5,
	}, svc.lastQuery)

	var page mosquesvc.Page
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Items, 2)
	assert.Equal(t, "https://cdn.example/mosques/x/1.jpg", page.Items[0].ImageURL)
	assert.Empty(t, page.Items[1].ImageURL)
}

func TestListHandler_CachedUntilMutation(t *testing.T) {
	svc := &fakeService{items: []models.Mosque{{ID: testID}}}
	r := newRouter(t, svc)

	do(r, httptest.NewRequest(http.MethodGet, "/mosques?state=Johor", nil))
	do(r, httptest.NewRequest(http.MethodGet, "/mosques?state=Johor", nil))
	assert.Equal(t, 1, svc.listCalls)

	do(r, httptest.NewRequest(http.MethodGet, "/mosques?state=Kedah", nil))
	assert.Equal(t, 2, svc.listCalls)

	w := do(r, httptest.NewRequest(http.MethodDelete, "/admin/mosques/"+testID, nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	do(r, httptest.NewRequest(http.MethodGet, "/mosques?state=Johor", nil))
	assert.Equal(t, 3, svc.listCalls)
}

func TestListHandler_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"invalid filter", apperrors.InvalidParameter("Invalid state"), http.StatusBadRequest},
		{"source down", apperrors.FetchFailed(errors.New("dial tcp: refused")), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(t, &fakeService{err: tt.err})
			w := do(r, httptest.NewRequest(http.MethodGet, "/mosques", nil))
			assert.Equal(t, tt.code, w.Code)
			assert.NotEmpty(t, getJSON(w)["error"])
		})
	}
}

func TestListAllHandler_IgnoresPaging(t *testing.T) {
	svc := &fakeService{items: []models.Mosque{{ID: testID}}}
	r := newRouter(t, svc)

	w := do(r, httptest.NewRequest(http.MethodGet, "/mosques/all?page=3&perPage=7", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, svc.lastQuery.Page)
	assert.Zero(t, svc.lastQuery.PerPage)
	assert.Len(t, getJSON(w)["items"], 1)
}

func TestGetHandler(t *testing.T) {
	r := newRouter(t, &fakeService{})
	w := do(r, httptest.NewRequest(http.MethodGet, "/mosques/"+testID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := getJSON(w)
	assert.Equal(t, "Masjid Negara", body["name"])
	assert.Equal(t, "https://cdn.example/mosques/"+testID+"/a.jpg", body["image_url"])
}

func TestGetHandler_NotFound(t *testing.T) {
	r := newRouter(t, &fakeService{err: apperrors.NotFound("Mosque not found")})
	w := do(r, httptest.NewRequest(http.MethodGet, "/mosques/"+testID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Mosque not found", getJSON(w)["error"])
}

func TestActivitiesHandler(t *testing.T) {
	r := newRouter(t, &fakeService{})
	w := do(r, httptest.NewRequest(http.MethodGet, "/mosques/"+testID+"/activities", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Kuliah Maghrib")
}

// ---------------------------------------------------------------------------
// Admin
// ---------------------------------------------------------------------------

func TestCreateHandler_JSON(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/admin/mosques", jsonBody(map[string]any{
		"name": "Masjid Putra", "address": "Putrajaya", "state": "Putrajaya", "lat": 2.93, "lng": 101.69,
	}))
	req.Header.Set("Content-Type", "application/json")
	w := do(r, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Masjid Putra", svc.created.Name)
	require.NotNil(t, svc.created.Lat)
	assert.InDelta(t, 2.93, *svc.created.Lat, 1e-9)
	assert.Nil(t, svc.image)
}

func TestCreateHandler_Multipart(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(t, svc)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("data", `{"name":"Masjid Kristal","address":"Kuala Terengganu","state":"Terengganu","lat":5.3,"lng":103.1}`))
	part, err := mw.CreateFormFile("image", "kristal.png")
	require.NoError(t, err)
	part.Write([]byte("png-bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/admin/mosques", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := do(r, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Masjid Kristal", svc.created.Name)
	assert.Equal(t, []byte("png-bytes"), svc.image)
}

func TestCreateHandler_BadBodies(t *testing.T) {
	r := newRouter(t, &fakeService{})

	req := httptest.NewRequest(http.MethodPost, "/admin/mosques", bytes.NewBufferString(`{"name":`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, do(r, req).Code)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("data", `not json`)
	mw.Close()
	req = httptest.NewRequest(http.MethodPost, "/admin/mosques", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := do(r, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid mosque data", getJSON(w)["error"])
}

func TestUpdateHandler_DeleteImage(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(t, svc)

	req := httptest.NewRequest(http.MethodPatch, "/admin/mosques/"+testID+"?delete_image=true", jsonBody(map[string]any{"name": "Baru"}))
	req.Header.Set("Content-Type", "application/json")
	w := do(r, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.deleteImage)
	require.NotNil(t, svc.updated.Name)
	assert.Equal(t, "Baru", *svc.updated.Name)
}

func TestUpdateHandler_MultipartDeleteField(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(t, svc)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("data", `{"address":"Jalan Baru"}`)
	mw.WriteField("delete_image", "true")
	mw.Close()
	req := httptest.NewRequest(http.MethodPatch, "/admin/mosques/"+testID, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := do(r, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.deleteImage)
	assert.Nil(t, svc.image)
}

func TestDeleteHandler_NotFound(t *testing.T) {
	r := newRouter(t, &fakeService{err: apperrors.NotFound("Mosque not found")})
	w := do(r, httptest.NewRequest(http.MethodDelete, "/admin/mosques/"+testID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportHandler(t *testing.T) {
	r := newRouter(t, &fakeService{items: []models.Mosque{{ID: testID, Name: "Masjid Jamek"}}})
	w := do(r, httptest.NewRequest(http.MethodGet, "/admin/mosques/export", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.ContentTypeXLSX, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "mosques-")
	assert.Equal(t, "PK", w.Body.String()[:2])
}
