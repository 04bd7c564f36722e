package sedekah

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func call(t *testing.T, upstream string) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	r.GET("/api/sedekah", NewProxy(upstream, time.Second, nil).Handler())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sedekah", nil))
	return w
}

func TestHandler_PassesThroughJSON(t *testing.T) {
	var gotUA, gotAccept string
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"nama":"Masjid Negara","qr":"https://example.com/qr.png"}]`))
	}))
	defer up.Close()

	w := call(t, up.URL)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"nama":"Masjid Negara","qr":"https://example.com/qr.png"}]`, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Mozilla/5.0", gotUA)
	assert.Equal(t, "application/json", gotAccept)
}

func TestHandler_NonJSONUpstream(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer up.Close()

	w := call(t, up.URL)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch"}`, w.Body.String())
}

func TestHandler_UpstreamDown(t *testing.T) {
	up := httptest.NewServer(http.NotFoundHandler())
	url := up.URL
	up.Close()

	w := call(t, url)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
