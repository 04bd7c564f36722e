package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/muazhazali/lepakmasjid/internal/telemetry"
)

func TestMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/api/v1/mosques/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	counter := telemetry.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/mosques/:id", "404")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/mosques/"+id, nil))
	}
	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestMetricsMiddleware_UnmatchedRoute(t *testing.T) {
	r := gin.New()
	r.Use(MetricsMiddleware())

	counter := telemetry.HTTPRequestsTotal.WithLabelValues("GET", unmatchedRoute, "404")
	before := testutil.ToFloat64(counter)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope/123", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
