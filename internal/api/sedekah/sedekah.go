// Package sedekah proxies the public donation QR directory so the front end
// can read it without running into the upstream's CORS policy.
package sedekah

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
)

// DefaultUpstreamURL is the directory used when none is configured.
const DefaultUpstreamURL = "https://sedekahjeapi.netlify.app/api/masjid"

// maxBodyBytes caps how much of the upstream response is read.
const maxBodyBytes = 16 << 20

// Proxy fetches the upstream directory on every request.
type Proxy struct {
	upstream string
	client   *http.Client
	logger   *slog.Logger
}

// NewProxy creates a Proxy. An empty upstream falls back to
// DefaultUpstreamURL; a zero timeout means ten seconds.
func NewProxy(upstream string, timeout time.Duration, logger *slog.Logger) *Proxy {
	if upstream == "" {
		upstream = DefaultUpstreamURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Proxy{
		upstream: upstream,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

func (p *Proxy) fetch(ctx context.Context) (jsoniter.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.upstream, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	// The upstream status is not checked; any JSON body is passed through.
	if !jsoniter.Valid(body) {
		return nil, fmt.Errorf("upstream returned non-JSON body (status %d)", resp.StatusCode)
	}
	return body, nil
}

// @Summary      Donation QR directory
// @Description  Passes through the public sedekah QR directory.
// @Tags         Sedekah
// @Produce      json
// @Success      200  {object}  interface{}
// @Failure      500  {object}  map[string]interface{}  "Failed to fetch"
// @Router       /api/sedekah [get]
func (p *Proxy) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := p.fetch(c.Request.Context())
		if err != nil {
			p.logger.Warn("sedekah upstream fetch failed", "upstream", p.upstream, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch"})
			return
		}
		c.Header("Access-Control-Allow-Origin", "*")
		c.Data(http.StatusOK, "application/json", body)
	}
}
