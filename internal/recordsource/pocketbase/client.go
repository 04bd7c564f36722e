// Package pocketbase implements recordsource.Source over the PocketBase REST
// protocol: /api/collections/{collection}/records for CRUD and listing, and
// /api/collections/{collection}/auth-with-password for credential checks.
//
// When superuser credentials are configured the client authenticates lazily,
// caches the token, and re-authenticates once when a request comes back 401.
package pocketbase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/muazhazali/lepakmasjid/internal/recordsource"
	"github.com/muazhazali/lepakmasjid/internal/telemetry"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Client is a PocketBase Record Source.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	adminEmail    string
	adminPassword string

	mu    sync.Mutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithSuperuser makes the client authenticate as a PocketBase superuser.
func WithSuperuser(email, password string) Option {
	return func(c *Client) {
		c.adminEmail = email
		c.adminPassword = password
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.HTTPClient = hc
	}
}

// New creates a client for the PocketBase instance at baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type errorBody struct {
	Status  int            `json:"status"`
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

type authResponse struct {
	Token  string          `json:"token"`
	Record json.RawMessage `json:"record"`
}

func (c *Client) recordsURL(collection string, id string) string {
	u := c.BaseURL + "/api/collections/" + url.PathEscape(collection) + "/records"
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	return u
}

// List implements recordsource.Source.
func (c *Client) List(ctx context.Context, collection string, page, perPage int, opts recordsource.ListOptions) (*recordsource.ListResult, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("perPage", strconv.Itoa(perPage))
	if f := recordsource.Render(opts.Filter); f != "" {
		q.Set("filter", f)
	}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	if opts.Expand != "" {
		q.Set("expand", opts.Expand)
	}

	var out recordsource.ListResult
	if err := c.do(ctx, collection, "list", http.MethodGet, c.recordsURL(collection, "")+"?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []json.RawMessage{}
	}
	return &out, nil
}

// GetOne implements recordsource.Source.
func (c *Client) GetOne(ctx context.Context, collection, id string, opts recordsource.GetOptions) (json.RawMessage, error) {
	u := c.recordsURL(collection, id)
	if opts.Expand != "" {
		u += "?expand=" + url.QueryEscape(opts.Expand)
	}
	var out json.RawMessage
	if err := c.do(ctx, collection, "get", http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create implements recordsource.Source.
func (c *Client) Create(ctx context.Context, collection string, body map[string]any) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, collection, "create", http.MethodPost, c.recordsURL(collection, ""), body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update implements recordsource.Source.
func (c *Client) Update(ctx context.Context, collection, id string, body map[string]any) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, collection, "update", http.MethodPatch, c.recordsURL(collection, id), body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete implements recordsource.Source.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	return c.do(ctx, collection, "delete", http.MethodDelete, c.recordsURL(collection, id), nil, nil)
}

// AuthWithPassword implements recordsource.Source. The user token issued by
// PocketBase is discarded; the service issues its own.
func (c *Client) AuthWithPassword(ctx context.Context, collection, identity, password string) (json.RawMessage, error) {
	var out authResponse
	u := c.BaseURL + "/api/collections/" + url.PathEscape(collection) + "/auth-with-password"
	body := map[string]any{"identity": identity, "password": password}
	if err := c.send(ctx, collection, "auth", http.MethodPost, u, body, &out, false); err != nil {
		return nil, err
	}
	return out.Record, nil
}

// RequestPasswordReset implements recordsource.Source.
func (c *Client) RequestPasswordReset(ctx context.Context, collection, email string) error {
	u := c.BaseURL + "/api/collections/" + url.PathEscape(collection) + "/request-password-reset"
	return c.send(ctx, collection, "password_reset", http.MethodPost, u, map[string]any{"email": email}, nil, false)
}

// Ping checks /api/health.
func (c *Client) Ping(ctx context.Context) error {
	return c.send(ctx, "_health", "ping", http.MethodGet, c.BaseURL+"/api/health", nil, nil, false)
}

// do sends an authenticated request, re-authenticating once on a 401.
func (c *Client) do(ctx context.Context, collection, operation, method, u string, body, out any) error {
	err := c.send(ctx, collection, operation, method, u, body, out, true)
	var se *recordsource.Error
	if err != nil && c.adminEmail != "" && errors.As(err, &se) && se.Status == http.StatusUnauthorized {
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		return c.send(ctx, collection, operation, method, u, body, out, true)
	}
	return err
}

func (c *Client) send(ctx context.Context, collection, operation, method, u string, body, out any, authed bool) (err error) {
	started := time.Now()
	defer func() {
		telemetry.ObserveRecordSource(collection, operation, outcome(err), started)
	}()

	var reader io.Reader
	if body != nil {
		b, err := codec.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s body: %w", collection, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token, err := c.superuserToken(ctx)
		if err != nil {
			return err
		}
		if token != "" {
			req.Header.Set("Authorization", token)
		}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &recordsource.Error{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := codec.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", collection, err)
	}
	return nil
}

func (c *Client) superuserToken(ctx context.Context) (string, error) {
	if c.adminEmail == "" {
		return "", nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}

	var out authResponse
	u := c.BaseURL + "/api/collections/_superusers/auth-with-password"
	body := map[string]any{"identity": c.adminEmail, "password": c.adminPassword}
	if err := c.send(ctx, "_superusers", "auth", http.MethodPost, u, body, &out, false); err != nil {
		return "", fmt.Errorf("superuser authentication failed: %w", err)
	}
	c.token = out.Token
	return c.token, nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	se := &recordsource.Error{Status: resp.StatusCode}
	var eb errorBody
	if err := codec.Unmarshal(raw, &eb); err == nil {
		se.Message = eb.Message
		se.Data = eb.Data
	} else {
		se.Message = strings.TrimSpace(string(raw))
	}
	return se
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var se *recordsource.Error
	if !errors.As(err, &se) {
		return "error"
	}
	switch {
	case se.Status == 0:
		return "network_error"
	case se.Status < 500:
		return "client_error"
	default:
		return "server_error"
	}
}

var (
	_ recordsource.Source = (*Client)(nil)
	_ recordsource.Pinger = (*Client)(nil)
)
