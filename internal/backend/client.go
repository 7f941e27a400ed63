// Package backend is the HTTP client for the test case REST service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-querystring/query"

	"github.com/starford/casedeck/internal/apperr"
	"github.com/starford/casedeck/internal/models"
)

// maxErrorBody caps how much of a failed response is kept for logs.
const maxErrorBody = 4 << 10

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned %d", e.Code)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Body)
}

// Client talks to the backend mounted under a base URL such as
// http://localhost:8000/api.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout bounds every request. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c
}

// BaseURL returns the backend root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// List returns the records matching f, in backend order.
func (c *Client) List(ctx context.Context, f models.Filters) ([]models.Record, error) {
	params, err := query.Values(f)
	if err != nil {
		return nil, fmt.Errorf("%w: encode filters: %w", apperr.ErrFetch, err)
	}
	var out []models.Record
	if err := c.do(ctx, http.MethodGet, "/testcases", params, nil, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrFetch, err)
	}
	if out == nil {
		out = []models.Record{}
	}
	return out, nil
}

// Get returns a single record. A 404 also matches apperr.ErrNotFound.
func (c *Client) Get(ctx context.Context, id int64) (*models.Record, error) {
	var out models.Record
	if err := c.do(ctx, http.MethodGet, recordPath(id), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrFetch, notFound(err))
	}
	return &out, nil
}

// Create submits a new record and returns it with server-assigned fields.
func (c *Client) Create(ctx context.Context, d models.Draft) (*models.Record, error) {
	var out models.Record
	if err := c.do(ctx, http.MethodPost, "/testcases", nil, d, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrCreate, err)
	}
	return &out, nil
}

// Update replaces every client-owned field of record id.
func (c *Client) Update(ctx context.Context, id int64, d models.Draft) (*models.Record, error) {
	var out models.Record
	if err := c.do(ctx, http.MethodPut, recordPath(id), nil, d, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrUpdate, notFound(err))
	}
	return &out, nil
}

// Delete removes record id.
func (c *Client) Delete(ctx context.Context, id int64) error {
	if err := c.do(ctx, http.MethodDelete, recordPath(id), nil, nil, nil); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrDelete, notFound(err))
	}
	return nil
}

// Health pings the backend health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func recordPath(id int64) string {
	return "/testcases/" + strconv.FormatInt(id, 10)
}

func notFound(err error) error {
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %w", apperr.ErrNotFound, err)
	}
	return err
}

// do performs one request/response exchange. in is JSON-encoded when
// non-nil; out is decoded from a 2xx body when non-nil.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, in, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("backend request failed",
			slog.String("method", method),
			slog.String("url", u),
			slog.String("error", err.Error()))
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		slog.String("method", method),
		slog.String("url", u),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
