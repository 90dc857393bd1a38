// Package client is a Go client for the farmcost HTTP API. It keeps the
// session cookie set by Login in a cookie jar, or authenticates every
// request with an API key.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to one farmcost server.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey authenticates requests with a Bearer API key.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying HTTP client. The client should
// carry a cookie jar for Login to have an effect.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Health checks server and database health. An unhealthy server returns
// the report together with an *APIError.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	err := c.do(ctx, http.MethodGet, "/health", nil, &h)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable {
		return &h, err
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// Login opens a session; its cookie authenticates later requests.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	return c.do(ctx, http.MethodPost, "/login", body, nil)
}

// Logout ends the current session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/logout", nil, nil)
}

// List returns every row of the kind.
func (c *Client) List(ctx context.Context, kind string) ([]Row, error) {
	var rows []Row
	if err := c.do(ctx, http.MethodGet, "/get_"+plural(kind), nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Add inserts a row. An existing row with the same key is a 409 APIError.
func (c *Client) Add(ctx context.Context, kind string, row Row) error {
	return c.do(ctx, http.MethodPost, "/add_"+kind, row, nil)
}

// Update inserts or overwrites a row and reports whether it was created.
func (c *Client) Update(ctx context.Context, kind string, row Row) (bool, error) {
	var resp struct {
		Created bool `json:"created"`
	}
	if err := c.do(ctx, http.MethodPost, "/update_"+kind, row, &resp); err != nil {
		return false, err
	}
	return resp.Created, nil
}

// DeleteByField removes every row whose delete field equals value and
// returns how many were removed.
func (c *Client) DeleteByField(ctx context.Context, kind, field, value string) (int64, error) {
	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	body := map[string]string{field: value}
	if err := c.do(ctx, http.MethodPost, "/delete_"+kind, body, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

// DeleteByKey removes the row with the composite key.
func (c *Client) DeleteByKey(ctx context.Context, kind, key string) error {
	return c.do(ctx, http.MethodDelete, "/"+kind+"/"+url.PathEscape(key), nil, nil)
}

// Ingest seeds the kind from the survey table.
func (c *Client) Ingest(ctx context.Context, kind string) (*IngestResult, error) {
	var res IngestResult
	if err := c.do(ctx, http.MethodPost, "/ingest_"+plural(kind), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// IngestAll seeds every kind in dependency order.
func (c *Client) IngestAll(ctx context.Context) ([]IngestResult, error) {
	var resp struct {
		Results []IngestResult `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/ingest_all", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// IngestRuns lists recent ingest runs, newest first. An empty kind lists
// every kind; a zero limit uses the server default.
func (c *Client) IngestRuns(ctx context.Context, kind string, limit int) ([]IngestResult, error) {
	q := url.Values{}
	if kind != "" {
		q.Set("kind", kind)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/ingest_runs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var runs []IngestResult
	if err := c.do(ctx, http.MethodGet, path, nil, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// Status returns the missing-value counts of every reference table.
func (c *Client) Status(ctx context.Context) (map[string]TableQuality, error) {
	var tables map[string]TableQuality
	if err := c.do(ctx, http.MethodGet, "/status", nil, &tables); err != nil {
		return nil, err
	}
	return tables, nil
}

// RealTimeInfo returns the data-quality summary.
func (c *Client) RealTimeInfo(ctx context.Context) (*RealTimeInfo, error) {
	var info RealTimeInfo
	if err := c.do(ctx, http.MethodGet, "/real_time_info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListUsers lists accounts. Admin only.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, http.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// AddUser creates an account. Admin only.
func (c *Client) AddUser(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	return c.do(ctx, http.MethodPost, "/users", body, nil)
}

// DeleteUser removes an account and its sessions. Admin only.
func (c *Client) DeleteUser(ctx context.Context, username string) error {
	return c.do(ctx, http.MethodDelete, "/users", map[string]string{"username": username}, nil)
}

// do sends a JSON request and decodes a 2xx response into out. Non-2xx
// responses become *APIError; out is still filled when the body decodes.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Message string       `json:"message"`
			Errors  []FieldError `json:"errors"`
		}
		if json.Unmarshal(data, &envelope) == nil {
			apiErr.Message = envelope.Message
			apiErr.Errors = envelope.Errors
		}
		if out != nil {
			_ = json.Unmarshal(data, out)
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
