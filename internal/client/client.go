// Package client is a Go client for the Testdeck REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zulandar/testdeck/internal/apperr"
	"github.com/zulandar/testdeck/internal/models"
	"github.com/zulandar/testdeck/internal/testrun"
)

// Client talks to one Testdeck server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures the Client during construction.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithTimeout sets a timeout on the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.httpClient.Timeout = d }
}

// New creates a Client. baseURL includes the API prefix, e.g.
// "http://localhost:8080/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("client: baseURL is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: invalid baseURL %q", baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// APIError is a non-2xx response. It unwraps to the matching apperr
// sentinel, so errors.Is(err, apperr.ErrConflict) works across the wire.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %d: %s", e.Operation, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return apperr.ErrValidation
	case http.StatusNotFound:
		return apperr.ErrNotFound
	case http.StatusConflict:
		return apperr.ErrConflict
	}
	return nil
}

// GetRun fetches a test run with its steps.
func (c *Client) GetRun(ctx context.Context, id uint) (*models.TestRun, error) {
	var run models.TestRun
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/test-runs/%d", id), "get test run", nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns lists test runs, newest first.
func (c *Client) ListRuns(ctx context.Context, filters testrun.ListFilters) ([]models.TestRun, error) {
	q := url.Values{}
	if filters.ProjectID != 0 {
		q.Set("projectId", strconv.FormatUint(uint64(filters.ProjectID), 10))
	}
	if filters.FolderID != nil {
		q.Set("folderId", strconv.FormatUint(uint64(*filters.FolderID), 10))
	}
	if filters.Status != "" {
		q.Set("status", filters.Status)
	}
	path := "/test-runs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var runs []models.TestRun
	if err := c.doJSON(ctx, http.MethodGet, path, "list test runs", nil, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// CreateRun snapshots a test case into a new run.
func (c *Client) CreateRun(ctx context.Context, opts testrun.CreateOpts) (*models.TestRun, error) {
	var run models.TestRun
	if err := c.doJSON(ctx, http.MethodPost, "/test-runs", "create test run", opts, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// UpdateRun sends a status change and/or step patches.
func (c *Client) UpdateRun(ctx context.Context, id uint, req testrun.UpdateRequest) (*models.TestRun, error) {
	var run models.TestRun
	if err := c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/test-runs/%d", id), "update test run", req, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// GetCase fetches a test case with its steps.
func (c *Client) GetCase(ctx context.Context, id uint) (*models.TestCase, error) {
	var tc models.TestCase
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/test-cases/%d", id), "get test case", nil, &tc); err != nil {
		return nil, err
	}
	return &tc, nil
}

// ListCases lists the test cases of a project.
func (c *Client) ListCases(ctx context.Context, projectID uint) ([]models.TestCase, error) {
	path := fmt.Sprintf("/test-cases?projectId=%d", projectID)
	var cases []models.TestCase
	if err := c.doJSON(ctx, http.MethodGet, path, "list test cases", nil, &cases); err != nil {
		return nil, err
	}
	return cases, nil
}

// UploadAttachment stores an image and returns its descriptor.
func (c *Client) UploadAttachment(ctx context.Context, filename string, r io.Reader) (models.Attachment, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("upload attachment: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return models.Attachment{}, fmt.Errorf("upload attachment: read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return models.Attachment{}, fmt.Errorf("upload attachment: %w", err)
	}

	var a models.Attachment
	err = c.do(ctx, http.MethodPost, "/attachments", "upload attachment", &buf, mw.FormDataContentType(), &a)
	return a, err
}

// DeleteAttachment removes a stored file.
func (c *Client) DeleteAttachment(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/attachments/"+url.PathEscape(id), "delete attachment", nil, nil)
}

// doJSON sends body as JSON and decodes the response into dst.
func (c *Client) doJSON(ctx context.Context, method, path, operation string, body, dst any) error {
	var r io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", operation, err)
		}
		r = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, operation, r, contentType, dst)
}

func (c *Client) do(ctx context.Context, method, path, operation string, body io.Reader, contentType string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", operation, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: do request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		var errBody struct {
			Error string `json:"error"`
		}
		msg := resp.Status
		if json.Unmarshal(respBody, &errBody) == nil && errBody.Error != "" {
			msg = errBody.Error
		}
		return &APIError{Operation: operation, StatusCode: resp.StatusCode, Message: msg}
	}

	if dst != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("%s: decode response: %w", operation, err)
		}
	}
	return nil
}
