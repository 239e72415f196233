package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tscribe/internal/transcript"
)

// Client talks to a running daemon's HTTP API. The command-line tool is its
// only consumer, so calls are synchronous and unpooled.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the daemon listening at baseURL, e.g.
// "http://127.0.0.1:8643". token may be empty when the daemon does not
// require one.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type submitRequest struct {
	URL      string `json:"url"`
	Language string `json:"language,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Submit enqueues a new job.
func (c *Client) Submit(ctx context.Context, mediaURL, language string) (*JobView, error) {
	body, err := json.Marshal(submitRequest{URL: mediaURL, Language: language})
	if err != nil {
		return nil, err
	}
	var view JobView
	if err := c.do(ctx, http.MethodPost, "/api/jobs", body, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Get fetches a single job.
func (c *Client) Get(ctx context.Context, id string) (*JobView, error) {
	var view JobView
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// List fetches jobs newest first. limit <= 0 leaves the cap to the daemon.
func (c *Client) List(ctx context.Context, limit int) ([]*JobView, error) {
	path := "/api/jobs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var views []*JobView
	if err := c.do(ctx, http.MethodGet, path, nil, &views); err != nil {
		return nil, err
	}
	return views, nil
}

// Delete removes a job and its workspace.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/jobs/"+url.PathEscape(id), nil, nil)
}

// Result downloads a finished job's transcript in the given format.
func (c *Client) Result(ctx context.Context, id string, format transcript.Format) (*Result, error) {
	path := "/api/jobs/" + url.PathEscape(id) + "/download/" + string(format)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &Result{
		Content:     string(content),
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    resultFilename(id, format),
	}, nil
}

// Health checks that the daemon is up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError maps an HTTP failure back to the service's sentinel errors so
// callers can branch on them the same way on both sides of the wire.
func decodeError(resp *http.Response) error {
	var payload errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&payload)
	message := payload.Error
	if message == "" {
		message = resp.Status
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, message)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrNotReady, message)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrInvalidInput, message)
	default:
		return fmt.Errorf("daemon error (%d): %s", resp.StatusCode, message)
	}
}
