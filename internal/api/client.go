package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a typed HTTP client for the run service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for a run service at baseURL
// (e.g. "http://127.0.0.1:7433").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Health checks that the service is up.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doJSON(ctx, "GET", "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StartRun asks the service to start an async run.
func (c *Client) StartRun(ctx context.Context, req StartRunRequest) (*RunResponse, error) {
	var resp RunResponse
	if err := c.doJSON(ctx, "POST", "/api/runs", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetRun fetches a single run by id.
func (c *Client) GetRun(ctx context.Context, id int64) (*RunResponse, error) {
	var resp RunResponse
	if err := c.doJSON(ctx, "GET", fmt.Sprintf("/api/runs/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListRuns fetches recent runs, newest first. limit <= 0 uses the
// service default.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]RunResponse, error) {
	path := "/api/runs"
	if limit > 0 {
		path = fmt.Sprintf("/api/runs?limit=%d", limit)
	}
	var resp RunListResponse
	if err := c.doJSON(ctx, "GET", path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// SendInput delivers text to a run that is awaiting input. It reports
// whether the run accepted it.
func (c *Client) SendInput(ctx context.Context, id int64, text string) (bool, error) {
	var resp InputResponse
	if err := c.doJSON(ctx, "POST", fmt.Sprintf("/api/runs/%d/input", id), InputRequest{Text: text}, &resp); err != nil {
		return false, err
	}
	return resp.Delivered, nil
}

// Cancel asks the service to cancel a run. It reports whether the run
// was still live enough to cancel.
func (c *Client) Cancel(ctx context.Context, id int64) (bool, error) {
	var resp CancelResponse
	if err := c.doJSON(ctx, "POST", fmt.Sprintf("/api/runs/%d/cancel", id), nil, &resp); err != nil {
		return false, err
	}
	return resp.Cancelled, nil
}

// Output fetches a run's transcript.
func (c *Client) Output(ctx context.Context, id int64) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+fmt.Sprintf("/api/runs/%d/output", id), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("run service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", responseError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return string(data), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("run service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func responseError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		return fmt.Errorf("run service: %s", errResp.Error)
	}
	return fmt.Errorf("run service returned status %d", resp.StatusCode)
}
