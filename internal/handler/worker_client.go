package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/idtoken"
)

// ErrWorkerUnavailable is returned when no worker endpoint is configured.
var ErrWorkerUnavailable = errors.New("scrape worker is not configured")

// WorkerPoster posts JSON payloads to worker endpoints.
type WorkerPoster interface {
	PostJSON(ctx context.Context, path string, payload any, requestID string) (map[string]any, error)
}

// WorkerClient talks to the job-scraping worker.
type WorkerClient struct {
	client  *http.Client
	baseURL string
}

// NewWorkerClient builds a worker client, auto-configuring an ID token client when needed.
// An empty base URL yields a client that refuses every call.
func NewWorkerClient(client *http.Client, workerBaseURL string) *WorkerClient {
	workerBaseURL = strings.TrimRight(strings.TrimSpace(workerBaseURL), "/")
	if workerBaseURL == "" {
		return &WorkerClient{}
	}
	if client == nil {
		idc, err := idtoken.NewClient(context.Background(), workerBaseURL)
		if err != nil {
			client = &http.Client{Timeout: 10 * time.Second}
		} else {
			client = idc
		}
	}
	return &WorkerClient{client: client, baseURL: workerBaseURL}
}

// PostJSON posts the payload to the worker and returns the "data" object.
func (c *WorkerClient) PostJSON(ctx context.Context, path string, payload any, requestID string) (map[string]any, error) {
	if c.baseURL == "" {
		return nil, ErrWorkerUnavailable
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("worker request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("worker error: %s", extractWorkerError(resp.Body))
	}

	var workerResp struct {
		Data  map[string]any `json:"data"`
		Error string         `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&workerResp); err != nil && err != io.EOF {
		return nil, fmt.Errorf("could not decode worker response: %w", err)
	}
	if workerResp.Error != "" {
		return nil, fmt.Errorf("worker error: %s", workerResp.Error)
	}
	return workerResp.Data, nil
}

func extractWorkerError(body io.Reader) string {
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return "worker returned an error"
	}

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return string(data)
}

var _ WorkerPoster = (*WorkerClient)(nil)
