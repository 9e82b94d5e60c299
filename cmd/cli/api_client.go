// Package cli provides the HTTP client used by CLI commands that talk
// to a running scandeck daemon.
package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/scandeck/scandeck/internal/config"
)

// APIClient provides HTTP client functionality for CLI commands.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// APIError represents an API error response.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("API error (status %d, request %s): %s", e.StatusCode, e.RequestID, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// NewAPIClient creates a new API client from the active configuration.
func NewAPIClient() (*APIClient, error) {
	cfg, err := config.Load(getConfigFilePath())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	baseURL := fmt.Sprintf("http://%s/api/v1", cfg.GetAPIAddress())

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:    10,
			IdleConnTimeout: 30 * time.Second,
		},
	}

	return &APIClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		userAgent:  "scandeck-cli/1.0",
	}, nil
}

// Get performs a GET request and decodes the response into out.
func (c *APIClient) Get(endpoint string, out interface{}) error {
	return c.request(http.MethodGet, endpoint, nil, out)
}

// Post performs a POST request with a JSON payload.
func (c *APIClient) Post(endpoint string, payload, out interface{}) error {
	return c.request(http.MethodPost, endpoint, payload, out)
}

// Put performs a PUT request with a JSON payload.
func (c *APIClient) Put(endpoint string, payload, out interface{}) error {
	return c.request(http.MethodPut, endpoint, payload, out)
}

// Delete performs a DELETE request with an optional JSON payload.
func (c *APIClient) Delete(endpoint string, payload, out interface{}) error {
	return c.request(http.MethodDelete, endpoint, payload, out)
}

// request performs the actual HTTP request.
func (c *APIClient) request(method, endpoint string, payload, out interface{}) error {
	url := c.baseURL + endpoint

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed (is the daemon running?): %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var errBody struct {
			Error     string `json:"error"`
			RequestID string `json:"request_id"`
		}
		if json.Unmarshal(data, &errBody) == nil && errBody.Error != "" {
			apiErr.Message = errBody.Error
			apiErr.RequestID = errBody.RequestID
		}
		return apiErr
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
