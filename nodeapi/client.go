// Package nodeapi talks to the local node agent and to the hub over HTTP.
package nodeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// StatusError is returned when an upstream answers with a non-2xx status.
type StatusError struct {
	Service string
	Method  string
	Path    string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s %s %s: HTTP %d", e.Service, e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s %s: HTTP %d: %s", e.Service, e.Method, e.Path, e.Code, body)
}

// client is the shared JSON transport of AgentClient and HubClient.
type client struct {
	service string

	mu         sync.RWMutex
	baseURL    string
	httpClient *http.Client
}

func newClient(service, baseURL string, timeout time.Duration) *client {
	return &client{
		service:    service,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *client) get(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

func (c *client) post(ctx context.Context, path string, body any, result any) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

func (c *client) do(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s marshal: %w", c.service, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	c.mu.RLock()
	url := c.baseURL + path
	hc := c.httpClient
	c.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("%s %s %s: %w", c.service, method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s %s: %w", c.service, method, path, err)
	}
	defer resp.Body.Close()
	return c.decode(resp, method, path, result)
}

func (c *client) decode(resp *http.Response, method, path string, result any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s read body: %w", c.service, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			Service: c.service,
			Method:  method,
			Path:    path,
			Code:    resp.StatusCode,
			Body:    string(data),
		}
	}
	if result != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("%s decode %s: %w", c.service, path, err)
		}
	}
	return nil
}

// BaseURL returns the client's base URL.
func (c *client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// Reconfigure points the client at another base URL. A non-positive timeout
// keeps the current one.
func (c *client) Reconfigure(baseURL string, timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = strings.TrimRight(baseURL, "/")
	if timeout > 0 {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}
