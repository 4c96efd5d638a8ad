// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hokipoki/hokipoki/lib/netutil"
)

// DefaultBaseURL is used when $BACKEND_URL is unset.
const DefaultBaseURL = "https://api.hoki-poki.ai"

// Client is a bearer-authenticated REST client for the marketplace
// backend, mirroring the request/response shape of the teacher's
// Matrix messaging.Client.doRequest.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Config configures a new Client.
type Config struct {
	// BaseURL defaults to DefaultBaseURL when empty.
	BaseURL string
	// Token is the bearer identity token attached to every request
	// except CheckVerified.
	Token      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
		logger:     logger,
	}
}

// CheckVerified probes /api/auth/check-verified, used during login
// before a bearer token exists — check-verified is unauthenticated in
// this API, matching the Identity Agent's fail-open probe.
func (c *Client) CheckVerified(ctx context.Context, email string) (verified bool, err error) {
	query := url.Values{"email": []string{email}}
	body, err := c.doRequest(ctx, http.MethodGet, "/api/auth/check-verified", query, nil, false)
	if err != nil {
		return false, err
	}
	var resp struct {
		Verified bool `json:"verified"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("backend: decoding check-verified response: %w", err)
	}
	return resp.Verified, nil
}

// Profile fetches GET /api/profile.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/profile", nil, nil, true)
	if err != nil {
		return nil, err
	}
	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("backend: decoding profile response: %w", err)
	}
	return &profile, nil
}

// TunnelToken fetches GET /api/tunnel/token.
func (c *Client) TunnelToken(ctx context.Context) (*TunnelToken, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/tunnel/token", nil, nil, true)
	if err != nil {
		return nil, err
	}
	var token TunnelToken
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("backend: decoding tunnel token response: %w", err)
	}
	return &token, nil
}

// ProviderTools fetches GET /api/provider/tools.
func (c *Client) ProviderTools(ctx context.Context) ([]string, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/provider/tools", nil, nil, true)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Tools []string `json:"tools"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("backend: decoding provider tools response: %w", err)
	}
	return resp.Tools, nil
}

// RegisterProviderTools sends POST /api/provider/tools.
func (c *Client) RegisterProviderTools(ctx context.Context, tools []string) error {
	payload := struct {
		Tools []string `json:"tools"`
	}{Tools: tools}
	_, err := c.doRequest(ctx, http.MethodPost, "/api/provider/tools", nil, payload, true)
	return err
}

// ActiveTasks fetches GET /api/tasks/active.
func (c *Client) ActiveTasks(ctx context.Context) (*ActiveTasksResponse, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/tasks/active", nil, nil, true)
	if err != nil {
		return nil, err
	}
	var resp ActiveTasksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("backend: decoding active tasks response: %w", err)
	}
	return &resp, nil
}

// UpsertTask sends POST /api/tasks with a full task record.
func (c *Client) UpsertTask(ctx context.Context, task TaskRecord) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/api/tasks", nil, task, true)
	return err
}

// BindProvider sends PUT /api/tasks/{id}/provider.
func (c *Client) BindProvider(ctx context.Context, taskID, providerID string) error {
	payload := struct {
		ProviderID string `json:"providerId"`
	}{ProviderID: providerID}
	_, err := c.doRequest(ctx, http.MethodPut, "/api/tasks/"+url.PathEscape(taskID)+"/provider", nil, payload, true)
	return err
}

// CancelTask sends POST /api/tasks/{id}/cancel.
func (c *Client) CancelTask(ctx context.Context, taskID string) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/api/tasks/"+url.PathEscape(taskID)+"/cancel", nil, nil, true)
	return err
}

// doRequest performs one HTTP round-trip. On 2xx it returns the raw
// body; on any other status it returns a *Error. authenticated
// controls whether the bearer token is attached — CheckVerified is
// the only call the backend accepts without one.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, requestBody any, authenticated bool) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("backend: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("backend: building request: %w", err)
	}
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: request to %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := netutil.ReadResponse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("backend: reading response body: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, nil
	}
	return nil, &Error{StatusCode: resp.StatusCode, Body: string(respBody)}
}
