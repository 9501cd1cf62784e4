// Package client talks to a running serverdeck over its REST API.
package client

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

	"serverdeck/internal/supervisor"
)

type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// Status mirrors GET /api/status.
type Status struct {
	Version string            `json:"version"`
	Server  supervisor.Status `json:"server"`
	Assets  struct {
		Cached   bool   `json:"cached"`
		CacheDir string `json:"cacheDir"`
	} `json:"assets"`
	Watching bool `json:"watching"`
	Surfaces int  `json:"surfaces"`
}

type ExtractionResult struct {
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	TotalFiles int    `json:"totalFiles"`
}

type ModList struct {
	Enabled  []string `json:"enabled"`
	Disabled []string `json:"disabled"`
}

type Client struct {
	HTTP    *http.Client
	BaseURL string
	Token   string
}

// New builds a client for a listen address such as "127.0.0.1:7420" or a
// full URL.
func New(addr, token string) (*Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("address is required")
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &Client{BaseURL: strings.TrimRight(addr, "/"), Token: token}, nil
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	var status Status
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &status)
	return status, err
}

func (c *Client) StartServer(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/server/start", nil, nil)
}

func (c *Client) StopServer(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/server/stop", nil, nil)
}

func (c *Client) Logs(ctx context.Context, limit int) ([]supervisor.LogLine, error) {
	path := "/api/server/logs"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var lines []supervisor.LogLine
	err := c.do(ctx, http.MethodGet, path, nil, &lines)
	return lines, err
}

func (c *Client) ExtractAssets(ctx context.Context) (ExtractionResult, error) {
	var result ExtractionResult
	err := c.do(ctx, http.MethodPost, "/api/assets/extract", nil, &result)
	return result, err
}

func (c *Client) Mods(ctx context.Context) (ModList, error) {
	var list ModList
	err := c.do(ctx, http.MethodGet, "/api/mods", nil, &list)
	return list, err
}

func (c *Client) ToggleMod(ctx context.Context, name string, enabled bool) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("mod name is required")
	}
	return c.do(ctx, http.MethodPost, "/api/mods/toggle", map[string]any{"name": name, "enabled": enabled}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any, target any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	addToken(request, c.Token)

	response, err := c.httpClient().Do(request)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return readError(response)
	}
	if target == nil {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func addToken(request *http.Request, token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	request.Header.Set("Authorization", "Bearer "+token)
}

func readError(response *http.Response) error {
	body, _ := io.ReadAll(response.Body)
	httpErr := &HTTPError{StatusCode: response.StatusCode, Message: strings.TrimSpace(string(body))}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		httpErr.Code = payload.Code
		if payload.Message != "" {
			httpErr.Message = payload.Message
		} else if payload.Error != "" {
			httpErr.Message = payload.Error
		}
	}
	if httpErr.Message == "" {
		httpErr.Message = response.Status
	}
	return httpErr
}
