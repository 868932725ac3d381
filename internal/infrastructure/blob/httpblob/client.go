// Package httpblob is the client for the remote blob storage HTTP API.
package httpblob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avolkov/docvault/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, authToken string) *Client {
	return NewWithOptions(baseURL, authToken, Options{})
}

func NewWithOptions(baseURL, authToken string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		// Large binary transfers; generous by default.
		timeout = 5 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authToken:  authToken,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

// Upload stores data under path and returns the path the remote side
// actually used.
func (c *Client) Upload(ctx context.Context, path string, data []byte) (string, error) {
	var response struct {
		Path string `json:"path"`
	}

	call := func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, http.MethodPost,
			c.baseURL+"/storage/v1/object/"+escapePath(path), bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("build upload request: %w", err)
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		c.authorize(req)

		return c.handle(req, &response, "upload")
	}

	if err := c.execute(ctx, "blob.upload", call); err != nil {
		return "", err
	}
	if response.Path == "" {
		response.Path = path
	}
	return response.Path, nil
}

func (c *Client) Download(ctx context.Context, path string) ([]byte, error) {
	var data []byte

	call := func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, http.MethodGet,
			c.baseURL+"/storage/v1/object/"+escapePath(path), nil)
		if err != nil {
			return fmt.Errorf("build download request: %w", err)
		}
		c.authorize(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("blob download: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return statusError("download", resp)
		}
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read blob body: %w", err)
		}
		return nil
	}

	if err := c.execute(ctx, "blob.download", call); err != nil {
		return nil, err
	}
	return data, nil
}

// SignedURL asks the remote side for a time-limited direct URL, so
// callers can hand content to a viewer without pulling it locally.
func (c *Client) SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	var response struct {
		URL string `json:"url"`
	}

	call := func(callCtx context.Context) error {
		body, err := json.Marshal(map[string]int64{"ttl_seconds": int64(ttl.Seconds())})
		if err != nil {
			return fmt.Errorf("marshal sign request: %w", err)
		}
		req, err := http.NewRequestWithContext(callCtx, http.MethodPost,
			c.baseURL+"/storage/v1/sign/"+escapePath(path), bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build sign request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		c.authorize(req)

		return c.handle(req, &response, "sign")
	}

	if err := c.execute(ctx, "blob.sign", call); err != nil {
		return "", err
	}
	if response.URL == "" {
		return "", fmt.Errorf("sign %s: remote returned no url", path)
	}
	return response.URL, nil
}

func (c *Client) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	if c.executor != nil {
		return c.executor.Execute(ctx, operation, call, classifyBlobError)
	}
	return call(ctx)
}

func (c *Client) handle(req *http.Request, out any, operation string) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("blob %s: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(operation, resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}

func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
