// Package restapi is the client for the authoritative remote document
// store's REST interface.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avolkov/docvault/internal/core/domain"
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
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authToken:  authToken,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

// Insert creates a row and returns the remote-assigned id. The
// idempotency key travels as a header so a remote shim can drop a
// duplicate create whose first attempt partially succeeded.
func (c *Client) Insert(ctx context.Context, table string, payload json.RawMessage, idempotencyKey string) (string, error) {
	var response struct {
		ID string `json:"id"`
	}
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}
	err := c.do(ctx, http.MethodPost, "/rest/v1/"+table, payload, headers, &response, "insert")
	if err != nil {
		return "", err
	}
	if response.ID == "" {
		return "", fmt.Errorf("insert into %s: remote returned no id", table)
	}
	return response.ID, nil
}

func (c *Client) Update(ctx context.Context, table, id string, payload json.RawMessage) error {
	return c.do(ctx, http.MethodPatch, "/rest/v1/"+table+"/"+id, payload, nil, nil, "update")
}

func (c *Client) Delete(ctx context.Context, table, id string) error {
	return c.do(ctx, http.MethodDelete, "/rest/v1/"+table+"/"+id, nil, nil, nil, "delete")
}

func (c *Client) FetchDocument(ctx context.Context, id string) (*domain.CachedDocument, error) {
	var doc domain.CachedDocument
	if err := c.do(ctx, http.MethodGet, "/rest/v1/documents/"+id, nil, nil, &doc, "fetch_document"); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Health probes the remote store; the connectivity monitor uses it as
// its default online check.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil, "health")
}

func (c *Client) do(ctx context.Context, method, path string, body json.RawMessage, headers map[string]string, out any, operation string) error {
	call := func(callCtx context.Context) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("build %s request: %w", operation, err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.authToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.authToken)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("remote %s: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			if resp.StatusCode == http.StatusNotFound {
				return domain.WrapError(domain.ErrNotFound, operation, &HTTPStatusError{
					Operation:  operation,
					StatusCode: resp.StatusCode,
					Status:     resp.Status,
					Body:       string(respBody),
				})
			}
			return &HTTPStatusError{
				Operation:  operation,
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Body:       string(respBody),
			}
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("decode %s response: %w", operation, err)
			}
		}
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "remote."+operation, call, classifyRemoteError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(operation, err)
}
