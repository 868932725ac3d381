// Package analysis is the client for the backend analyze-and-persist
// pipeline. The backend extracts text, optionally classifies, and
// writes the document record itself; the client only hands over the
// file and reads back the persisted record.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
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
		// The pipeline runs extraction plus model calls; it is slow.
		timeout = 10 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authToken:  authToken,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

func (c *Client) AnalyzeAndPersist(ctx context.Context, req domain.AnalyzeRequest) (*domain.CachedDocument, error) {
	var doc domain.CachedDocument

	call := func(callCtx context.Context) error {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)

		part, err := mw.CreateFormFile("file", req.FileName)
		if err != nil {
			return fmt.Errorf("build multipart file: %w", err)
		}
		if _, err := part.Write(req.Data); err != nil {
			return fmt.Errorf("write multipart file: %w", err)
		}
		_ = mw.WriteField("file_type", req.FileType)
		_ = mw.WriteField("user_id", req.UserID)
		_ = mw.WriteField("classify", strconv.FormatBool(req.Classify))
		if err := mw.Close(); err != nil {
			return fmt.Errorf("close multipart body: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost,
			c.baseURL+"/functions/v1/analyze-document", &buf)
		if err != nil {
			return fmt.Errorf("build analyze request: %w", err)
		}
		httpReq.Header.Set("Content-Type", mw.FormDataContentType())
		if c.authToken != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.authToken)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("analysis call: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return &StatusError{
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Body:       string(body),
			}
		}

		var response struct {
			Document domain.CachedDocument `json:"document"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
			return fmt.Errorf("decode analysis response: %w", err)
		}
		if response.Document.ID == "" {
			return fmt.Errorf("analysis backend returned no document id")
		}
		doc = response.Document
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "analysis.analyze", call, classifyAnalysisError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("analysis status: %s", e.Status)
	}
	return fmt.Sprintf("analysis status: %s: %s", e.Status, strings.TrimSpace(e.Body))
}
