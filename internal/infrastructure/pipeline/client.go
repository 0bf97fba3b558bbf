// Package pipeline is the HTTP client for the remote analysis service.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/doeshing/pmpilot/internal/domain"
	"github.com/doeshing/pmpilot/internal/ports"
)

const maxErrorBody = 64 << 10

// ErrUnsupportedDocument is returned by Upload for files the pipeline cannot parse.
var ErrUnsupportedDocument = fmt.Errorf("%w: only PDF and DOCX files are supported", domain.ErrValidation)

// Client talks to the analysis service over its JSON/form API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     ports.Logger
}

// NewClient builds a client for baseURL. timeout bounds every request,
// including the long-running analysis call.
func NewClient(baseURL string, timeout time.Duration, logger ports.Logger) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse pipeline url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: pipeline url %q must be http or https", domain.ErrValidation, baseURL)
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Analyze submits the query as a form with one files value per document.
func (c *Client) Analyze(ctx context.Context, req domain.AnalysisRequest) (domain.AnalysisResult, error) {
	form := url.Values{}
	form.Set("query", req.Query)
	for _, id := range req.FileIDs {
		form.Add("files", id)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/query"), strings.NewReader(form.Encode()))
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	httpReq.Header.Set("content-type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("accept", "application/json")

	start := time.Now()
	var body queryResponse
	if err := c.do(httpReq, &body); err != nil {
		return domain.AnalysisResult{}, err
	}
	result, err := body.toDomain(c.warn)
	if err != nil {
		return domain.AnalysisResult{}, malformed(err)
	}
	c.debug("pipeline answered", map[string]interface{}{
		"query_type":    result.QueryType,
		"opportunities": len(result.Opportunities),
		"elapsed":       time.Since(start).String(),
	})
	return result, nil
}

// Health probes GET /health.
func (c *Client) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/health"), nil)
	if err != nil {
		return err
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.do(httpReq, &body); err != nil {
		return err
	}
	if body.Status != "" && body.Status != "healthy" {
		return &domain.RemoteFailure{Message: "pipeline reports status " + body.Status}
	}
	return nil
}

// ListFiles returns the documents available as query context.
func (c *Client) ListFiles(ctx context.Context) ([]domain.FileInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/files"), nil)
	if err != nil {
		return nil, err
	}
	var body filesResponse
	if err := c.do(httpReq, &body); err != nil {
		return nil, err
	}
	return body.Files, nil
}

// Upload sends content as a multipart file named name.
func (c *Client) Upload(ctx context.Context, name string, content io.Reader) (domain.UploadResult, error) {
	name = filepath.Base(name)
	if !domain.IsSupportedDocument(name) {
		return domain.UploadResult{}, fmt.Errorf("%s: %w", name, ErrUnsupportedDocument)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return domain.UploadResult{}, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return domain.UploadResult{}, fmt.Errorf("read %s: %w", name, err)
	}
	if err := writer.Close(); err != nil {
		return domain.UploadResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/upload"), &buf)
	if err != nil {
		return domain.UploadResult{}, err
	}
	httpReq.Header.Set("content-type", writer.FormDataContentType())

	var body uploadResponse
	if err := c.do(httpReq, &body); err != nil {
		return domain.UploadResult{}, err
	}
	result := domain.UploadResult{Filename: body.Filename, FileType: body.FileType}
	if result.Filename == "" {
		result.Filename = name
	}
	if body.Details.NumPages != nil {
		result.NumPages = *body.Details.NumPages
	}
	if body.Details.NumParagraphs != nil {
		result.NumParagraphs = *body.Details.NumParagraphs
	}
	return result, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

// do sends req and decodes a 2xx JSON body into out. Every failure comes back
// as *domain.RemoteFailure.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return &domain.RemoteFailure{Err: ctxErr}
		}
		return &domain.RemoteFailure{Message: "Could not reach the analysis service.", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.statusFailure(req, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return malformed(err)
	}
	return nil
}

func (c *Client) statusFailure(req *http.Request, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	failure := &domain.RemoteFailure{StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}

	var body errorResponse
	if json.Unmarshal(data, &body) == nil {
		failure.Message = body.message()
	}
	if failure.Message == "" {
		failure.Message = fmt.Sprintf("Analysis service returned %s.", resp.Status)
	}
	c.warn("pipeline request failed", map[string]interface{}{
		"path":   req.URL.Path,
		"status": resp.StatusCode,
	})
	return failure
}

func malformed(err error) error {
	return &domain.RemoteFailure{Message: "The analysis service returned a malformed response.", Err: err}
}

func (c *Client) debug(msg string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, fields)
	}
}

func (c *Client) warn(msg string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, fields)
	}
}

var (
	_ ports.Pipeline        = (*Client)(nil)
	_ ports.HealthChecker   = (*Client)(nil)
	_ ports.DocumentService = (*Client)(nil)
)
