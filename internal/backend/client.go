// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// CONSTANTS & ERRORS
// =============================================================================

const (
	historyPath = "/api/chat-history"
	uploadPath  = "/api/upload-document"
	analyzePath = "/api/analyze-lab-report"

	// maxResponseSize caps how much of a response body we will buffer.
	maxResponseSize = 4 << 20 // 4 MB

	defaultTimeout = 60 * time.Second

	sessionCookieName = "session"
)

var (
	// ErrUnavailable indicates the backend could not be reached at all.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrBadResponse indicates the backend answered with a body we
	// could not decode.
	ErrBadResponse = errors.New("malformed backend response")
)

// APIError is a structured error returned by the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend error (HTTP %d)", e.Status)
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is the HTTP half of the backend collaborator: history load,
// document upload and lab-report analysis. The duplex chat channel
// lives in package channel.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	sessionCookie string
	log           *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithSessionCookie attaches the backend session cookie to every request.
func WithSessionCookie(value string) Option {
	return func(c *Client) { c.sessionCookie = value }
}

// WithLogger sets the client logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a backend client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// HistoryMessage is one prior turn as the server reports it. Role is
// the server's vocabulary ("user" / "bot"), not ours.
type HistoryMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// HistoryResponse is the chat-history payload.
type HistoryResponse struct {
	UserName string           `json:"user_name"`
	Messages []HistoryMessage `json:"messages"`
}

// UploadResponse is the successful upload payload. FilePath is the
// server-side reference later passed to Analyze.
type UploadResponse struct {
	Filename string `json:"filename"`
	FilePath string `json:"file_path"`
}

// AnalyzeResponse is the lab-report analysis payload.
type AnalyzeResponse struct {
	Analysis string `json:"analysis"`
}

// =============================================================================
// OPERATIONS
// =============================================================================

// History fetches the authenticated party's prior conversation.
func (c *Client) History(ctx context.Context) (*HistoryResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+historyPath, nil)
	if err != nil {
		return nil, fmt.Errorf("build history request: %w", err)
	}

	var out HistoryResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload sends a document as multipart form data. The description
// travels alongside the file and seeds the server's record.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader, description string) (*UploadResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read upload payload: %w", err)
	}
	if err := mw.WriteField("description", description); err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, &body)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out UploadResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if out.FilePath == "" {
		return nil, fmt.Errorf("%w: upload response missing file_path", ErrBadResponse)
	}
	return &out, nil
}

// Analyze asks the backend to analyze a previously uploaded document,
// identified by the server-side path returned from Upload.
func (c *Client) Analyze(ctx context.Context, filePath string) (*AnalyzeResponse, error) {
	payload, err := json.Marshal(map[string]string{"file_path": filePath})
	if err != nil {
		return nil, fmt.Errorf("encode analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+analyzePath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out AnalyzeResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

// do executes the request, decodes errors into *APIError, and unmarshals
// a successful body into out.
func (c *Client) do(req *http.Request, out any) error {
	if c.sessionCookie != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: c.sessionCookie})
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("backend request failed",
			zap.String("path", req.URL.Path),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read backend response: %w", err)
	}

	c.log.Debug("backend request",
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	// The backend reports failures as {"error": "..."} with either a
	// non-2xx status or, for some handlers, a 200. Treat both the same.
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: %v", ErrBadResponse, err)
		}
	}
	return nil
}
