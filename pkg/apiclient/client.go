// Package apiclient is a typed client for the catalog service's REST API.
//
// Responses are parsed into explicit schemas at the boundary; a payload that
// does not match fails the call instead of leaking malformed data upward.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// Config configures a Client. RootURL points at the API prefix, e.g.
// "http://localhost:8000/api".
type Config struct {
	RootURL string
	Timeout time.Duration
	// HTTPClient overrides the underlying client; mainly for tests.
	HTTPClient *http.Client
}

// Client calls the catalog service. The zero value is not usable; construct
// with New.
type Client struct {
	rootURL string
	http    *http.Client
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		rootURL: strings.TrimRight(cfg.RootURL, "/"),
		http:    hc,
	}
}

// Login exchanges credentials. A nil error with Success false is a rejection
// carrying the server's message; a non-nil error is a connectivity or
// protocol failure.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	payload := map[string]string{"username": username, "password": password}
	var body struct {
		Success  bool   `json:"success"`
		Message  string `json:"message"`
		Username string `json:"username"`
		Token    string `json:"token"`
		Error    string `json:"error"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/login", payload, &body)
	if err != nil {
		var apiErr *APIError
		// 4xx with a decoded error payload is a credential rejection, not
		// a transport failure.
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
			msg := apiErr.Message
			if msg == "" {
				msg = "Login failed"
			}
			return &LoginResponse{Success: false, Message: msg}, nil
		}
		return nil, err
	}
	if !body.Success {
		msg := body.Error
		if msg == "" {
			msg = "Login failed"
		}
		return &LoginResponse{Success: false, Message: msg}, nil
	}
	resolved := body.Username
	if resolved == "" {
		resolved = username
	}
	return &LoginResponse{Success: true, Message: body.Message, Username: resolved, Token: body.Token}, nil
}

// Logout notifies the backend. Callers treat failures as best-effort.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// ListUploads returns upload summaries matching status, newest first. An
// empty listing is a normal result.
func (c *Client) ListUploads(ctx context.Context, status Status) ([]UploadSummary, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status filter %q", status)
	}
	var body struct {
		Uploads []UploadSummary `json:"uploads"`
		Total   int             `json:"total"`
	}
	path := "/management/pending?status=" + url.QueryEscape(string(status))
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	if body.Uploads == nil {
		body.Uploads = []UploadSummary{}
	}
	return body.Uploads, nil
}

// GetUploadDetail fetches the full record including the row preview.
func (c *Client) GetUploadDetail(ctx context.Context, id int) (*UploadDetail, error) {
	var detail UploadDetail
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/management/pending/%d", id), nil, &detail); err != nil {
		return nil, err
	}
	if detail.FileContent == nil {
		detail.FileContent = RowList{}
	}
	return &detail, nil
}

// ApproveUpload requests ingestion of a pending upload's rows.
func (c *Client) ApproveUpload(ctx context.Context, id int, notes, reviewer string) (*ReviewResult, error) {
	return c.review(ctx, id, "approve", notes, reviewer)
}

// RejectUpload marks a pending upload rejected without ingestion.
func (c *Client) RejectUpload(ctx context.Context, id int, notes, reviewer string) (*ReviewResult, error) {
	return c.review(ctx, id, "reject", notes, reviewer)
}

func (c *Client) review(ctx context.Context, id int, action, notes, reviewer string) (*ReviewResult, error) {
	payload := map[string]string{"review_notes": notes, "reviewed_by": reviewer}
	var res ReviewResult
	path := fmt.Sprintf("/management/pending/%d/%s", id, action)
	if err := c.do(ctx, http.MethodPost, path, payload, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SubmitUpload sends a new spreadsheet into the review queue.
func (c *Client) SubmitUpload(ctx context.Context, req UploadRequest) (*UploadAck, error) {
	var ack UploadAck
	if err := c.do(ctx, http.MethodPost, "/upload", req, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.rootURL+path, reqBody)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Error("backend request failed", slog.String("path", path), slog.String("error", err.Error()))
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("read response from %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &errBody)
		slog.Warn("backend returned error status",
			slog.String("path", path), slog.Int("status", resp.StatusCode), slog.String("error", errBody.Error))
		return &APIError{StatusCode: resp.StatusCode, Message: errBody.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		slog.Error("backend sent malformed response", slog.String("path", path), slog.String("error", err.Error()))
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}
