// Package client talks to the enrollment HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/atinyakov/EnrollKeeper/internal/models"
)

const (
	apiRegister = "/api/register"
	apiAssign   = "/api/assign-course"
	apiVerify   = "/api/verify"
	apiCourses  = "/api/courses"
)

// Client calls the server at BaseURL.
type Client struct {
	HTTP    *http.Client
	BaseURL string
}

// New returns a Client with a bounded request timeout.
func New(baseURL string) *Client {
	return &Client{
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		BaseURL: strings.TrimRight(baseURL, "/"),
	}
}

// VerifyResult mirrors the /api/verify response.
type VerifyResult struct {
	Matched     bool                `json:"matched"`
	Enrollments []models.Enrollment `json:"enrollments"`
}

// Register creates an account and returns its id.
func (c *Client) Register(ctx context.Context, username, password string) (int64, error) {
	var out struct {
		ID int64 `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, apiRegister, map[string]string{
		"username": username,
		"password": password,
	}, &out)
	if err != nil {
		return 0, fmt.Errorf("register failed: %w", err)
	}
	return out.ID, nil
}

// Assign issues course to username.
func (c *Client) Assign(ctx context.Context, username, course, price string) (models.Enrollment, error) {
	var out models.Enrollment
	err := c.do(ctx, http.MethodPost, apiAssign, map[string]string{
		"username": username,
		"course":   course,
		"price":    price,
	}, &out)
	if err != nil {
		return models.Enrollment{}, fmt.Errorf("assign failed: %w", err)
	}
	return out, nil
}

// Verify checks the credentials and lists enrollments on a match.
func (c *Client) Verify(ctx context.Context, username, password string) (VerifyResult, error) {
	var out VerifyResult
	err := c.do(ctx, http.MethodPost, apiVerify, map[string]string{
		"username": username,
		"password": password,
	}, &out)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("verify failed: %w", err)
	}
	return out, nil
}

// Courses lists the catalog.
func (c *Client) Courses(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.do(ctx, http.MethodGet, apiCourses, nil, &out); err != nil {
		return nil, fmt.Errorf("courses failed: %w", err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error: %s", strings.TrimSpace(string(data)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
