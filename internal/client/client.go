// Package client talks to the velric server API on behalf of the CLI.
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

	"github.com/velric/velric-server/internal/integrity"
	"github.com/velric/velric-server/internal/model"
)

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ integrity.SubmissionAPI = (*Client)(nil)

// New returns a client that sends token as a bearer credential. A nil
// httpClient gets a 30 second timeout.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

// APIError is a non-2xx answer. Message is the server's error text.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

type envelope struct {
	Success bool             `json:"success"`
	Error   string           `json:"error"`
	ID      string           `json:"id"`
	User    *model.Principal `json:"user"`
}

// Submit posts a mission submission and returns the stored id.
func (c *Client) Submit(ctx context.Context, req integrity.SubmitRequest) (*integrity.Receipt, error) {
	var env envelope
	if err := c.do(ctx, http.MethodPost, "/api/submissions", req, &env); err != nil {
		return nil, err
	}
	if env.ID == "" {
		return nil, fmt.Errorf("client: submission response has no id")
	}
	return &integrity.Receipt{ID: env.ID}, nil
}

// Me returns the principal the token resolves to.
func (c *Client) Me(ctx context.Context) (*model.Principal, error) {
	var env envelope
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &env); err != nil {
		return nil, err
	}
	if env.User == nil {
		return nil, fmt.Errorf("client: /api/me response has no user")
	}
	return env.User, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out *envelope) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("client: building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && resp.StatusCode < 300 {
		return fmt.Errorf("client: decoding response: %w", err)
	}
	if resp.StatusCode >= 300 || !out.Success {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	return nil
}
